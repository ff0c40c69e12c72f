package solver

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

const (
	simplexTol   = 1e-7
	integralTol  = 1e-6
	objectiveTol = 1e-9

	// maxNodes bounds the branch-and-bound search. The schedule problems
	// solved here carry one binary per horizon hour, so the practical tree
	// stays far below this.
	maxNodes = 20000
)

// relaxation solves the LP relaxation of p with the per-node bounds lo/hi
// substituted for the variable bounds. It returns the values in the original
// variable space and the objective value.
func relaxation(p *Problem, lo, hi []float64) ([]float64, float64, error) {
	n := len(p.vars)

	var gRows [][]float64
	var h []float64
	var aRows [][]float64
	var b []float64

	addRow := func(dst *[][]float64, rhs *[]float64, terms []Term, scale, r float64) {
		row := make([]float64, n)
		for _, t := range terms {
			row[t.Var] += scale * t.Coeff
		}
		*dst = append(*dst, row)
		*rhs = append(*rhs, scale*r)
	}

	for _, c := range p.cons {
		switch c.rel {
		case LessEq:
			addRow(&gRows, &h, c.terms, 1, c.rhs)
		case GreaterEq:
			addRow(&gRows, &h, c.terms, -1, c.rhs)
		case Equal:
			addRow(&aRows, &b, c.terms, 1, c.rhs)
		}
	}

	// lp.Convert treats variables as free, so bounds become inequality rows.
	for i := 0; i < n; i++ {
		if !math.IsInf(hi[i], 1) {
			row := make([]float64, n)
			row[i] = 1
			gRows = append(gRows, row)
			h = append(h, hi[i])
		}
		if !math.IsInf(lo[i], -1) {
			row := make([]float64, n)
			row[i] = -1
			gRows = append(gRows, row)
			h = append(h, -lo[i])
		}
	}

	var g mat.Matrix
	if len(gRows) > 0 {
		g = mat.NewDense(len(gRows), n, flatten(gRows))
	}
	var a mat.Matrix
	if len(aRows) > 0 {
		a = mat.NewDense(len(aRows), n, flatten(aRows))
	}

	cStd, aStd, bStd := lp.Convert(p.obj, g, h, a, b)
	_, xStd, err := lp.Simplex(cStd, aStd, bStd, simplexTol, nil)
	if err != nil {
		return nil, 0, err
	}

	// Convert splits each free variable into a positive and a negative part:
	// x_i = xStd_i - xStd_{n+i}.
	x := make([]float64, n)
	for i := range x {
		x[i] = xStd[i] - xStd[n+i]
	}
	return x, p.ObjectiveValue(x), nil
}

func flatten(rows [][]float64) []float64 {
	if len(rows) == 0 {
		return nil
	}
	out := make([]float64, 0, len(rows)*len(rows[0]))
	for _, r := range rows {
		out = append(out, r...)
	}
	return out
}

type bbNode struct {
	lo, hi []float64
}

// branchAndBound minimizes p by solving LP relaxations and branching on
// fractional integer variables until all of them take whole values.
func branchAndBound(p *Problem) (Status, []float64, error) {
	n := len(p.vars)
	root := bbNode{lo: make([]float64, n), hi: make([]float64, n)}
	for i, v := range p.vars {
		root.lo[i] = v.lo
		root.hi[i] = v.hi
	}

	stack := []bbNode{root}
	bestObj := math.Inf(1)
	var bestX []float64
	var lastErr error
	nodes := 0
	truncated := false

	for len(stack) > 0 {
		nodes++
		if nodes > maxNodes {
			truncated = true
			break
		}
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		x, obj, err := relaxation(p, node.lo, node.hi)
		if err != nil {
			if errors.Is(err, lp.ErrInfeasible) {
				continue
			}
			lastErr = err
			continue
		}
		if obj >= bestObj-objectiveTol {
			continue
		}

		branch := -1
		for i, v := range p.vars {
			if !v.integer {
				continue
			}
			if math.Abs(x[i]-math.Round(x[i])) > integralTol {
				branch = i
				break
			}
		}
		if branch < 0 {
			bestObj = obj
			bestX = x
			continue
		}

		down := bbNode{lo: append([]float64(nil), node.lo...), hi: append([]float64(nil), node.hi...)}
		down.hi[branch] = math.Floor(x[branch])
		up := bbNode{lo: append([]float64(nil), node.lo...), hi: append([]float64(nil), node.hi...)}
		up.lo[branch] = math.Ceil(x[branch])
		stack = append(stack, down, up)
	}

	if bestX == nil {
		if lastErr != nil {
			return StatusError, nil, lastErr
		}
		return StatusInfeasible, nil, nil
	}
	for i, v := range p.vars {
		if v.integer {
			bestX[i] = math.Round(bestX[i])
		}
	}
	if truncated {
		return StatusFeasible, bestX, nil
	}
	return StatusOptimal, bestX, nil
}
