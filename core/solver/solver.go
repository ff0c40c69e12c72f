// Package solver exposes a small linear/integer programming capability used
// by the schedule optimizer. Problems are built incrementally from bounded
// decision variables, linear constraints and a linear objective, then solved
// by a simplex backend with branch-and-bound over the integer variables.
package solver

import (
	"fmt"
	"math"
)

// Status is the outcome of a solve.
type Status int

const (
	StatusOptimal Status = iota
	StatusFeasible
	StatusInfeasible
	StatusError
)

// String returns a human-readable representation of the status.
func (s Status) String() string {
	switch s {
	case StatusOptimal:
		return "optimal"
	case StatusFeasible:
		return "feasible"
	case StatusInfeasible:
		return "infeasible"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Usable reports whether a solution with this status may be acted upon.
func (s Status) Usable() bool {
	return s == StatusOptimal || s == StatusFeasible
}

// Relation is the comparison of a linear constraint against its right-hand side.
type Relation int

const (
	LessEq Relation = iota
	GreaterEq
	Equal
)

// Var is a handle to a decision variable within a Problem.
type Var int

// Term is one coefficient of a linear expression.
type Term struct {
	Var   Var
	Coeff float64
}

type variable struct {
	lo, hi  float64
	integer bool
}

type constraint struct {
	terms []Term
	rel   Relation
	rhs   float64
}

// Problem accumulates variables, constraints and an objective.
// It is not safe for concurrent use; one solve owns one Problem.
type Problem struct {
	vars []variable
	cons []constraint
	obj  []float64
}

// NewProblem returns an empty minimization problem.
func NewProblem() *Problem {
	return &Problem{}
}

// NumVariables returns the number of variables created so far.
func (p *Problem) NumVariables() int { return len(p.vars) }

// NewVariable adds a decision variable bounded to [lo, hi]. Integer variables
// are restricted to whole values within their bounds by branch-and-bound.
func (p *Problem) NewVariable(lo, hi float64, integer bool) Var {
	p.vars = append(p.vars, variable{lo: lo, hi: hi, integer: integer})
	p.obj = append(p.obj, 0)
	return Var(len(p.vars) - 1)
}

// AddConstraint adds the linear constraint terms <rel> rhs.
func (p *Problem) AddConstraint(terms []Term, rel Relation, rhs float64) {
	cp := make([]Term, len(terms))
	copy(cp, terms)
	p.cons = append(p.cons, constraint{terms: cp, rel: rel, rhs: rhs})
}

// SetObjective adds coeff to the objective coefficient of v.
func (p *Problem) SetObjective(v Var, coeff float64) {
	p.obj[v] += coeff
}

// Minimize declares the objective direction. The backend always minimizes;
// the method exists so call sites state their intent explicitly.
func (p *Problem) Minimize() {}

// ObjectiveValue evaluates the objective at the given variable values.
func (p *Problem) ObjectiveValue(values []float64) float64 {
	var sum float64
	for i, c := range p.obj {
		sum += c * values[i]
	}
	return sum
}

// Bounds returns the bounds of v.
func (p *Problem) Bounds(v Var) (lo, hi float64) {
	return p.vars[v].lo, p.vars[v].hi
}

// solveFunc solves the problem. It can be overridden in tests to simulate
// solver failures.
var solveFunc = branchAndBound

// Solve minimizes the objective subject to the accumulated constraints and
// variable bounds. On StatusOptimal and StatusFeasible the returned slice
// holds one value per variable, indexed by Var.
func (p *Problem) Solve() (Status, []float64, error) {
	if len(p.vars) == 0 {
		return StatusError, nil, fmt.Errorf("solver: problem has no variables")
	}
	for i, v := range p.vars {
		if v.lo > v.hi || math.IsNaN(v.lo) || math.IsNaN(v.hi) {
			return StatusError, nil, fmt.Errorf("solver: variable %d has invalid bounds [%v, %v]", i, v.lo, v.hi)
		}
	}
	return solveFunc(p)
}
