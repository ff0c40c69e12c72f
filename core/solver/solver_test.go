package solver

import (
	"errors"
	"math"
	"testing"
)

func TestSolve_SimpleLP(t *testing.T) {
	// minimize -x - y subject to x + y <= 4, x <= 3, y <= 3
	p := NewProblem()
	x := p.NewVariable(0, 3, false)
	y := p.NewVariable(0, 3, false)
	p.AddConstraint([]Term{{x, 1}, {y, 1}}, LessEq, 4)
	p.SetObjective(x, -1)
	p.SetObjective(y, -1)
	p.Minimize()

	status, vals, err := p.Solve()
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	if status != StatusOptimal {
		t.Fatalf("expected optimal, got %v", status)
	}
	if got := vals[x] + vals[y]; math.Abs(got-4) > 1e-6 {
		t.Fatalf("expected x+y=4, got %v", got)
	}
}

func TestSolve_EqualityConstraint(t *testing.T) {
	p := NewProblem()
	x := p.NewVariable(0, 10, false)
	p.AddConstraint([]Term{{x, 1}}, Equal, 7)
	p.SetObjective(x, 1)
	p.Minimize()

	status, vals, err := p.Solve()
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	if !status.Usable() {
		t.Fatalf("unexpected status %v", status)
	}
	if math.Abs(vals[x]-7) > 1e-6 {
		t.Fatalf("expected x=7, got %v", vals[x])
	}
}

func TestSolve_BinaryIntegrality(t *testing.T) {
	// The relaxation prefers b fractional: minimize -x - y with
	// x <= 2b, y <= 2(1-b). Branch-and-bound must pick a whole b.
	p := NewProblem()
	x := p.NewVariable(0, 2, false)
	y := p.NewVariable(0, 2, false)
	b := p.NewVariable(0, 1, true)
	p.AddConstraint([]Term{{x, 1}, {b, -2}}, LessEq, 0)
	p.AddConstraint([]Term{{y, 1}, {b, 2}}, LessEq, 2)
	p.SetObjective(x, -1)
	p.SetObjective(y, -1)
	p.Minimize()

	status, vals, err := p.Solve()
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	if status != StatusOptimal {
		t.Fatalf("expected optimal, got %v", status)
	}
	if vals[b] != 0 && vals[b] != 1 {
		t.Fatalf("binary variable not integral: %v", vals[b])
	}
	if vals[b] == 1 && vals[y] > 1e-6 {
		t.Fatalf("y must be zero when b=1, got %v", vals[y])
	}
	if vals[b] == 0 && vals[x] > 1e-6 {
		t.Fatalf("x must be zero when b=0, got %v", vals[x])
	}
}

func TestSolve_Infeasible(t *testing.T) {
	p := NewProblem()
	x := p.NewVariable(0, 1, false)
	p.AddConstraint([]Term{{x, 1}}, Equal, 5)
	p.SetObjective(x, 1)
	p.Minimize()

	status, _, err := p.Solve()
	if err != nil {
		t.Fatalf("infeasibility must not be an error: %v", err)
	}
	if status != StatusInfeasible {
		t.Fatalf("expected infeasible, got %v", status)
	}
}

func TestSolve_NoVariables(t *testing.T) {
	p := NewProblem()
	status, _, err := p.Solve()
	if err == nil || status != StatusError {
		t.Fatalf("expected error status, got %v err %v", status, err)
	}
}

func TestSolve_BackendFailure(t *testing.T) {
	orig := solveFunc
	solveFunc = func(*Problem) (Status, []float64, error) {
		return StatusError, nil, errors.New("boom")
	}
	defer func() { solveFunc = orig }()

	p := NewProblem()
	p.NewVariable(0, 1, false)
	status, _, err := p.Solve()
	if status != StatusError || err == nil {
		t.Fatalf("expected backend failure, got %v err %v", status, err)
	}
}

func TestObjectiveValue_Accumulates(t *testing.T) {
	p := NewProblem()
	x := p.NewVariable(0, 1, false)
	p.SetObjective(x, 2)
	p.SetObjective(x, 3)
	if got := p.ObjectiveValue([]float64{2}); got != 10 {
		t.Fatalf("expected accumulated coefficient 5 -> 10, got %v", got)
	}
}
