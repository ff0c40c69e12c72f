package control

import (
	"math"

	"github.com/kilianp07/storageopt/core/optimizer"
)

// Action is the abstract device action derived from the current-hour plan.
type Action int

const (
	ActionCharge Action = iota
	ActionDischargeOnly
	ActionHold
	ActionSafeFallback
)

// String returns a human-readable representation of the action.
func (a Action) String() string {
	switch a {
	case ActionCharge:
		return "charge"
	case ActionDischargeOnly:
		return "discharge_only"
	case ActionHold:
		return "hold"
	case ActionSafeFallback:
		return "safe_fallback"
	default:
		return "unknown"
	}
}

// DefaultToleranceKW is the activity threshold applied to solver output.
const DefaultToleranceKW = 0.01

// DeriveAction reduces a full-horizon solution to the immediate action at the
// given position. Solver output is rounded to two decimals before comparing
// against the tolerance; if both charge and discharge appear active, charge
// wins, since forced negative-price charging must never be overridden. Any
// non-usable solution yields ActionSafeFallback regardless of stale values.
func DeriveAction(sol optimizer.Solution, pos int, toleranceKW float64) Action {
	if !sol.Status.Usable() {
		return ActionSafeFallback
	}
	if pos < 0 || pos >= len(sol.Points) {
		return ActionSafeFallback
	}
	if toleranceKW <= 0 {
		toleranceKW = DefaultToleranceKW
	}
	p := sol.Points[pos]
	switch {
	case round2(p.ChargeKW) > toleranceKW:
		return ActionCharge
	case round2(p.DischargeKW) > toleranceKW:
		return ActionDischargeOnly
	default:
		return ActionHold
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
