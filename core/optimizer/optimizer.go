// Package optimizer builds the hour-by-hour charge/discharge plan that
// minimizes net electricity cost over a forward price horizon.
package optimizer

import (
	"errors"
	"fmt"

	"github.com/kilianp07/storageopt/core/model"
	"github.com/kilianp07/storageopt/core/solver"
)

// ErrInvalidInput marks optimizer precondition violations. These are raised
// before any solver interaction and abort only the current cycle.
var ErrInvalidInput = errors.New("invalid optimizer input")

// Config defines the tunable parameters of the optimizer.
type Config struct {
	// DischargeBias is the multiplicative weight on discharge revenue in the
	// objective. A value slightly above 1 makes discharging at an attractive
	// price marginally better than holding charge, so the solver never treats
	// the two as equivalent.
	DischargeBias float64 `json:"discharge_bias"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.DischargeBias == 0 {
		c.DischargeBias = 1.01
	}
}

// Validate checks the configured parameters.
func (c Config) Validate() error {
	if c.DischargeBias <= 1 {
		return fmt.Errorf("discharge_bias must be greater than 1, got %v", c.DischargeBias)
	}
	return nil
}

// Optimizer formulates and solves the schedule problem.
type Optimizer struct {
	cfg Config
}

// New returns an Optimizer with the given configuration.
func New(cfg Config) *Optimizer {
	cfg.SetDefaults()
	return &Optimizer{cfg: cfg}
}

// Optimize computes a charge/discharge plan over the horizon. The first
// horizon entry must correspond to the current hour; its state of charge is
// pinned to st.SoCKWh. A non-usable solver status is reported through the
// Solution, not as an error; errors are reserved for invalid input and
// solver failures.
func (o *Optimizer) Optimize(horizon model.Horizon, st model.StorageState) (Solution, error) {
	if len(horizon) == 0 {
		return Solution{Status: solver.StatusError}, fmt.Errorf("%w: empty horizon", ErrInvalidInput)
	}
	if st.CapacityKWh <= 0 {
		return Solution{Status: solver.StatusError}, fmt.Errorf("%w: capacity %v is not positive", ErrInvalidInput, st.CapacityKWh)
	}
	if st.SoCKWh < 0 {
		return Solution{Status: solver.StatusError}, fmt.Errorf("%w: state of charge %v is negative", ErrInvalidInput, st.SoCKWh)
	}
	if err := horizon.Validate(); err != nil {
		return Solution{Status: solver.StatusError}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	n := len(horizon)
	prob := solver.NewProblem()
	charge := make([]solver.Var, n)
	discharge := make([]solver.Var, n)
	soc := make([]solver.Var, n)
	charging := make([]solver.Var, n)

	for i, pt := range horizon {
		charge[i] = prob.NewVariable(0, st.MaxChargeKW, false)
		discharge[i] = prob.NewVariable(0, st.MaxDischargeKW, false)
		soc[i] = prob.NewVariable(0, st.CapacityKWh, false)
		charging[i] = prob.NewVariable(0, 1, true)

		if pt.Price < 0 {
			// The grid pays to accept energy: charge at full rate.
			prob.AddConstraint([]solver.Term{{Var: charge[i], Coeff: 1}}, solver.Equal, st.MaxChargeKW)
		}

		// charge <= maxCharge * charging, discharge <= maxDischarge * (1 - charging)
		prob.AddConstraint([]solver.Term{
			{Var: charge[i], Coeff: 1},
			{Var: charging[i], Coeff: -st.MaxChargeKW},
		}, solver.LessEq, 0)
		prob.AddConstraint([]solver.Term{
			{Var: discharge[i], Coeff: 1},
			{Var: charging[i], Coeff: st.MaxDischargeKW},
		}, solver.LessEq, st.MaxDischargeKW)

		// Cannot discharge more than is stored at this position.
		prob.AddConstraint([]solver.Term{
			{Var: discharge[i], Coeff: 1},
			{Var: soc[i], Coeff: -1},
		}, solver.LessEq, 0)

		prob.SetObjective(charge[i], pt.Price)
		prob.SetObjective(discharge[i], -pt.Price*o.cfg.DischargeBias)
	}

	prob.AddConstraint([]solver.Term{{Var: soc[0], Coeff: 1}}, solver.Equal, st.SoCKWh)
	for i := 1; i < n; i++ {
		prob.AddConstraint([]solver.Term{
			{Var: soc[i], Coeff: 1},
			{Var: soc[i-1], Coeff: -1},
			{Var: charge[i-1], Coeff: -st.ChargeEfficiency},
			{Var: discharge[i-1], Coeff: 1 / st.DischargeEfficiency},
		}, solver.Equal, 0)
	}

	prob.Minimize()
	status, values, err := prob.Solve()
	if err != nil {
		return Solution{Status: solver.StatusError}, fmt.Errorf("schedule solve: %w", err)
	}
	if !status.Usable() {
		return Solution{Status: status}, nil
	}

	sol := Solution{
		Status: status,
		Points: make([]PlanPoint, n),
		Cost:   prob.ObjectiveValue(values),
	}
	for i, pt := range horizon {
		p := PlanPoint{
			Timestamp:   pt.Timestamp,
			Price:       pt.Price,
			ChargeKW:    clamp(values[charge[i]], 0, st.MaxChargeKW),
			DischargeKW: clamp(values[discharge[i]], 0, st.MaxDischargeKW),
			SoCKWh:      clamp(values[soc[i]], 0, st.CapacityKWh),
			Charging:    values[charging[i]] > 0.5,
		}
		if pt.Price < 0 {
			// Keep the forced-charge equality exact despite solver rounding.
			p.ChargeKW = st.MaxChargeKW
		}
		sol.Points[i] = p
	}
	return sol, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
