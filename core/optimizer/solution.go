package optimizer

import (
	"time"

	"github.com/kilianp07/storageopt/core/solver"
)

// PlanPoint is the planned battery behaviour for one horizon hour.
type PlanPoint struct {
	Timestamp   time.Time `json:"timestamp"`
	Price       float64   `json:"price"`
	ChargeKW    float64   `json:"charge_kw"`
	DischargeKW float64   `json:"discharge_kw"`
	SoCKWh      float64   `json:"soc_kwh"`
	Charging    bool      `json:"charging"`
}

// Solution is the full-horizon plan plus the solver outcome. Points are
// indexed by horizon position; the first position is the current hour.
// Points are only populated when Status is usable.
type Solution struct {
	Status solver.Status `json:"status"`
	Points []PlanPoint   `json:"points,omitempty"`
	Cost   float64       `json:"cost"`
}
