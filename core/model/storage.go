package model

import "fmt"

// StorageState describes the aggregate storage unit for one control cycle.
// Capacity, rates and efficiencies are configuration-level constants; the
// state of charge is refreshed from telemetry every cycle.
type StorageState struct {
	CapacityKWh         float64 `json:"capacity_kwh"`
	SoCKWh              float64 `json:"soc_kwh"`
	MaxChargeKW         float64 `json:"max_charge_kw"`
	MaxDischargeKW      float64 `json:"max_discharge_kw"`
	ChargeEfficiency    float64 `json:"charge_efficiency"`
	DischargeEfficiency float64 `json:"discharge_efficiency"`
}

// Validate checks the static battery parameters.
func (s StorageState) Validate() error {
	if s.CapacityKWh <= 0 {
		return fmt.Errorf("capacity must be positive, got %v", s.CapacityKWh)
	}
	if s.MaxChargeKW <= 0 {
		return fmt.Errorf("max charge rate must be positive, got %v", s.MaxChargeKW)
	}
	if s.MaxDischargeKW <= 0 {
		return fmt.Errorf("max discharge rate must be positive, got %v", s.MaxDischargeKW)
	}
	if s.ChargeEfficiency <= 0 || s.ChargeEfficiency > 1 {
		return fmt.Errorf("charge efficiency must be in (0,1], got %v", s.ChargeEfficiency)
	}
	if s.DischargeEfficiency <= 0 || s.DischargeEfficiency > 1 {
		return fmt.Errorf("discharge efficiency must be in (0,1], got %v", s.DischargeEfficiency)
	}
	return nil
}

// WithSoC returns a copy of s with the state of charge set to the given
// per-unit fraction of capacity.
func (s StorageState) WithSoC(fraction float64) StorageState {
	s.SoCKWh = fraction * s.CapacityKWh
	return s
}
