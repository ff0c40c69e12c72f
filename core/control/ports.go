package control

import (
	"context"
	"time"

	"github.com/kilianp07/storageopt/core/model"
	"github.com/kilianp07/storageopt/core/optimizer"
)

// PriceSource provides the forward price horizon, covering at least the
// current hour. It may return fewer entries than expected; the loop treats
// that as a transient abort condition.
type PriceSource interface {
	GetHorizon(ctx context.Context) (model.Horizon, error)
}

// Telemetry reads live values from the storage device.
type Telemetry interface {
	// GetStateOfCharge returns the state of charge as a fraction of capacity
	// in [0, 1].
	GetStateOfCharge(ctx context.Context) (float64, error)
	// GetLivePower returns the current net power in watts. Positive values
	// indicate consumption, negative values production.
	GetLivePower(ctx context.Context) (float64, error)
}

// Actuator applies a device mode through the vendor API.
type Actuator interface {
	SetMode(ctx context.Context, mode DeviceMode) error
}

// Planner computes a schedule for the given horizon and storage state.
// *optimizer.Optimizer is the production implementation.
type Planner interface {
	Optimize(horizon model.Horizon, st model.StorageState) (optimizer.Solution, error)
}

// DeviceState is the persisted sub-resource owned by the control loop.
type DeviceState struct {
	LastMode  *DeviceMode `json:"last_mode,omitempty"`
	AppliedAt time.Time   `json:"applied_at,omitempty"`
}

// PriceState is the persisted sub-resource owned by the price refresh loop.
type PriceState struct {
	Horizon     model.Horizon `json:"horizon,omitempty"`
	FetchedAt   time.Time     `json:"fetched_at,omitempty"`
	TokenExpiry time.Time     `json:"token_expiry,omitempty"`
}

// Snapshot is the persisted configuration state shared by the two loops.
// Each loop writes only its own section.
type Snapshot struct {
	Device DeviceState `json:"device"`
	Prices PriceState  `json:"prices"`
}

// Store persists the shared snapshot. Save calls replace one section and are
// expected to be atomic enough that a crash mid-write does not corrupt the
// next Load.
type Store interface {
	Load() (Snapshot, error)
	SaveDeviceState(st DeviceState) error
	SavePriceState(st PriceState) error
}
