package prices

import (
	"context"
	"fmt"

	"github.com/kilianp07/storageopt/core/control"
	"github.com/kilianp07/storageopt/core/model"
)

// StoreSource serves the horizon maintained by the refresh loop out of the
// persisted snapshot. It is the control loop's PriceSource; the two loops
// share nothing but the store.
type StoreSource struct {
	store control.Store
}

// NewStoreSource creates a StoreSource backed by the given store.
func NewStoreSource(store control.Store) *StoreSource {
	return &StoreSource{store: store}
}

// GetHorizon implements control.PriceSource.
func (s *StoreSource) GetHorizon(context.Context) (model.Horizon, error) {
	snap, err := s.store.Load()
	if err != nil {
		return nil, fmt.Errorf("load price state: %w", err)
	}
	if len(snap.Prices.Horizon) == 0 {
		return nil, fmt.Errorf("no price horizon available yet")
	}
	return snap.Prices.Horizon, nil
}
