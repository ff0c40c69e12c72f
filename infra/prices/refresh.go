package prices

import (
	"context"
	"time"

	"github.com/kilianp07/storageopt/core/control"
	"github.com/kilianp07/storageopt/core/logger"
)

// RefreshLoop periodically re-fetches the tariff horizon and keeps the price
// section of the persisted snapshot current. It runs independently of the
// control loop and owns that section exclusively.
type RefreshLoop struct {
	client   *Client
	store    control.Store
	interval time.Duration
	log      logger.Logger

	now func() time.Time
}

// NewRefreshLoop creates a RefreshLoop writing through the given store.
func NewRefreshLoop(client *Client, store control.Store, log logger.Logger) *RefreshLoop {
	return &RefreshLoop{
		client:   client,
		store:    store,
		interval: time.Duration(client.cfg.RefreshIntervalSeconds) * time.Second,
		log:      log,
		now:      time.Now,
	}
}

// Run refreshes immediately, then on the configured interval until ctx is
// cancelled. Failures are logged and retried on the next tick.
func (r *RefreshLoop) Run(ctx context.Context) {
	r.log.Infof("price refresh loop started, interval %s", r.interval)
	r.refresh(ctx)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.log.Infof("price refresh loop stopped: %v", ctx.Err())
			return
		case <-ticker.C:
			r.refresh(ctx)
		}
	}
}

func (r *RefreshLoop) refresh(ctx context.Context) {
	// Renew credentials ahead of time so a fetch never races token expiry.
	if expiry := r.client.TokenExpiry(); !expiry.IsZero() && expiry.Before(r.now().Add(2*r.interval)) {
		if err := r.client.auth.ForceRefresh(ctx); err != nil {
			r.log.Errorf("token refresh failed: %v", err)
		}
	}

	horizon, err := r.client.FetchHorizon(ctx)
	if err != nil {
		r.log.Errorf("horizon fetch failed: %v", err)
		return
	}
	if len(horizon) == 0 {
		r.log.Warnf("tariff API returned an empty horizon")
		return
	}
	if err := r.store.SavePriceState(control.PriceState{
		Horizon:     horizon,
		FetchedAt:   r.now(),
		TokenExpiry: r.client.TokenExpiry(),
	}); err != nil {
		r.log.Errorf("persist price state: %v", err)
		return
	}
	r.log.Debugw("price horizon refreshed", map[string]any{
		"points": len(horizon),
		"first":  horizon[0].Timestamp,
	})
}
