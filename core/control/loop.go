// Package control hosts the polling/decision/apply cycle that drives a
// storage device from optimizer output.
package control

import (
	"context"
	"time"

	"github.com/kilianp07/storageopt/core/logger"
	"github.com/kilianp07/storageopt/core/metrics"
	"github.com/kilianp07/storageopt/core/model"
)

// Config defines the control loop parameters.
type Config struct {
	// RefreshInterval is the nominal wait between cycles. The actual wait is
	// capped by the time remaining until the next hour boundary so the loop
	// never straddles an hour without re-evaluating.
	RefreshInterval time.Duration
	// ToleranceKW is the activity threshold for the action deriver.
	ToleranceKW float64
	// LegacyStandby selects the legacy standby mode for Hold actions.
	LegacyStandby bool
}

// Deps are the collaborators of the loop. Log and Sink may be nil.
type Deps struct {
	Prices    PriceSource
	Telemetry Telemetry
	Actuator  Actuator
	Store     Store
	Planner   Planner
	Log       logger.Logger
	Sink      metrics.MetricsSink
}

// Loop runs the Polling -> Computing -> Applying -> Waiting cycle until its
// context is cancelled. Every failure aborts the current cycle only; the
// loop itself never stops on an error.
type Loop struct {
	cfg     Config
	battery model.StorageState
	d       Deps

	now func() time.Time
}

// NewLoop returns a Loop for the given battery. The battery's SoCKWh field is
// ignored; the state of charge is refreshed from telemetry every cycle.
func NewLoop(cfg Config, battery model.StorageState, d Deps) *Loop {
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = 10 * time.Minute
	}
	if cfg.ToleranceKW <= 0 {
		cfg.ToleranceKW = DefaultToleranceKW
	}
	if d.Log == nil {
		d.Log = nopLogger{}
	}
	if d.Sink == nil {
		d.Sink = metrics.NopSink{}
	}
	return &Loop{cfg: cfg, battery: battery, d: d, now: time.Now}
}

// Run blocks until ctx is cancelled. Cancellation is observed both at the
// top of each iteration and during the wait phase.
func (l *Loop) Run(ctx context.Context) {
	l.d.Log.Infof("control loop started, refresh interval %s", l.cfg.RefreshInterval)
	for {
		select {
		case <-ctx.Done():
			l.d.Log.Infof("control loop stopped: %v", ctx.Err())
			return
		default:
		}

		start := l.now()
		ev := l.runCycle(ctx)
		ev.Time = start
		ev.Duration = l.now().Sub(start)
		l.record(ev)

		timer := time.NewTimer(l.waitDuration(l.now()))
		select {
		case <-ctx.Done():
			timer.Stop()
			l.d.Log.Infof("control loop stopped: %v", ctx.Err())
			return
		case <-timer.C:
		}
	}
}

// record ships the cycle event to the sink. Sinks are external code and get
// the same containment as cycles: a panicking sink must not stop the loop.
func (l *Loop) record(ev metrics.CycleEvent) {
	defer func() {
		if r := recover(); r != nil {
			l.d.Log.Errorf("metrics sink panic recovered: %v", r)
		}
	}()
	if err := l.d.Sink.RecordCycle(ev); err != nil {
		l.d.Log.Warnf("record cycle: %v", err)
	}
}

// runCycle executes one Polling -> Computing -> Applying pass. All failures,
// including panics, are contained here so a single bad cycle can never take
// the loop down.
func (l *Loop) runCycle(ctx context.Context) (ev metrics.CycleEvent) {
	defer func() {
		if r := recover(); r != nil {
			l.d.Log.Errorf("cycle panic recovered: %v", r)
			ev.Outcome = "panic"
		}
	}()

	abort := func(reason string, err error) metrics.CycleEvent {
		if err != nil {
			l.d.Log.Errorf("cycle aborted (%s): %v", reason, err)
		} else {
			l.d.Log.Warnf("cycle aborted (%s)", reason)
		}
		ev.Outcome = "aborted"
		ev.Reason = reason
		return ev
	}

	hour := model.HourStart(l.now())

	// Polling: refresh telemetry and the price horizon.
	socFraction, err := l.d.Telemetry.GetStateOfCharge(ctx)
	if err != nil {
		return abort("telemetry_soc", err)
	}
	livePower, err := l.d.Telemetry.GetLivePower(ctx)
	if err != nil {
		return abort("telemetry_power", err)
	}
	st := l.battery.WithSoC(socFraction)
	ev.SoCKWh = st.SoCKWh
	ev.LivePowerW = livePower

	horizon, err := l.d.Prices.GetHorizon(ctx)
	if err != nil {
		return abort("prices", err)
	}
	horizon = horizon.FilterFrom(hour)
	if len(horizon) == 0 {
		return abort("empty_horizon", nil)
	}
	if !horizon.HasHour(hour) {
		return abort("missing_current_hour", nil)
	}

	// Computing: solve the schedule.
	solveStart := l.now()
	sol, optErr := l.d.Planner.Optimize(horizon, st)
	if pr, ok := l.d.Sink.(metrics.PlanRecorder); ok {
		status := "error"
		if optErr == nil {
			status = sol.Status.String()
		}
		if err := pr.RecordPlan(metrics.PlanEvent{
			Time:          solveStart,
			Status:        status,
			Positions:     len(horizon),
			Cost:          sol.Cost,
			SolveDuration: l.now().Sub(solveStart),
		}); err != nil {
			l.d.Log.Warnf("record plan: %v", err)
		}
	}
	if optErr != nil {
		return abort("optimize", optErr)
	}

	// Applying: derive, translate, and push the mode if it changed.
	action := DeriveAction(sol, 0, l.cfg.ToleranceKW)
	mode := TranslateAction(action, l.cfg.LegacyStandby)
	ev.Action = action.String()
	ev.Mode = mode.String()

	snap, err := l.d.Store.Load()
	if err != nil {
		return abort("store_load", err)
	}
	if snap.Device.LastMode != nil && *snap.Device.LastMode == mode {
		l.d.Log.Debugw("device mode unchanged", map[string]any{
			"mode":   mode.String(),
			"action": action.String(),
		})
		ev.Outcome = "unchanged"
		return ev
	}

	if err := l.d.Actuator.SetMode(ctx, mode); err != nil {
		return abort("actuate", err)
	}
	ev.Applied = true
	l.d.Log.Infof("applied device mode %s (action %s, soc %.2f kWh)", mode, action, st.SoCKWh)

	if err := l.d.Store.SaveDeviceState(DeviceState{LastMode: &mode, AppliedAt: l.now()}); err != nil {
		// The device already accepted the mode; persisted state diverges
		// until the next successful write.
		l.d.Log.Errorf("device mode applied but not persisted: %v", err)
		ev.Outcome = "applied"
		ev.Reason = "persist_failed"
		return ev
	}
	ev.Outcome = "applied"
	return ev
}

// waitDuration returns the time to sleep before the next cycle: the refresh
// interval, capped by the time remaining until the next hour boundary.
func (l *Loop) waitDuration(now time.Time) time.Duration {
	untilNextHour := model.HourStart(now).Add(time.Hour).Sub(now)
	if untilNextHour < l.cfg.RefreshInterval {
		return untilNextHour
	}
	return l.cfg.RefreshInterval
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any)         {}
func (nopLogger) Debugw(string, map[string]any) {}
func (nopLogger) Infof(string, ...any)          {}
func (nopLogger) Warnf(string, ...any)          {}
func (nopLogger) Errorf(string, ...any)         {}
