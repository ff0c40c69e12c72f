package control

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kilianp07/storageopt/core/metrics"
	"github.com/kilianp07/storageopt/core/model"
	"github.com/kilianp07/storageopt/core/optimizer"
	"github.com/kilianp07/storageopt/core/solver"
)

type mockTelemetry struct {
	soc      float64
	power    float64
	socErr   error
	powerErr error
}

func (m *mockTelemetry) GetStateOfCharge(context.Context) (float64, error) {
	return m.soc, m.socErr
}

func (m *mockTelemetry) GetLivePower(context.Context) (float64, error) {
	return m.power, m.powerErr
}

type mockPrices struct {
	horizon model.Horizon
	err     error
	calls   int
}

func (m *mockPrices) GetHorizon(context.Context) (model.Horizon, error) {
	m.calls++
	return m.horizon, m.err
}

type mockActuator struct {
	modes []DeviceMode
	err   error
}

func (m *mockActuator) SetMode(_ context.Context, mode DeviceMode) error {
	if m.err != nil {
		return m.err
	}
	m.modes = append(m.modes, mode)
	return nil
}

type mockStore struct {
	snap    Snapshot
	loadErr error
	saveErr error
	saved   []DeviceState
}

func (m *mockStore) Load() (Snapshot, error) { return m.snap, m.loadErr }

func (m *mockStore) SaveDeviceState(st DeviceState) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = append(m.saved, st)
	return nil
}

func (m *mockStore) SavePriceState(PriceState) error { return nil }

type mockPlanner struct {
	sol   optimizer.Solution
	err   error
	panic bool
	calls int
}

func (m *mockPlanner) Optimize(model.Horizon, model.StorageState) (optimizer.Solution, error) {
	m.calls++
	if m.panic {
		panic("planner exploded")
	}
	return m.sol, m.err
}

type panicSink struct{}

func (panicSink) RecordCycle(metrics.CycleEvent) error { panic("sink exploded") }

var testNow = time.Date(2026, 3, 10, 14, 25, 0, 0, time.UTC)

func alignedHorizon(hours int) model.Horizon {
	start := model.HourStart(testNow)
	h := make(model.Horizon, hours)
	for i := range h {
		h[i] = model.TariffPoint{Timestamp: start.Add(time.Duration(i) * time.Hour), Price: 0.2}
	}
	return h
}

func chargingSolution() optimizer.Solution {
	return optimizer.Solution{
		Status: solver.StatusOptimal,
		Points: []optimizer.PlanPoint{{ChargeKW: 2, Charging: true}},
	}
}

type loopFixture struct {
	loop      *Loop
	telemetry *mockTelemetry
	prices    *mockPrices
	actuator  *mockActuator
	store     *mockStore
	planner   *mockPlanner
}

func newFixture(cfg Config) *loopFixture {
	f := &loopFixture{
		telemetry: &mockTelemetry{soc: 0.5, power: -300},
		prices:    &mockPrices{horizon: alignedHorizon(4)},
		actuator:  &mockActuator{},
		store:     &mockStore{},
		planner:   &mockPlanner{sol: chargingSolution()},
	}
	battery := model.StorageState{
		CapacityKWh:         10,
		MaxChargeKW:         3,
		MaxDischargeKW:      3,
		ChargeEfficiency:    0.95,
		DischargeEfficiency: 0.95,
	}
	f.loop = NewLoop(cfg, battery, Deps{
		Prices:    f.prices,
		Telemetry: f.telemetry,
		Actuator:  f.actuator,
		Store:     f.store,
		Planner:   f.planner,
	})
	f.loop.now = func() time.Time { return testNow }
	return f
}

func TestRunCycle_AppliesChangedMode(t *testing.T) {
	f := newFixture(Config{})
	ev := f.loop.runCycle(context.Background())

	if ev.Outcome != "applied" {
		t.Fatalf("outcome = %q, want applied", ev.Outcome)
	}
	if len(f.actuator.modes) != 1 {
		t.Fatalf("expected one actuator call, got %d", len(f.actuator.modes))
	}
	want := TranslateAction(ActionCharge, false)
	if f.actuator.modes[0] != want {
		t.Fatalf("applied mode %v, want %v", f.actuator.modes[0], want)
	}
	if len(f.store.saved) != 1 || f.store.saved[0].LastMode == nil || *f.store.saved[0].LastMode != want {
		t.Fatalf("device state not persisted after apply: %+v", f.store.saved)
	}
	if ev.SoCKWh != 5 {
		t.Fatalf("soc = %v kWh, want 5", ev.SoCKWh)
	}
}

func TestRunCycle_IdempotentModeWrite(t *testing.T) {
	f := newFixture(Config{})
	current := TranslateAction(ActionCharge, false)
	f.store.snap.Device.LastMode = &current

	ev := f.loop.runCycle(context.Background())

	if ev.Outcome != "unchanged" {
		t.Fatalf("outcome = %q, want unchanged", ev.Outcome)
	}
	if len(f.actuator.modes) != 0 {
		t.Fatalf("actuator must receive zero calls, got %d", len(f.actuator.modes))
	}
	if len(f.store.saved) != 0 {
		t.Fatalf("no persistence expected, got %d saves", len(f.store.saved))
	}
}

func TestRunCycle_AbortsOnEmptyHorizon(t *testing.T) {
	f := newFixture(Config{})
	f.prices.horizon = nil

	ev := f.loop.runCycle(context.Background())

	if ev.Outcome != "aborted" || ev.Reason != "empty_horizon" {
		t.Fatalf("unexpected event %+v", ev)
	}
	if f.planner.calls != 0 {
		t.Fatal("optimizer must not be invoked without a horizon")
	}
	if len(f.actuator.modes) != 0 {
		t.Fatal("actuator must not be invoked without a horizon")
	}
}

func TestRunCycle_AbortsWhenCurrentHourMissing(t *testing.T) {
	f := newFixture(Config{})
	// Horizon starts one hour in the future.
	f.prices.horizon = model.Horizon{
		{Timestamp: model.HourStart(testNow).Add(time.Hour), Price: 0.2},
	}

	ev := f.loop.runCycle(context.Background())

	if ev.Outcome != "aborted" || ev.Reason != "missing_current_hour" {
		t.Fatalf("unexpected event %+v", ev)
	}
	if f.planner.calls != 0 {
		t.Fatal("optimizer must not run on a misaligned horizon")
	}
}

func TestRunCycle_DropsStalePricePoints(t *testing.T) {
	f := newFixture(Config{})
	stale := model.TariffPoint{Timestamp: model.HourStart(testNow).Add(-2 * time.Hour), Price: 0.1}
	f.prices.horizon = append(model.Horizon{stale}, alignedHorizon(2)...)
	f.planner.sol = optimizer.Solution{
		Status: solver.StatusOptimal,
		Points: []optimizer.PlanPoint{{}, {}},
	}

	ev := f.loop.runCycle(context.Background())

	if ev.Outcome != "applied" {
		t.Fatalf("outcome = %q, want applied", ev.Outcome)
	}
}

func TestRunCycle_DeviceFailureSkipsPersist(t *testing.T) {
	f := newFixture(Config{})
	f.actuator.err = errors.New("device offline")

	ev := f.loop.runCycle(context.Background())

	if ev.Outcome != "aborted" || ev.Reason != "actuate" {
		t.Fatalf("unexpected event %+v", ev)
	}
	if len(f.store.saved) != 0 {
		t.Fatal("mode must not be persisted when the device call fails")
	}
}

func TestRunCycle_PersistFailureAfterApply(t *testing.T) {
	f := newFixture(Config{})
	f.store.saveErr = errors.New("disk full")

	ev := f.loop.runCycle(context.Background())

	if ev.Outcome != "applied" || ev.Reason != "persist_failed" {
		t.Fatalf("unexpected event %+v", ev)
	}
	if len(f.actuator.modes) != 1 {
		t.Fatal("device call must have happened before the failed persist")
	}
}

func TestRunCycle_InfeasiblePlanAppliesSafeFallback(t *testing.T) {
	f := newFixture(Config{})
	f.planner.sol = optimizer.Solution{Status: solver.StatusInfeasible}

	ev := f.loop.runCycle(context.Background())

	if ev.Outcome != "applied" {
		t.Fatalf("outcome = %q, want applied", ev.Outcome)
	}
	want := TranslateAction(ActionSafeFallback, false)
	if len(f.actuator.modes) != 1 || f.actuator.modes[0] != want {
		t.Fatalf("expected safe fallback mode, got %+v", f.actuator.modes)
	}
}

func TestRunCycle_OptimizerErrorAborts(t *testing.T) {
	f := newFixture(Config{})
	f.planner.err = errors.New("solver unavailable")

	ev := f.loop.runCycle(context.Background())

	if ev.Outcome != "aborted" || ev.Reason != "optimize" {
		t.Fatalf("unexpected event %+v", ev)
	}
	if len(f.actuator.modes) != 0 {
		t.Fatal("no device change on a failed solve")
	}
}

func TestRunCycle_TelemetryFailureAborts(t *testing.T) {
	f := newFixture(Config{})
	f.telemetry.socErr = errors.New("timeout")

	ev := f.loop.runCycle(context.Background())

	if ev.Outcome != "aborted" || ev.Reason != "telemetry_soc" {
		t.Fatalf("unexpected event %+v", ev)
	}
	if f.prices.calls != 0 {
		t.Fatal("cycle must abort before fetching prices")
	}
}

func TestRunCycle_RecoversFromPanic(t *testing.T) {
	f := newFixture(Config{})
	f.planner.panic = true

	ev := f.loop.runCycle(context.Background())

	if ev.Outcome != "panic" {
		t.Fatalf("outcome = %q, want panic", ev.Outcome)
	}
}

func TestRecord_SinkPanicIsContained(t *testing.T) {
	f := newFixture(Config{})
	f.loop.d.Sink = panicSink{}

	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("sink panic escaped the loop: %v", r)
		}
	}()
	f.loop.record(metrics.CycleEvent{Outcome: "applied"})
}

func TestWaitDuration_HourBoundaryCeiling(t *testing.T) {
	f := newFixture(Config{RefreshInterval: 600 * time.Second})

	// 30 seconds remain until the next hour: wait 30s, not 600s.
	now := time.Date(2026, 3, 10, 14, 59, 30, 0, time.UTC)
	if got := f.loop.waitDuration(now); got != 30*time.Second {
		t.Fatalf("wait = %v, want 30s", got)
	}

	// Far from the boundary the refresh interval wins.
	now = time.Date(2026, 3, 10, 14, 5, 0, 0, time.UTC)
	if got := f.loop.waitDuration(now); got != 600*time.Second {
		t.Fatalf("wait = %v, want 600s", got)
	}
}

func TestRun_StopsOnCancellation(t *testing.T) {
	f := newFixture(Config{RefreshInterval: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		f.loop.Run(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop on cancellation")
	}
}
