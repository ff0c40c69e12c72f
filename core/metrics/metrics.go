// Package metrics defines the observability interfaces implemented by the
// infra sinks. The control loop records one CycleEvent per iteration and one
// PlanEvent per optimizer invocation.
package metrics

import "time"

// CycleEvent summarises one control loop iteration.
type CycleEvent struct {
	Time       time.Time
	Outcome    string // applied, unchanged, aborted, panic
	Reason     string // abort cause, empty otherwise
	Action     string
	Mode       string
	SoCKWh     float64
	LivePowerW float64
	Applied    bool
	Duration   time.Duration
}

// PlanEvent summarises one optimizer solve.
type PlanEvent struct {
	Time          time.Time
	Status        string
	Positions     int
	Cost          float64
	SolveDuration time.Duration
}

// MetricsSink records control cycle outcomes for observability purposes.
type MetricsSink interface {
	RecordCycle(ev CycleEvent) error
}

// PlanRecorder records optimizer solve outcomes. Sinks may optionally
// implement it in addition to MetricsSink.
type PlanRecorder interface {
	RecordPlan(ev PlanEvent) error
}

// NopSink discards all events.
type NopSink struct{}

// RecordCycle implements MetricsSink.
func (NopSink) RecordCycle(CycleEvent) error { return nil }

// RecordPlan implements PlanRecorder.
func (NopSink) RecordPlan(PlanEvent) error { return nil }
