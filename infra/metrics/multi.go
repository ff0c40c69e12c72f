package metrics

import coremetrics "github.com/kilianp07/storageopt/core/metrics"

// MultiSink fans events out to multiple sinks.
type MultiSink struct {
	Sinks []coremetrics.MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...coremetrics.MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordCycle forwards the event to all sinks, returning the first error
// encountered.
func (m *MultiSink) RecordCycle(ev coremetrics.CycleEvent) error {
	var firstErr error
	for _, s := range m.Sinks {
		if err := s.RecordCycle(ev); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// RecordPlan forwards plan events to the sinks that record them.
func (m *MultiSink) RecordPlan(ev coremetrics.PlanEvent) error {
	var firstErr error
	for _, s := range m.Sinks {
		if rec, ok := s.(coremetrics.PlanRecorder); ok {
			if err := rec.RecordPlan(ev); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
