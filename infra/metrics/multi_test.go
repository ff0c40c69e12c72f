package metrics

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	coremetrics "github.com/kilianp07/storageopt/core/metrics"
)

type recordingSink struct {
	cycles int
	plans  int
	err    error
}

func (r *recordingSink) RecordCycle(coremetrics.CycleEvent) error {
	r.cycles++
	return r.err
}

func (r *recordingSink) RecordPlan(coremetrics.PlanEvent) error {
	r.plans++
	return r.err
}

type cycleOnlySink struct{ cycles int }

func (c *cycleOnlySink) RecordCycle(coremetrics.CycleEvent) error {
	c.cycles++
	return nil
}

func TestMultiSink_FansOut(t *testing.T) {
	a := &recordingSink{}
	b := &cycleOnlySink{}
	m := NewMultiSink(a, b)

	assert.NoError(t, m.RecordCycle(coremetrics.CycleEvent{}))
	assert.NoError(t, m.RecordPlan(coremetrics.PlanEvent{}))

	assert.Equal(t, 1, a.cycles)
	assert.Equal(t, 1, a.plans)
	assert.Equal(t, 1, b.cycles)
}

func TestMultiSink_ReturnsFirstErrorButVisitsAll(t *testing.T) {
	failing := &recordingSink{err: errors.New("down")}
	ok := &recordingSink{}
	m := NewMultiSink(failing, ok)

	err := m.RecordCycle(coremetrics.CycleEvent{})
	assert.Error(t, err)
	assert.Equal(t, 1, ok.cycles, "remaining sinks must still record")
}
