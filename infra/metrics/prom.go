package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/storageopt/core/metrics"
)

// PromSink records control cycle and plan events in Prometheus metrics.
type PromSink struct {
	cycles    *prometheus.CounterVec
	soc       prometheus.Gauge
	planCost  prometheus.Gauge
	solveTime prometheus.Histogram
}

// NewPromSink registers the scheduler metrics on the default Prometheus
// registerer. The Prometheus server should be started separately.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	cycles := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storage_control_cycles_total",
		Help: "Total number of control loop cycles by outcome and action",
	}, []string{"outcome", "action"})
	soc := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "storage_state_of_charge_kwh",
		Help: "Battery state of charge observed at the last cycle",
	})
	planCost := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "storage_plan_cost",
		Help: "Objective value of the last accepted schedule",
	})
	solveTime := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "storage_plan_solve_seconds",
		Help:    "Time spent solving the schedule problem",
		Buckets: prometheus.DefBuckets,
	})

	if err := reg.Register(cycles); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			cycles = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(soc); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			soc = are.ExistingCollector.(prometheus.Gauge)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(planCost); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			planCost = are.ExistingCollector.(prometheus.Gauge)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(solveTime); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			solveTime = are.ExistingCollector.(prometheus.Histogram)
		} else {
			return nil, err
		}
	}

	return &PromSink{cycles: cycles, soc: soc, planCost: planCost, solveTime: solveTime}, nil
}

// RecordCycle increments the cycle counter and updates the SoC gauge.
func (s *PromSink) RecordCycle(ev coremetrics.CycleEvent) error {
	s.cycles.WithLabelValues(ev.Outcome, ev.Action).Inc()
	if ev.SoCKWh > 0 || ev.Outcome == "applied" || ev.Outcome == "unchanged" {
		s.soc.Set(ev.SoCKWh)
	}
	return nil
}

// RecordPlan updates the plan cost gauge and solve duration histogram.
func (s *PromSink) RecordPlan(ev coremetrics.PlanEvent) error {
	s.planCost.Set(ev.Cost)
	s.solveTime.Observe(ev.SolveDuration.Seconds())
	return nil
}
