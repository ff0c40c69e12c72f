// Package app wires the configuration into a runnable service.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/kilianp07/storageopt/config"
	"github.com/kilianp07/storageopt/core/control"
	coremetrics "github.com/kilianp07/storageopt/core/metrics"
	"github.com/kilianp07/storageopt/core/optimizer"
	"github.com/kilianp07/storageopt/infra/announce"
	"github.com/kilianp07/storageopt/infra/device"
	"github.com/kilianp07/storageopt/infra/logger"
	"github.com/kilianp07/storageopt/infra/metrics"
	"github.com/kilianp07/storageopt/infra/prices"
	"github.com/kilianp07/storageopt/infra/store"
)

// Service owns the control loop, the price refresh loop and the sinks. The
// two loops never talk to each other directly; they share the persisted
// snapshot, each writing its own section.
type Service struct {
	loop    *control.Loop
	refresh *prices.RefreshLoop
	pub     *announce.Publisher
	log     logger.Logger

	promEnabled bool
	promPort    string
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")

	var sinks []coremetrics.MetricsSink
	if cfg.Metrics.PrometheusEnabled {
		sink, err := metrics.NewPromSink()
		if err != nil {
			return nil, fmt.Errorf("prom sink: %w", err)
		}
		sinks = append(sinks, sink)
	}
	if cfg.Metrics.InfluxEnabled {
		sinks = append(sinks, metrics.NewInfluxSinkWithFallback(
			cfg.Metrics.InfluxURL, cfg.Metrics.InfluxToken, cfg.Metrics.InfluxOrg, cfg.Metrics.InfluxBucket))
	}
	var pub *announce.Publisher
	if cfg.Announce.Enabled {
		p, err := announce.New(cfg.Announce)
		if err != nil {
			return nil, fmt.Errorf("announce publisher: %w", err)
		}
		pub = p
		sinks = append(sinks, p)
	}
	var sink coremetrics.MetricsSink
	if len(sinks) == 1 {
		sink = sinks[0]
	} else if len(sinks) > 1 {
		sink = metrics.NewMultiSink(sinks...)
	}

	st := store.New(cfg.Store.Path)

	dev, err := device.NewClient(cfg.Device)
	if err != nil {
		return nil, fmt.Errorf("device client: %w", err)
	}

	priceClient := prices.NewClient(cfg.Prices)
	refresh := prices.NewRefreshLoop(priceClient, st, logger.New("prices"))

	loop := control.NewLoop(
		control.Config{
			RefreshInterval: time.Duration(cfg.Control.RefreshIntervalSeconds) * time.Second,
			ToleranceKW:     cfg.Control.ToleranceKW,
			LegacyStandby:   cfg.Device.LegacyStandby,
		},
		cfg.Battery.ToStorageState(),
		control.Deps{
			Prices:    prices.NewStoreSource(st),
			Telemetry: dev,
			Actuator:  dev,
			Store:     st,
			Planner:   optimizer.New(cfg.Optimizer),
			Log:       logger.New("control"),
			Sink:      sink,
		},
	)

	return &Service{
		loop:        loop,
		refresh:     refresh,
		pub:         pub,
		log:         logg,
		promEnabled: cfg.Metrics.PrometheusEnabled,
		promPort:    cfg.Metrics.PrometheusPort,
	}, nil
}

// Run starts both loops and blocks until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	go s.refresh.Run(ctx)
	go s.loop.Run(ctx)
	if s.promEnabled {
		go func() {
			if err := metrics.StartPromServer(ctx, s.promPort); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	<-ctx.Done()
	return nil
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	if s.pub != nil {
		s.pub.Close()
	}
	return nil
}
