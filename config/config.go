// Package config loads and validates the service configuration.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/storageopt/core/model"
	"github.com/kilianp07/storageopt/core/optimizer"
	"github.com/kilianp07/storageopt/infra/announce"
	"github.com/kilianp07/storageopt/infra/device"
	"github.com/kilianp07/storageopt/infra/prices"
)

type Config struct {
	Battery   BatteryConfig    `json:"battery"`
	Optimizer optimizer.Config `json:"optimizer"`
	Control   ControlConfig    `json:"control"`
	Prices    prices.Config    `json:"prices"`
	Device    device.Config    `json:"device"`
	Store     StoreConfig      `json:"store"`
	Metrics   MetricsConfig    `json:"metrics"`
	Announce  announce.Config  `json:"announce"`
}

// BatteryConfig describes the physical storage unit.
type BatteryConfig struct {
	CapacityKWh         float64 `json:"capacity_kwh"`
	MaxChargeKW         float64 `json:"max_charge_kw"`
	MaxDischargeKW      float64 `json:"max_discharge_kw"`
	ChargeEfficiency    float64 `json:"charge_efficiency"`
	DischargeEfficiency float64 `json:"discharge_efficiency"`
}

// SetDefaults applies sane defaults.
func (c *BatteryConfig) SetDefaults() {
	if c.ChargeEfficiency <= 0 {
		c.ChargeEfficiency = 0.95
	}
	if c.DischargeEfficiency <= 0 {
		c.DischargeEfficiency = 0.95
	}
}

// ToStorageState builds the solver-facing state. The state of charge is left
// at zero; the control loop fills it from live telemetry every cycle.
func (c BatteryConfig) ToStorageState() model.StorageState {
	return model.StorageState{
		CapacityKWh:         c.CapacityKWh,
		MaxChargeKW:         c.MaxChargeKW,
		MaxDischargeKW:      c.MaxDischargeKW,
		ChargeEfficiency:    c.ChargeEfficiency,
		DischargeEfficiency: c.DischargeEfficiency,
	}
}

// Validate checks the battery parameters through the model rules.
func (c BatteryConfig) Validate() error {
	st := c.ToStorageState()
	if err := st.Validate(); err != nil {
		return fmt.Errorf("battery: %w", err)
	}
	return nil
}

// ControlConfig drives the control loop cadence and thresholds. The legacy
// standby behaviour is a firmware property and lives on the device config.
type ControlConfig struct {
	RefreshIntervalSeconds int     `json:"refresh_interval_seconds"`
	ToleranceKW            float64 `json:"tolerance_kw"`
}

// SetDefaults applies sane defaults.
func (c *ControlConfig) SetDefaults() {
	if c.RefreshIntervalSeconds <= 0 {
		c.RefreshIntervalSeconds = 600
	}
	if c.ToleranceKW <= 0 {
		c.ToleranceKW = 0.01
	}
}

// StoreConfig locates the persisted snapshot.
type StoreConfig struct {
	Path string `json:"path"`
}

// SetDefaults applies sane defaults.
func (c *StoreConfig) SetDefaults() {
	if c.Path == "" {
		c.Path = "storageopt-state.json"
	}
}

// MetricsConfig enables the observability sinks.
type MetricsConfig struct {
	PrometheusEnabled bool   `json:"prometheus_enabled"`
	PrometheusPort    string `json:"prometheus_port"`
	InfluxEnabled     bool   `json:"influx_enabled"`
	InfluxURL         string `json:"influx_url"`
	InfluxToken       string `json:"influx_token"`
	InfluxOrg         string `json:"influx_org"`
	InfluxBucket      string `json:"influx_bucket"`
}

// SetDefaults applies sane defaults.
func (c *MetricsConfig) SetDefaults() {
	if c.PrometheusPort == "" {
		c.PrometheusPort = "9090"
	}
}

// Validate checks the enabled sinks.
func (c MetricsConfig) Validate() error {
	if c.InfluxEnabled && c.InfluxURL == "" {
		return fmt.Errorf("metrics: influx_url is required when influx is enabled")
	}
	return nil
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("SO_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "so_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.Battery.SetDefaults()
	cfg.Optimizer.SetDefaults()
	cfg.Control.SetDefaults()
	cfg.Prices.SetDefaults()
	cfg.Device.SetDefaults()
	cfg.Store.SetDefaults()
	cfg.Metrics.SetDefaults()
	cfg.Announce.SetDefaults()

	if err := cfg.Battery.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Optimizer.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Prices.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Device.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Metrics.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Announce.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
