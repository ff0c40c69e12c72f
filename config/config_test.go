package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validYAML = `
battery:
  capacity_kwh: 10
  max_charge_kw: 2
  max_discharge_kw: 3
prices:
  base_url: http://prices.local
device:
  base_url: http://device.local
`

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "config.yaml", validYAML))
	require.NoError(t, err)

	assert.Equal(t, 600, cfg.Control.RefreshIntervalSeconds)
	assert.Equal(t, 0.01, cfg.Control.ToleranceKW)
	assert.Equal(t, 0.95, cfg.Battery.ChargeEfficiency)
	assert.Equal(t, 1.01, cfg.Optimizer.DischargeBias)
	assert.Equal(t, 3600, cfg.Prices.RefreshIntervalSeconds)
	assert.Equal(t, "storageopt-state.json", cfg.Store.Path)
	assert.Equal(t, "9090", cfg.Metrics.PrometheusPort)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("SO_CONTROL__TOLERANCE_KW", "0.5")
	cfg, err := Load(writeConfig(t, "config.yaml", validYAML))
	require.NoError(t, err)
	assert.Equal(t, 0.5, cfg.Control.ToleranceKW)
}

func TestLoad_DeviceOwnsLegacyStandby(t *testing.T) {
	cfg, err := Load(writeConfig(t, "config.yaml", validYAML+"  legacy_standby: true\n"))
	require.NoError(t, err)
	assert.True(t, cfg.Device.LegacyStandby)
}

func TestLoad_UnsupportedFormat(t *testing.T) {
	_, err := Load(writeConfig(t, "config.toml", "x = 1"))
	assert.Error(t, err)
}

func TestLoad_RejectsInvalidBattery(t *testing.T) {
	_, err := Load(writeConfig(t, "config.yaml", `
battery:
  capacity_kwh: -1
prices:
  base_url: http://prices.local
device:
  base_url: http://device.local
`))
	assert.Error(t, err)
}

func TestLoad_RejectsMissingDeviceURL(t *testing.T) {
	_, err := Load(writeConfig(t, "config.yaml", `
battery:
  capacity_kwh: 10
  max_charge_kw: 2
  max_discharge_kw: 3
prices:
  base_url: http://prices.local
`))
	assert.Error(t, err)
}

func TestToStorageState(t *testing.T) {
	b := BatteryConfig{CapacityKWh: 10, MaxChargeKW: 2, MaxDischargeKW: 3}
	b.SetDefaults()
	st := b.ToStorageState()
	assert.Equal(t, 10.0, st.CapacityKWh)
	assert.Equal(t, 0.95, st.DischargeEfficiency)
	assert.Zero(t, st.SoCKWh)
}
