// Package device talks to the vendor battery API: telemetry reads and mode
// writes. It implements control.Telemetry and control.Actuator.
package device

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/storageopt/core/control"
	"github.com/kilianp07/storageopt/infra/logger"
)

// Config defines the connection parameters for the device API.
type Config struct {
	BaseURL string `json:"base_url"`
	// UnitID identifies the storage unit on installations with several.
	UnitID   string `json:"unit_id"`
	Username string `json:"username"`
	Password string `json:"password"`
	// LegacyStandby reports whether the firmware still requires the standby
	// mode for holds.
	LegacyStandby  bool `json:"legacy_standby"`
	TimeoutSeconds int  `json:"timeout_seconds"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 10
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("device base_url is required")
	}
	if c.UnitID != "" {
		if _, err := uuid.Parse(c.UnitID); err != nil {
			return fmt.Errorf("device unit_id: %w", err)
		}
	}
	return nil
}

// Client is an HTTP client for the device API.
type Client struct {
	cfg  Config
	unit uuid.UUID
	http *http.Client
	log  logger.Logger
}

// NewClient creates a Client from the configuration.
func NewClient(cfg Config) (*Client, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	unit := uuid.Nil
	if cfg.UnitID != "" {
		unit = uuid.MustParse(cfg.UnitID)
	}
	return &Client{
		cfg:  cfg,
		unit: unit,
		http: &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		log:  logger.New("device-client"),
	}, nil
}

type socResponse struct {
	SoC float64 `json:"soc"`
}

type powerResponse struct {
	PowerW float64 `json:"power_w"`
}

// GetStateOfCharge returns the state of charge as a fraction in [0, 1].
func (c *Client) GetStateOfCharge(ctx context.Context) (float64, error) {
	var out socResponse
	if err := c.get(ctx, "/api/v1/soc", &out); err != nil {
		return 0, err
	}
	if out.SoC < 0 || out.SoC > 1 {
		return 0, fmt.Errorf("device reported state of charge %v outside [0,1]", out.SoC)
	}
	return out.SoC, nil
}

// GetLivePower returns the current net power in watts; positive means
// consumption, negative production.
func (c *Client) GetLivePower(ctx context.Context) (float64, error) {
	var out powerResponse
	if err := c.get(ctx, "/api/v1/power", &out); err != nil {
		return 0, err
	}
	return out.PowerW, nil
}

// modeRequest is the vendor wire form of a DeviceMode.
type modeRequest struct {
	Mode           string `json:"mode"`
	AllowCharge    bool   `json:"allow_charge"`
	AllowDischarge bool   `json:"allow_discharge"`
	UnitID         string `json:"unit_id,omitempty"`
}

// SetMode applies the given device mode.
func (c *Client) SetMode(ctx context.Context, mode control.DeviceMode) error {
	body := modeRequest{
		Mode:           mode.Kind.String(),
		AllowCharge:    mode.Perms.Charge,
		AllowDischarge: mode.Perms.Discharge,
	}
	if c.unit != uuid.Nil {
		body.UnitID = c.unit.String()
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode mode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/api/v1/mode", bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("create mode request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("set mode: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		echo, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("set mode: unexpected status %d, body: %s", resp.StatusCode, echo)
	}
	c.log.Debugw("device mode set", map[string]any{"mode": mode.String()})
	return nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	c.authorize(req)
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		echo, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("request %s: unexpected status %d, body: %s", path, resp.StatusCode, echo)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.cfg.Username != "" {
		req.SetBasicAuth(c.cfg.Username, c.cfg.Password)
	}
}
