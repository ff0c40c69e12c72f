// Package prices retrieves the forward tariff horizon from the day-ahead
// price API and maintains it in the persisted snapshot for the control loop.
package prices

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/kilianp07/storageopt/core/model"
	"github.com/kilianp07/storageopt/infra/logger"
)

// Config defines the tariff API connection.
type Config struct {
	BaseURL      string `json:"base_url"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	TokenURL     string `json:"token_url"`
	// RefreshIntervalSeconds is the cadence of the horizon refresh loop.
	RefreshIntervalSeconds int `json:"refresh_interval_seconds"`
	TimeoutSeconds         int `json:"timeout_seconds"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.RefreshIntervalSeconds <= 0 {
		c.RefreshIntervalSeconds = 3600
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 15
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("prices base_url is required")
	}
	if c.ClientID != "" && c.TokenURL == "" {
		return fmt.Errorf("prices token_url is required when client_id is set")
	}
	return nil
}

// Client fetches tariff horizons over HTTP.
type Client struct {
	cfg  Config
	http *http.Client
	auth *ClientCred
	log  logger.Logger
}

// NewClient creates a Client from the configuration. Authentication is only
// used when a client id is configured.
func NewClient(cfg Config) *Client {
	cfg.SetDefaults()
	c := &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		log:  logger.New("prices-client"),
	}
	if cfg.ClientID != "" {
		c.auth = NewClientCred(cfg.ClientID, cfg.ClientSecret, cfg.TokenURL)
	}
	return c
}

type tariffResponse struct {
	Points []struct {
		Start time.Time `json:"start"`
		Price float64   `json:"price"`
	} `json:"points"`
}

// FetchHorizon retrieves the tariff points from the API, sorted by timestamp
// and truncated to hour boundaries.
func (c *Client) FetchHorizon(ctx context.Context) (model.Horizon, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/api/v1/tariffs", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if c.auth != nil {
		if err := c.auth.SetAuthHeader(ctx, req); err != nil {
			return nil, fmt.Errorf("failed to set auth header: %w", err)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, body)
	}

	var parsed tariffResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	horizon := make(model.Horizon, 0, len(parsed.Points))
	for _, p := range parsed.Points {
		horizon = append(horizon, model.TariffPoint{
			Timestamp: model.HourStart(p.Start),
			Price:     p.Price,
		})
	}
	sort.SliceStable(horizon, func(i, j int) bool {
		return horizon[i].Timestamp.Before(horizon[j].Timestamp)
	})
	// Truncation can fold finer-than-hourly points onto the same hour; keep
	// the first reported point of each hour so timestamps stay strictly
	// increasing.
	deduped := horizon[:0]
	for _, p := range horizon {
		if n := len(deduped); n > 0 && deduped[n-1].Timestamp.Equal(p.Timestamp) {
			continue
		}
		deduped = append(deduped, p)
	}
	return deduped, nil
}

// TokenExpiry exposes the expiry of the cached token for persistence; zero
// when unauthenticated.
func (c *Client) TokenExpiry() time.Time {
	if c.auth == nil {
		return time.Time{}
	}
	return c.auth.Expiry()
}
