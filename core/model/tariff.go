package model

import (
	"errors"
	"time"
)

// TariffPoint is one hour of the forward price curve. Price is expressed in
// currency per kWh and may be negative when the grid pays for consumption.
type TariffPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price"`
}

// Horizon is the ordered forward price curve considered by one optimization
// call. Timestamps are hour aligned and strictly increasing.
type Horizon []TariffPoint

// HourStart truncates t to the start of its hour, preserving the location.
func HourStart(t time.Time) time.Time {
	return t.Truncate(time.Hour)
}

// Validate checks ordering and hour alignment of the horizon.
func (h Horizon) Validate() error {
	if len(h) == 0 {
		return errors.New("horizon is empty")
	}
	for i, p := range h {
		if !p.Timestamp.Equal(HourStart(p.Timestamp)) {
			return errors.New("horizon timestamp is not hour aligned")
		}
		if i > 0 && !h[i-1].Timestamp.Before(p.Timestamp) {
			return errors.New("horizon timestamps are not strictly increasing")
		}
	}
	return nil
}

// FilterFrom returns the entries at or after the given instant, preserving
// order. The result shares the backing array with h.
func (h Horizon) FilterFrom(t time.Time) Horizon {
	for i, p := range h {
		if !p.Timestamp.Before(t) {
			return h[i:]
		}
	}
	return nil
}

// HasHour reports whether an entry's timestamp equals the given instant.
func (h Horizon) HasHour(t time.Time) bool {
	for _, p := range h {
		if p.Timestamp.Equal(t) {
			return true
		}
	}
	return false
}
