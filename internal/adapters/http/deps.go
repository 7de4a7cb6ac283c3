package http

import (
	"context"
	"time"

	"github.com/samirrijal/bagfinder/internal/core/usecases"
)

// Pinger is a backing service that can report whether it is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Connector is a broker connection that knows its own state.
type Connector interface {
	Connected() bool
}

// QueryDefaults are applied when a request omits a filter parameter.
type QueryDefaults struct {
	Municipality string
	MinArea      float64
}

// Dependencies holds all services needed by HTTP handlers.
// Database, Cache and Events are optional; leave them nil when not configured.
type Dependencies struct {
	Properties *usecases.PropertyService
	Database   Pinger
	Cache      Pinger
	Events     Connector
	Defaults   QueryDefaults
	// DataTimeout bounds the data endpoints. Keep it above the PDOK client
	// timeout so an upstream timeout still ends in a fallback response.
	DataTimeout time.Duration
}

func (d *Dependencies) dataTimeout() time.Duration {
	if d.DataTimeout <= 0 {
		return 15 * time.Second
	}
	return d.DataTimeout
}

// defaults falls back to Rotterdam/1000 only when Defaults is left unset.
// A configured minimum area of 0 is kept.
func (d *Dependencies) defaults() QueryDefaults {
	if d.Defaults == (QueryDefaults{}) {
		return QueryDefaults{Municipality: "Rotterdam", MinArea: 1000}
	}
	q := d.Defaults
	if q.Municipality == "" {
		q.Municipality = "Rotterdam"
	}
	if q.MinArea < 0 {
		q.MinArea = 1000
	}
	return q
}
