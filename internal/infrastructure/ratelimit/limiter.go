// Package ratelimit provides the per-minute request window for admitted keys.
// It is advisory burst protection on top of the monthly quota ledger; the
// ledger alone is authoritative for billing.
package ratelimit

import (
	"context"
)

// Limiter answers whether one more request fits inside the current minute
// window for the given key. A limit of zero or less disables the window.
type Limiter interface {
	Allow(ctx context.Context, key string, limitPerMinute int64) (bool, error)
}
