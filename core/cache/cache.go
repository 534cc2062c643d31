// Package cache provides the ephemeral key-value store that carries
// conversation state between webhook calls. Every write takes an explicit
// TTL; expiry is the only lifecycle mechanism besides overwrite or delete.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a key is absent or has expired.
var ErrNotFound = errors.New("cache: key not found")

// Store abstracts ephemeral per-user key-value state.
// Implementations: Redis (production) or in-memory (tests, local dev).
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
