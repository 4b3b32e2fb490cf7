package cache

import (
	"context"
	"time"
)

// Store is the key-value backend for cached model results. Implemented by
// Memory (dev/tests) and Redis (production).
//
// Implementations report errors honestly; it is the caller (the gateway)
// that degrades a Get error to a miss and swallows Set errors, so that the
// cache can never become a source of failure for a request.
type Store interface {
	// Get returns the cached payload for key, whether it was found, and
	// any backend error.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value under key for ttl. A ttl <= 0 is rejected by
	// implementations rather than silently meaning "forever".
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}
