package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no value is stored under a key.
	ErrNotFound = errors.New("no value stored for key")
)

// KV is the durable key-value state shared by the forecast cache and the
// dismissed-notification set. Implementations must be safe for concurrent use.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value under key. A positive ttl expires the key after that
	// long; zero keeps it until deleted.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
