package cache

import (
	"context"
	"errors"
	"time"
)

// ErrKeyNotFound is returned (wrapped with the key) when a key is absent.
var ErrKeyNotFound = errors.New("key not found")

// ErrLockHeld is returned when a lock is already owned by someone else.
var ErrLockHeld = errors.New("lock already held")

// Cache defines the caching operations interface following hexagonal architecture.
// This is a port that can be implemented by different cache providers (Redis, Memcached, etc.).
type Cache interface {
	// Get retrieves a value from the cache by key.
	// Returns an error wrapping ErrKeyNotFound when the key does not exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in the cache with the specified key and TTL.
	// TTL of 0 means no expiration.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// SetNX stores the value only if the key does not exist yet.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)

	// DeleteIfEquals removes the key only while it still holds the given value.
	DeleteIfEquals(ctx context.Context, key string, value []byte) (bool, error)

	// ExpireIfEquals resets the key's TTL only while it still holds the given value.
	ExpireIfEquals(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)

	// Delete removes a value from the cache by key.
	Delete(ctx context.Context, key string) error

	// Ping checks if the cache service is reachable.
	Ping(ctx context.Context) error

	// Close closes the cache connection.
	Close() error
}

// Locker hands out exclusive, expiring locks keyed by name.
type Locker interface {
	// Acquire takes the lock or returns ErrLockHeld. The lock is held until the
	// returned function releases it; ttl only bounds how long a crashed owner keeps it.
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}
