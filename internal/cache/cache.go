// Package cache keeps recently served logo bytes close to the API so remote
// images are not downloaded from the image host on every request.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned by Get when the key is absent or expired.
var ErrMiss = errors.New("cache miss")

// Cache is a byte cache keyed by string.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores data for ttl. A zero ttl keeps the entry until deleted.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}
