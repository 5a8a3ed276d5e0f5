package cache

import (
	"context"
	"time"
)

// Cache is a best-effort byte cache. Callers treat every error as a miss.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// Clear deletes every key matching a glob pattern such as "category:*:m1".
	Clear(ctx context.Context, pattern string) error
}
