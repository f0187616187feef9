package driven

import (
	"context"
	"errors"
	"time"

	"github.com/ericfisherdev/kubehub/internal/domain/model"
)

// ErrCacheUnavailable wraps every I/O failure of a RepositoryCache backend.
var ErrCacheUnavailable = errors.New("repository cache unavailable")

// CacheEntry is one repository and the key it is stored under.
type CacheEntry struct {
	Key  string
	Repo model.Repository
}

// RepositoryCache defines the driven port for the key-value store that holds
// projected repositories. Entries expire individually after their TTL.
type RepositoryCache interface {
	// ScanAll returns every live entry whose key starts with prefix.
	ScanAll(ctx context.Context, prefix string) ([]model.Repository, error)
	// Put stores repo under key, replacing any previous value and resetting its expiry.
	Put(ctx context.Context, key string, repo model.Repository, ttl time.Duration) error
	// PutAll stores every entry with the same ttl as one batch. When a key
	// repeats, the last entry wins.
	PutAll(ctx context.Context, entries []CacheEntry, ttl time.Duration) error
	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error
	// Flush removes every entry.
	Flush(ctx context.Context) error
}
