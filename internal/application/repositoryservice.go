package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ericfisherdev/kubehub/internal/domain/model"
	"github.com/ericfisherdev/kubehub/internal/domain/port/driven"
)

// RepositoryService serves topic searches cache-aside: a populated cache is
// returned as-is, and only an empty one triggers a GitHub search and refill.
// It depends only on port interfaces.
type RepositoryService struct {
	searcher driven.RepositorySearcher
	cache    driven.RepositoryCache
	ttl      time.Duration
	logger   *slog.Logger
}

// NewRepositoryService creates a new RepositoryService. Every refilled entry
// expires ttl after it was written.
func NewRepositoryService(
	searcher driven.RepositorySearcher,
	cache driven.RepositoryCache,
	ttl time.Duration,
	logger *slog.Logger,
) *RepositoryService {
	return &RepositoryService{
		searcher: searcher,
		cache:    cache,
		ttl:      ttl,
		logger:   logger,
	}
}

// GetByTopic returns the cached repositories for topic. On a cache miss it
// searches GitHub for at least targetCount repositories, stores them in one
// batch under their topic-scoped keys, and returns the re-read cache contents.
// The result size on a hit reflects the last refill, not targetCount.
func (s *RepositoryService) GetByTopic(ctx context.Context, topic string, targetCount int) ([]model.Repository, error) {
	prefix := model.CacheKeyPrefix(topic)

	cached, err := s.cache.ScanAll(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("reading cache for topic %s: %w", topic, err)
	}
	if len(cached) > 0 {
		s.logger.Debug("repository cache hit", "topic", topic, "count", len(cached))
		return cached, nil
	}

	s.logger.Info("repository cache miss, searching github", "topic", topic, "target_count", targetCount)

	start := time.Now()
	fetched, err := s.searcher.SearchByTopic(ctx, topic, targetCount)
	if err != nil {
		return nil, fmt.Errorf("searching topic %s: %w", topic, err)
	}

	entries := make([]driven.CacheEntry, 0, len(fetched))
	for _, repo := range fetched {
		entries = append(entries, driven.CacheEntry{Key: model.CacheKey(topic, repo.ID), Repo: repo})
	}
	if err := s.cache.PutAll(ctx, entries, s.ttl); err != nil {
		return nil, fmt.Errorf("caching %d repositories for topic %s: %w", len(entries), topic, err)
	}

	s.logger.Info("repository cache refilled",
		"topic", topic,
		"fetched", len(fetched),
		"ttl", s.ttl,
		"duration", time.Since(start).Round(time.Millisecond),
	)

	repos, err := s.cache.ScanAll(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("re-reading cache for topic %s: %w", topic, err)
	}

	return repos, nil
}

// CacheAvailable reports whether the cache backend is reachable.
func (s *RepositoryService) CacheAvailable(ctx context.Context) error {
	return s.cache.Ping(ctx)
}
