// Package redis implements the RepositoryCache port on Redis hashes with
// native per-key expiry.
package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/ericfisherdev/kubehub/internal/domain/model"
	"github.com/ericfisherdev/kubehub/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.RepositoryCache = (*Store)(nil)

// scanBatch is the COUNT hint passed to SCAN.
const scanBatch = 100

// Hash field names. They match the JSON keys served by the API.
const (
	fieldID              = "id"
	fieldName            = "name"
	fieldFullName        = "full_name"
	fieldHTMLURL         = "html_url"
	fieldLanguage        = "language"
	fieldUpdatedAt       = "updated_at"
	fieldPushedAt        = "pushed_at"
	fieldStargazersCount = "stargazers_count"
)

// Store is the Redis implementation of the RepositoryCache port. The caller
// owns the client's lifecycle.
type Store struct {
	rdb *goredis.Client
}

// NewStore creates a Store backed by rdb.
func NewStore(rdb *goredis.Client) *Store {
	return &Store{rdb: rdb}
}

// ScanAll walks the keyspace with SCAN MATCH prefix* and decodes every hash it
// finds. SCAN may return a key more than once, so repeats are dropped. The
// HGETALLs for each SCAN page go out in one pipeline. Keys that expire between
// SCAN and HGETALL are skipped.
func (s *Store) ScanAll(ctx context.Context, prefix string) ([]model.Repository, error) {
	repos := []model.Repository{}
	seen := make(map[string]struct{})
	batch := make([]string, 0, scanBatch)

	iter := s.rdb.Scan(ctx, 0, prefix+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		batch = appendUnseen(batch, seen, iter.Val())
		if len(batch) < scanBatch {
			continue
		}
		decoded, err := s.readHashes(ctx, batch)
		if err != nil {
			return nil, err
		}
		repos = append(repos, decoded...)
		batch = batch[:0]
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan %s*: %w: %w", prefix, driven.ErrCacheUnavailable, err)
	}

	decoded, err := s.readHashes(ctx, batch)
	if err != nil {
		return nil, err
	}

	return append(repos, decoded...), nil
}

// appendUnseen appends key to batch unless it was already seen.
func appendUnseen(batch []string, seen map[string]struct{}, key string) []string {
	if _, ok := seen[key]; ok {
		return batch
	}
	seen[key] = struct{}{}
	return append(batch, key)
}

// readHashes fetches the hashes at keys in a single pipeline.
func (s *Store) readHashes(ctx context.Context, keys []string) ([]model.Repository, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	cmds := make([]*goredis.MapStringStringCmd, len(keys))
	_, err := s.rdb.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
		for i, key := range keys {
			cmds[i] = pipe.HGetAll(ctx, key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read %d keys: %w: %w", len(keys), driven.ErrCacheUnavailable, err)
	}

	repos := make([]model.Repository, 0, len(keys))
	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}

		repo, err := decodeRepository(fields)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", keys[i], err)
		}
		repos = append(repos, repo)
	}

	return repos, nil
}

// Put replaces the hash at key and sets its expiry in one MULTI/EXEC block.
func (s *Store) Put(ctx context.Context, key string, repo model.Repository, ttl time.Duration) error {
	return s.PutAll(ctx, []driven.CacheEntry{{Key: key, Repo: repo}}, ttl)
}

// PutAll replaces every hash and sets its expiry in one MULTI/EXEC block.
func (s *Store) PutAll(ctx context.Context, entries []driven.CacheEntry, ttl time.Duration) error {
	if len(entries) == 0 {
		return nil
	}

	_, err := s.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		for _, e := range entries {
			pipe.Del(ctx, e.Key)
			pipe.HSet(ctx, e.Key, encodeRepository(e.Repo))
			pipe.PExpire(ctx, e.Key, ttl)
		}
		return nil
	})
	if err != nil {
		if len(entries) == 1 {
			return fmt.Errorf("put %s: %w: %w", entries[0].Key, driven.ErrCacheUnavailable, err)
		}
		return fmt.Errorf("put %d entries: %w: %w", len(entries), driven.ErrCacheUnavailable, err)
	}

	return nil
}

// Ping checks that Redis answers PING.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping: %w: %w", driven.ErrCacheUnavailable, err)
	}
	return nil
}

// Flush drops every key in the selected database.
func (s *Store) Flush(ctx context.Context) error {
	if err := s.rdb.FlushDB(ctx).Err(); err != nil {
		return fmt.Errorf("flush: %w: %w", driven.ErrCacheUnavailable, err)
	}
	return nil
}

func encodeRepository(repo model.Repository) map[string]any {
	fields := map[string]any{
		fieldID:              strconv.FormatInt(repo.ID, 10),
		fieldName:            repo.Name,
		fieldFullName:        repo.FullName,
		fieldHTMLURL:         repo.HTMLURL,
		fieldUpdatedAt:       model.FormatTimestamp(repo.UpdatedAt),
		fieldPushedAt:        model.FormatTimestamp(repo.PushedAt),
		fieldStargazersCount: strconv.Itoa(repo.StargazersCount),
	}
	if repo.Language != nil {
		fields[fieldLanguage] = *repo.Language
	}
	return fields
}

func decodeRepository(fields map[string]string) (model.Repository, error) {
	id, err := strconv.ParseInt(fields[fieldID], 10, 64)
	if err != nil {
		return model.Repository{}, fmt.Errorf("parse %s: %w", fieldID, err)
	}

	stars, err := strconv.Atoi(fields[fieldStargazersCount])
	if err != nil {
		return model.Repository{}, fmt.Errorf("parse %s: %w", fieldStargazersCount, err)
	}

	updatedAt, err := model.ParseTimestamp(fields[fieldUpdatedAt])
	if err != nil {
		return model.Repository{}, fmt.Errorf("parse %s: %w", fieldUpdatedAt, err)
	}

	pushedAt, err := model.ParseTimestamp(fields[fieldPushedAt])
	if err != nil {
		return model.Repository{}, fmt.Errorf("parse %s: %w", fieldPushedAt, err)
	}

	var language *string
	if lang, ok := fields[fieldLanguage]; ok {
		language = &lang
	}

	return model.Repository{
		ID:              id,
		Name:            fields[fieldName],
		FullName:        fields[fieldFullName],
		HTMLURL:         fields[fieldHTMLURL],
		Language:        language,
		UpdatedAt:       updatedAt,
		PushedAt:        pushedAt,
		StargazersCount: stars,
	}, nil
}
