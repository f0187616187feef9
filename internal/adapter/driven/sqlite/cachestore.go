package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/ericfisherdev/kubehub/internal/domain/model"
	"github.com/ericfisherdev/kubehub/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.RepositoryCache = (*CacheStore)(nil)

// CacheStore is the SQLite implementation of the RepositoryCache port.
// Expiry is stored as unix milliseconds; expired rows are never returned and
// are purged on every scan.
type CacheStore struct {
	db  *DB
	now func() time.Time
}

// NewCacheStore creates a new CacheStore backed by the given DB.
func NewCacheStore(db *DB) *CacheStore {
	return &CacheStore{db: db, now: time.Now}
}

// ScanAll returns every unexpired repository whose cache key starts with prefix,
// ordered by key.
func (s *CacheStore) ScanAll(ctx context.Context, prefix string) ([]model.Repository, error) {
	nowMs := s.now().UnixMilli()

	if _, err := s.db.Writer.ExecContext(ctx, `DELETE FROM repository_cache WHERE expires_at <= ?`, nowMs); err != nil {
		return nil, fmt.Errorf("purge expired entries: %w: %w", driven.ErrCacheUnavailable, err)
	}

	const query = `
		SELECT id, name, full_name, html_url, language, updated_at, pushed_at, stargazers_count
		FROM repository_cache
		WHERE cache_key LIKE ? ESCAPE '\' AND expires_at > ?
		ORDER BY cache_key`

	rows, err := s.db.Reader.QueryContext(ctx, query, likePrefix(prefix), nowMs)
	if err != nil {
		return nil, fmt.Errorf("scan %s*: %w: %w", prefix, driven.ErrCacheUnavailable, err)
	}
	defer rows.Close()

	repos := []model.Repository{}
	for rows.Next() {
		repo, err := scanRepository(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s*: %w", prefix, err)
		}
		repos = append(repos, repo)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan %s*: %w: %w", prefix, driven.ErrCacheUnavailable, err)
	}

	return repos, nil
}

const upsertQuery = `
	INSERT INTO repository_cache
		(cache_key, id, name, full_name, html_url, language, updated_at, pushed_at, stargazers_count, expires_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(cache_key) DO UPDATE SET
		id = excluded.id,
		name = excluded.name,
		full_name = excluded.full_name,
		html_url = excluded.html_url,
		language = excluded.language,
		updated_at = excluded.updated_at,
		pushed_at = excluded.pushed_at,
		stargazers_count = excluded.stargazers_count,
		expires_at = excluded.expires_at`

// Put upserts repo under key with an expiry ttl from now.
func (s *CacheStore) Put(ctx context.Context, key string, repo model.Repository, ttl time.Duration) error {
	if _, err := s.db.Writer.ExecContext(ctx, upsertQuery, upsertArgs(key, repo, s.now().Add(ttl))...); err != nil {
		return fmt.Errorf("put %s: %w: %w", key, driven.ErrCacheUnavailable, err)
	}
	return nil
}

// PutAll upserts every entry in a single transaction. All entries share one
// expiry, ttl from now.
func (s *CacheStore) PutAll(ctx context.Context, entries []driven.CacheEntry, ttl time.Duration) error {
	if len(entries) == 0 {
		return nil
	}

	expiresAt := s.now().Add(ttl)

	tx, err := s.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin put: %w: %w", driven.ErrCacheUnavailable, err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, upsertQuery)
	if err != nil {
		return fmt.Errorf("prepare put: %w: %w", driven.ErrCacheUnavailable, err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, upsertArgs(e.Key, e.Repo, expiresAt)...); err != nil {
			return fmt.Errorf("put %s: %w: %w", e.Key, driven.ErrCacheUnavailable, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit put: %w: %w", driven.ErrCacheUnavailable, err)
	}

	return nil
}

func upsertArgs(key string, repo model.Repository, expiresAt time.Time) []any {
	var language sql.NullString
	if repo.Language != nil {
		language = sql.NullString{String: *repo.Language, Valid: true}
	}

	return []any{
		key,
		repo.ID,
		repo.Name,
		repo.FullName,
		repo.HTMLURL,
		language,
		model.FormatTimestamp(repo.UpdatedAt),
		model.FormatTimestamp(repo.PushedAt),
		repo.StargazersCount,
		expiresAt.UnixMilli(),
	}
}

// Ping checks that the reader connection is usable.
func (s *CacheStore) Ping(ctx context.Context) error {
	if err := s.db.Reader.PingContext(ctx); err != nil {
		return fmt.Errorf("ping: %w: %w", driven.ErrCacheUnavailable, err)
	}
	return nil
}

// Flush deletes every cached repository.
func (s *CacheStore) Flush(ctx context.Context) error {
	if _, err := s.db.Writer.ExecContext(ctx, `DELETE FROM repository_cache`); err != nil {
		return fmt.Errorf("flush: %w: %w", driven.ErrCacheUnavailable, err)
	}
	return nil
}

// scanRepository reads one repository_cache row.
func scanRepository(rows *sql.Rows) (model.Repository, error) {
	var (
		repo      model.Repository
		language  sql.NullString
		updatedAt string
		pushedAt  string
	)

	err := rows.Scan(
		&repo.ID,
		&repo.Name,
		&repo.FullName,
		&repo.HTMLURL,
		&language,
		&updatedAt,
		&pushedAt,
		&repo.StargazersCount,
	)
	if err != nil {
		return model.Repository{}, fmt.Errorf("scan row: %w", err)
	}

	if language.Valid {
		lang := language.String
		repo.Language = &lang
	}

	repo.UpdatedAt, err = model.ParseTimestamp(updatedAt)
	if err != nil {
		return model.Repository{}, fmt.Errorf("parse updated_at for %d: %w", repo.ID, err)
	}

	repo.PushedAt, err = model.ParseTimestamp(pushedAt)
	if err != nil {
		return model.Repository{}, fmt.Errorf("parse pushed_at for %d: %w", repo.ID, err)
	}

	return repo, nil
}

// likePrefix escapes LIKE wildcards in prefix and appends '%'.
func likePrefix(prefix string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(prefix) + "%"
}
