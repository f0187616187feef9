package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/kubehub/internal/domain/model"
	"github.com/ericfisherdev/kubehub/internal/domain/port/driven"
)

// fakeClock is a manually advanced time source for expiry tests.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func setupCacheStore(t *testing.T) (*CacheStore, *fakeClock) {
	t.Helper()

	clock := &fakeClock{t: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)}
	store := NewCacheStore(setupTestDB(t))
	store.now = clock.Now

	return store, clock
}

func testRepo(id int64, stars int) model.Repository {
	lang := "Go"
	return model.Repository{
		ID:              id,
		Name:            "minikube",
		FullName:        "kubernetes/minikube",
		HTMLURL:         "https://github.com/kubernetes/minikube",
		Language:        &lang,
		UpdatedAt:       time.Date(2026, 2, 27, 10, 11, 12, 0, time.UTC),
		PushedAt:        time.Date(2026, 2, 26, 9, 0, 0, 0, time.UTC),
		StargazersCount: stars,
	}
}

func TestCacheStore_PutAndScanAll(t *testing.T) {
	store, _ := setupCacheStore(t)
	ctx := context.Background()

	want := testRepo(10, 500)
	require.NoError(t, store.Put(ctx, model.CacheKey("kubernetes", 10), want, time.Hour))

	got, err := store.ScanAll(ctx, model.CacheKeyPrefix("kubernetes"))

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, want, got[0])
}

func TestCacheStore_NullLanguageRoundTrips(t *testing.T) {
	store, _ := setupCacheStore(t)
	ctx := context.Background()

	repo := testRepo(11, 1)
	repo.Language = nil
	require.NoError(t, store.Put(ctx, "kubernetes:11", repo, time.Hour))

	got, err := store.ScanAll(ctx, "kubernetes:")

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Nil(t, got[0].Language)
}

func TestCacheStore_EntriesExpire(t *testing.T) {
	store, clock := setupCacheStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "kubernetes:1", testRepo(1, 1), time.Hour))

	clock.t = clock.t.Add(59 * time.Minute)
	got, err := store.ScanAll(ctx, "kubernetes:")
	require.NoError(t, err)
	assert.Len(t, got, 1)

	clock.t = clock.t.Add(time.Minute)
	got, err = store.ScanAll(ctx, "kubernetes:")
	require.NoError(t, err)
	assert.Empty(t, got)

	var remaining int
	require.NoError(t, store.db.Reader.QueryRowContext(ctx, `SELECT COUNT(*) FROM repository_cache`).Scan(&remaining))
	assert.Equal(t, 0, remaining)
}

func TestCacheStore_PutOverwritesAndRefreshesExpiry(t *testing.T) {
	store, clock := setupCacheStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "kubernetes:1", testRepo(1, 1), time.Hour))
	clock.t = clock.t.Add(45 * time.Minute)
	require.NoError(t, store.Put(ctx, "kubernetes:1", testRepo(1, 77), time.Hour))
	clock.t = clock.t.Add(30 * time.Minute)

	got, err := store.ScanAll(ctx, "kubernetes:")

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 77, got[0].StargazersCount)
}

func TestCacheStore_ScanAllFiltersByPrefix(t *testing.T) {
	store, _ := setupCacheStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, model.CacheKey("kubernetes", 1), testRepo(1, 1), time.Hour))
	require.NoError(t, store.Put(ctx, model.CacheKey("kubernetes", 2), testRepo(2, 2), time.Hour))
	require.NoError(t, store.Put(ctx, model.CacheKey("kubernetes-operator", 3), testRepo(3, 3), time.Hour))

	got, err := store.ScanAll(ctx, model.CacheKeyPrefix("kubernetes"))

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(1), got[0].ID)
	assert.Equal(t, int64(2), got[1].ID)
}

func TestCacheStore_ScanAllEscapesWildcards(t *testing.T) {
	store, _ := setupCacheStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "k_s:1", testRepo(1, 1), time.Hour))
	require.NoError(t, store.Put(ctx, "k8s:2", testRepo(2, 2), time.Hour))

	got, err := store.ScanAll(ctx, "k_s:")

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(1), got[0].ID)
}

func TestCacheStore_ScanAllEmpty(t *testing.T) {
	store, _ := setupCacheStore(t)

	got, err := store.ScanAll(context.Background(), "kubernetes:")

	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestCacheStore_Flush(t *testing.T) {
	store, _ := setupCacheStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "kubernetes:1", testRepo(1, 1), time.Hour))
	require.NoError(t, store.Put(ctx, "helm:2", testRepo(2, 1), time.Hour))
	require.NoError(t, store.Flush(ctx))

	got, err := store.ScanAll(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCacheStore_ClosedDatabase(t *testing.T) {
	store, _ := setupCacheStore(t)
	ctx := context.Background()
	require.NoError(t, store.db.Close())

	assert.ErrorIs(t, store.Ping(ctx), driven.ErrCacheUnavailable)

	_, err := store.ScanAll(ctx, "kubernetes:")
	assert.ErrorIs(t, err, driven.ErrCacheUnavailable)

	err = store.Put(ctx, "kubernetes:1", testRepo(1, 1), time.Hour)
	assert.ErrorIs(t, err, driven.ErrCacheUnavailable)

	err = store.PutAll(ctx, []driven.CacheEntry{{Key: "kubernetes:1", Repo: testRepo(1, 1)}}, time.Hour)
	assert.ErrorIs(t, err, driven.ErrCacheUnavailable)

	assert.ErrorIs(t, store.Flush(ctx), driven.ErrCacheUnavailable)
}

func TestCacheStore_PutAll(t *testing.T) {
	store, clock := setupCacheStore(t)
	ctx := context.Background()

	entries := make([]driven.CacheEntry, 0, 150)
	for i := int64(1); i <= 150; i++ {
		entries = append(entries, driven.CacheEntry{Key: model.CacheKey("kubernetes", i), Repo: testRepo(i, int(i))})
	}
	entries = append(entries, driven.CacheEntry{Key: model.CacheKey("kubernetes", 1), Repo: testRepo(1, 9999)})
	require.NoError(t, store.PutAll(ctx, entries, time.Hour))

	got, err := store.ScanAll(ctx, model.CacheKeyPrefix("kubernetes"))
	require.NoError(t, err)
	require.Len(t, got, 150)
	assert.Equal(t, 9999, got[0].StargazersCount)

	clock.t = clock.t.Add(time.Hour)
	got, err = store.ScanAll(ctx, model.CacheKeyPrefix("kubernetes"))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCacheStore_PutAllEmptyIsNoop(t *testing.T) {
	store, _ := setupCacheStore(t)

	require.NoError(t, store.PutAll(context.Background(), nil, time.Hour))
}

func TestNewDB_FileBacked(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "kubehub.db")

	db, err := NewDB(ctx, path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, RunMigrations(db.Writer))
	require.NoError(t, RunMigrations(db.Writer), "migrations must be idempotent")

	store := NewCacheStore(db)
	require.NoError(t, store.Put(ctx, "kubernetes:5", testRepo(5, 5), time.Hour))
	require.NoError(t, store.Ping(ctx))

	got, err := store.ScanAll(ctx, "kubernetes:")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
