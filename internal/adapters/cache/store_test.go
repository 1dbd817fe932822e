package cache_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/petal/internal/adapters/cache"
	"go.trai.ch/petal/internal/core/domain"
)

func newStore(t *testing.T) (*cache.Store, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	return cache.NewStore(filepath.Join(t.TempDir(), "cache")).WithClock(clock), clock
}

// makeEnv creates a small directory tree standing in for a conda environment.
func makeEnv(t *testing.T, marker string) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "envs", "pypetal")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "bin"), 0o750))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "conda-meta"), 0o750))
	//nolint:gosec // executable fixture
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bin", "python"), []byte("#!/bin/sh\n"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "conda-meta", "marker"), []byte(marker), 0o600))
	require.NoError(t, os.Symlink("python", filepath.Join(dir, "bin", "python3")))
	return dir
}

func readMarker(t *testing.T, dir string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, "conda-meta", "marker"))
	require.NoError(t, err)
	return string(data)
}

func TestStore_SaveRestoreExact(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	src := makeEnv(t, "v1")
	require.NoError(t, store.Save(ctx, "Linux-mamba-abc", src))

	dst := filepath.Join(t.TempDir(), "restored")
	hit, err := store.Restore(ctx, domain.CacheSpec{Path: dst, Key: "Linux-mamba-abc", RestoreKeys: []string{"Linux-mamba-"}})
	require.NoError(t, err)

	assert.Equal(t, domain.CacheHit{MatchedKey: "Linux-mamba-abc", Exact: true}, hit)
	assert.Equal(t, "v1", readMarker(t, dst))

	info, err := os.Stat(filepath.Join(dst, "bin", "python"))
	require.NoError(t, err)
	assert.NotZero(t, info.Mode()&0o100, "executable bit survives")

	link, err := os.Readlink(filepath.Join(dst, "bin", "python3"))
	require.NoError(t, err)
	assert.Equal(t, "python", link)
}

func TestStore_RestorePrefixNewestWins(t *testing.T) {
	store, clock := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "Linux-mamba-old", makeEnv(t, "old")))
	clock.Advance(time.Hour)
	require.NoError(t, store.Save(ctx, "Linux-mamba-new", makeEnv(t, "new")))
	clock.Advance(time.Hour)
	require.NoError(t, store.Save(ctx, "macOS-mamba-newest", makeEnv(t, "mac")))

	dst := filepath.Join(t.TempDir(), "restored")
	hit, err := store.Restore(ctx, domain.CacheSpec{Path: dst, Key: "Linux-mamba-changed", RestoreKeys: []string{"Linux-mamba-"}})
	require.NoError(t, err)

	assert.Equal(t, "Linux-mamba-new", hit.MatchedKey)
	assert.False(t, hit.Exact)
	assert.Equal(t, "new", readMarker(t, dst))
}

func TestStore_RestoreKeysTriedInOrder(t *testing.T) {
	store, clock := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "Linux-pip-1", makeEnv(t, "pip")))
	clock.Advance(time.Hour)
	require.NoError(t, store.Save(ctx, "Linux-mamba-1", makeEnv(t, "mamba")))

	hit, err := store.Restore(ctx, domain.CacheSpec{
		Path:        filepath.Join(t.TempDir(), "restored"),
		Key:         "Linux-x",
		RestoreKeys: []string{"Linux-pip-", "Linux-"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Linux-pip-1", hit.MatchedKey)
}

func TestStore_RestoreMiss(t *testing.T) {
	store, _ := newStore(t)

	dst := filepath.Join(t.TempDir(), "restored")
	hit, err := store.Restore(context.Background(), domain.CacheSpec{Path: dst, Key: "Linux-mamba-abc", RestoreKeys: []string{"Linux-mamba-"}})
	require.NoError(t, err)

	assert.False(t, hit.Hit())
	assert.NoDirExists(t, dst)
}

func TestStore_RestoreReplacesExistingDirectory(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "k", makeEnv(t, "cached")))

	dst := makeEnv(t, "stale")
	require.NoError(t, os.WriteFile(filepath.Join(dst, "leftover"), []byte("x"), 0o600))

	_, err := store.Restore(ctx, domain.CacheSpec{Path: dst, Key: "k"})
	require.NoError(t, err)

	assert.Equal(t, "cached", readMarker(t, dst))
	assert.NoFileExists(t, filepath.Join(dst, "leftover"))
}

func TestStore_SaveOverwritesKey(t *testing.T) {
	store, clock := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "k", makeEnv(t, "first")))
	clock.Advance(time.Minute)
	require.NoError(t, store.Save(ctx, "k", makeEnv(t, "second")))

	entries, err := store.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, clock.Now().Equal(entries[0].CreatedAt))
	assert.Positive(t, entries[0].Size)

	dst := filepath.Join(t.TempDir(), "restored")
	_, err = store.Restore(ctx, domain.CacheSpec{Path: dst, Key: "k"})
	require.NoError(t, err)
	assert.Equal(t, "second", readMarker(t, dst))
}

func TestStore_SaveMissingPath(t *testing.T) {
	store, _ := newStore(t)

	err := store.Save(context.Background(), "k", filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), domain.ErrCachePathMissing.Error())
}

func TestStore_InvalidKey(t *testing.T) {
	store, _ := newStore(t)

	_, err := store.Restore(context.Background(), domain.CacheSpec{Path: t.TempDir(), Key: ""})
	assert.Error(t, err)
	assert.Error(t, store.Save(context.Background(), "a,b", makeEnv(t, "x")))
}

func TestStore_SaveCancelled(t *testing.T) {
	store, _ := newStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.Error(t, store.Save(ctx, "k", makeEnv(t, "x")))

	entries, err := store.Entries()
	require.NoError(t, err)
	assert.Empty(t, entries, "a cancelled save leaves no entry behind")
}

func TestStore_EntriesAndPurge(t *testing.T) {
	store, clock := newStore(t)
	ctx := context.Background()

	entries, err := store.Entries()
	require.NoError(t, err)
	assert.Empty(t, entries)

	require.NoError(t, store.Save(ctx, "a", makeEnv(t, "a")))
	clock.Advance(time.Second)
	require.NoError(t, store.Save(ctx, "b", makeEnv(t, "b")))

	entries, err = store.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "b", entries[0].Key, "newest first")

	require.NoError(t, store.Purge())
	assert.NoDirExists(t, store.Dir())
}
