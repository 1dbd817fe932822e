// Package cache implements the directory cache used by cache steps.
//
// Every entry is a gzip tar archive plus a JSON index record, both named by
// the SHA-256 of the cache key. Files are written to a temporary name and
// renamed into place, so readers never observe a partial entry and
// concurrent writers of one key resolve as last write wins.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/jonboulle/clockwork"
	"go.trai.ch/petal/internal/core/domain"
	"go.trai.ch/petal/internal/core/ports"
	"go.trai.ch/zerr"
)

const (
	archiveExt = ".tar.gz"
	recordExt  = ".json"
)

var _ ports.CacheStore = (*Store)(nil)

// Store implements ports.CacheStore on a local directory.
type Store struct {
	dir   string
	clock clockwork.Clock
}

// NewStore creates a Store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir, clock: clockwork.NewRealClock()}
}

// WithClock replaces the clock used to stamp new entries.
func (s *Store) WithClock(c clockwork.Clock) *Store {
	s.clock = c
	return s
}

// Dir returns the directory holding the entries.
func (s *Store) Dir() string {
	return s.dir
}

// DefaultDir returns the user cache directory for petal, falling back to the
// workspace-local .petal/cache when the platform defines none.
func DefaultDir() string {
	if base, err := os.UserCacheDir(); err == nil {
		return filepath.Join(base, "petal")
	}
	return domain.DefaultCachePath()
}

func (s *Store) name(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(s.dir, hex.EncodeToString(sum[:]))
}

// Restore implements ports.CacheStore.
func (s *Store) Restore(ctx context.Context, spec domain.CacheSpec) (domain.CacheHit, error) {
	if err := domain.ValidateCacheKey(spec.Key); err != nil {
		return domain.CacheHit{}, err
	}

	entry, err := s.lookup(spec)
	if err != nil || entry == nil {
		return domain.CacheHit{}, err
	}

	if err := s.extract(ctx, entry.Key, spec.Path); err != nil {
		return domain.CacheHit{}, zerr.With(err, "key", entry.Key)
	}
	return domain.CacheHit{MatchedKey: entry.Key, Exact: entry.Key == spec.Key}, nil
}

// lookup resolves the exact key first, then the newest entry for each restore prefix in order.
func (s *Store) lookup(spec domain.CacheSpec) (*domain.CacheEntry, error) {
	exact, err := s.readRecord(s.name(spec.Key) + recordExt)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	if exact != nil && exact.Key == spec.Key {
		return exact, nil
	}

	if len(spec.RestoreKeys) == 0 {
		return nil, nil
	}

	entries, err := s.Entries()
	if err != nil {
		return nil, err
	}
	for _, prefix := range spec.RestoreKeys {
		for i := range entries {
			if strings.HasPrefix(entries[i].Key, prefix) {
				return &entries[i], nil
			}
		}
	}
	return nil, nil
}

// extract unpacks into a sibling directory and swaps it into place, so a
// failed restore leaves any existing directory untouched.
func (s *Store) extract(ctx context.Context, key, dst string) error {
	f, err := os.Open(s.name(key) + archiveExt)
	if err != nil {
		return zerr.Wrap(err, domain.ErrCacheReadFailed.Error())
	}
	defer f.Close() //nolint:errcheck // read-only file

	parent := filepath.Dir(dst)
	if err := os.MkdirAll(parent, domain.DirPerm); err != nil {
		return zerr.Wrap(err, domain.ErrCacheArchiveFailed.Error())
	}
	staging, err := os.MkdirTemp(parent, "."+filepath.Base(dst)+".restore-")
	if err != nil {
		return zerr.Wrap(err, domain.ErrCacheArchiveFailed.Error())
	}
	defer os.RemoveAll(staging) //nolint:errcheck // staging is gone after a successful swap

	if err := extractArchive(ctx, f, staging); err != nil {
		return zerr.Wrap(err, domain.ErrCacheArchiveFailed.Error())
	}

	if err := os.RemoveAll(dst); err != nil {
		return zerr.Wrap(err, domain.ErrCacheArchiveFailed.Error())
	}
	if err := os.Rename(staging, dst); err != nil {
		return zerr.Wrap(err, domain.ErrCacheArchiveFailed.Error())
	}
	return nil
}

// Save implements ports.CacheStore.
func (s *Store) Save(ctx context.Context, key, src string) error {
	if err := domain.ValidateCacheKey(key); err != nil {
		return err
	}

	info, err := os.Stat(src)
	if err != nil || !info.IsDir() {
		return zerr.With(domain.ErrCachePathMissing, "path", src)
	}

	if err := os.MkdirAll(s.dir, domain.DirPerm); err != nil {
		return zerr.Wrap(err, domain.ErrCacheWriteFailed.Error())
	}

	base := s.name(key)
	tmp, err := os.CreateTemp(s.dir, ".archive-*")
	if err != nil {
		return zerr.Wrap(err, domain.ErrCacheWriteFailed.Error())
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // removed only when the rename did not happen

	if err := writeArchive(ctx, tmp, src); err != nil {
		_ = tmp.Close()
		return zerr.Wrap(err, domain.ErrCacheArchiveFailed.Error())
	}
	size, err := tmp.Seek(0, io.SeekCurrent)
	if err != nil {
		_ = tmp.Close()
		return zerr.Wrap(err, domain.ErrCacheWriteFailed.Error())
	}
	if err := tmp.Close(); err != nil {
		return zerr.Wrap(err, domain.ErrCacheWriteFailed.Error())
	}
	if err := os.Rename(tmp.Name(), base+archiveExt); err != nil {
		return zerr.Wrap(err, domain.ErrCacheWriteFailed.Error())
	}

	entry := domain.CacheEntry{Key: key, CreatedAt: s.clock.Now().UTC(), Size: size}
	return s.writeRecord(base+recordExt, &entry)
}

func (s *Store) writeRecord(path string, entry *domain.CacheEntry) error {
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return zerr.Wrap(err, domain.ErrCacheWriteFailed.Error())
	}

	tmp, err := os.CreateTemp(s.dir, ".record-*")
	if err != nil {
		return zerr.Wrap(err, domain.ErrCacheWriteFailed.Error())
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // removed only when the rename did not happen

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return zerr.Wrap(err, domain.ErrCacheWriteFailed.Error())
	}
	if err := tmp.Close(); err != nil {
		return zerr.Wrap(err, domain.ErrCacheWriteFailed.Error())
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return zerr.Wrap(err, domain.ErrCacheWriteFailed.Error())
	}
	return nil
}

func (s *Store) readRecord(path string) (*domain.CacheEntry, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is derived from the cache key
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		return nil, zerr.Wrap(err, domain.ErrCacheReadFailed.Error())
	}

	var entry domain.CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrCacheReadFailed.Error()), "path", path)
	}
	return &entry, nil
}

// Entries implements ports.CacheStore.
// Unreadable records are skipped.
func (s *Store) Entries() ([]domain.CacheEntry, error) {
	files, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, zerr.Wrap(err, domain.ErrCacheReadFailed.Error())
	}

	var entries []domain.CacheEntry
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), recordExt) || strings.HasPrefix(f.Name(), ".") {
			continue
		}
		entry, err := s.readRecord(filepath.Join(s.dir, f.Name()))
		if err != nil {
			continue
		}
		entries = append(entries, *entry)
	}

	slices.SortStableFunc(entries, func(a, b domain.CacheEntry) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.Key, b.Key)
	})
	return entries, nil
}

// Purge implements ports.CacheStore.
func (s *Store) Purge() error {
	if err := os.RemoveAll(s.dir); err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrCacheWriteFailed.Error()), "path", s.dir)
	}
	return nil
}
