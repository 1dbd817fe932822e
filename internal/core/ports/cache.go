package ports

import (
	"context"

	"go.trai.ch/petal/internal/core/domain"
)

// CacheStore persists directory snapshots under cache keys.
//
//go:generate mockgen -source=cache.go -destination=mocks/mock_cache.go -package=mocks
type CacheStore interface {
	// Restore extracts the entry matching spec.Key into spec.Path, falling back
	// to the newest entry whose key starts with one of spec.RestoreKeys.
	// A miss is not an error and yields a zero CacheHit.
	Restore(ctx context.Context, spec domain.CacheSpec) (domain.CacheHit, error)

	// Save snapshots src under key, replacing any existing entry.
	Save(ctx context.Context, key, src string) error

	// Entries lists stored entries, newest first.
	Entries() ([]domain.CacheEntry, error)

	// Purge removes every stored entry.
	Purge() error
}
