package domain

import (
	"strings"
	"time"

	"go.trai.ch/zerr"
)

// CacheSpec describes a directory to restore before and save after a run.
type CacheSpec struct {
	// Path is the directory being cached.
	Path string
	// Key is the primary key, typically derived from the OS and a content hash.
	Key string
	// RestoreKeys are prefixes tried in order when Key misses.
	RestoreKeys []string
}

// CacheEntry is the index record stored alongside a cache archive.
type CacheEntry struct {
	Key       string    `json:"key"`
	CreatedAt time.Time `json:"created_at,omitzero"`
	Size      int64     `json:"size,omitzero"`
}

// CacheHit is the outcome of a restore attempt.
// A zero CacheHit is a miss.
type CacheHit struct {
	// MatchedKey is the key of the restored entry.
	MatchedKey string
	// Exact reports whether MatchedKey equals the primary key.
	Exact bool
}

// Hit reports whether any entry was restored.
func (h CacheHit) Hit() bool {
	return h.MatchedKey != ""
}

// ValidateCacheKey rejects keys that cannot address a cache entry.
func ValidateCacheKey(key string) error {
	if strings.TrimSpace(key) == "" || strings.Contains(key, ",") {
		return zerr.With(ErrInvalidCacheKey, "key", key)
	}
	return nil
}

// ParseRestoreKeys splits a newline separated restore-keys value, dropping blank lines.
func ParseRestoreKeys(raw string) []string {
	var keys []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			keys = append(keys, line)
		}
	}
	return keys
}
