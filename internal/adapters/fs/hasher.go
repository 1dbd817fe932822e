package fs

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"

	"github.com/cespare/xxhash/v2"
	"go.trai.ch/petal/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.Hasher = (*Hasher)(nil)

// Hasher hashes workspace files for cache keys.
type Hasher struct {
	walker *Walker
}

// NewHasher creates a new Hasher.
func NewHasher(walker *Walker) *Hasher {
	return &Hasher{walker: walker}
}

// ComputeFileHash computes the XXHash of a file's content.
func (h *Hasher) ComputeFileHash(path string) (uint64, error) {
	f, err := os.Open(path) //nolint:gosec // path is produced by the walker
	if err != nil {
		return 0, zerr.With(zerr.Wrap(err, "failed to open file"), "path", path)
	}
	defer f.Close() //nolint:errcheck // read-only file

	hasher := xxhash.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return 0, zerr.With(zerr.Wrap(err, "failed to hash file content"), "path", path)
	}

	return hasher.Sum64(), nil
}

// HashFiles combines the content hashes of every file under root matching
// one of the patterns, visiting files in lexical order. Only content feeds the
// digest, so renaming a matched file keeps the key. No match hashes to the empty string.
func (h *Hasher) HashFiles(root string, patterns []string) (string, error) {
	globs := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := compileGlob(filepath.ToSlash(p))
		if err != nil {
			return "", err
		}
		globs = append(globs, re)
	}

	digest := xxhash.New()
	matched := 0
	for rel := range h.walker.WalkFiles(root) {
		if !matchesAny(globs, rel) {
			continue
		}
		sum, err := h.ComputeFileHash(filepath.Join(root, filepath.FromSlash(rel)))
		if err != nil {
			return "", err
		}
		if err := binary.Write(digest, binary.LittleEndian, sum); err != nil {
			return "", zerr.Wrap(err, "failed to write hash to digest")
		}
		matched++
	}

	if matched == 0 {
		return "", nil
	}
	return fmt.Sprintf("%016x", digest.Sum64()), nil
}

func matchesAny(globs []*regexp.Regexp, rel string) bool {
	for _, re := range globs {
		if re.MatchString(rel) {
			return true
		}
	}
	return false
}
