package fs_test

import (
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/petal/internal/adapters/fs"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestHasher_HashFiles_Stable(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "environment.yml", "name: drone_312\n")

	h := fs.NewHasher(fs.NewWalker())

	first, err := h.HashFiles(root, []string{"environment.yml"})
	require.NoError(t, err)
	second, err := h.HashFiles(root, []string{"environment.yml"})
	require.NoError(t, err)

	assert.Len(t, first, 16)
	assert.Equal(t, first, second)
}

func TestHasher_HashFiles_ContentChangesKey(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "environment.yml", "name: drone_312\n")

	h := fs.NewHasher(fs.NewWalker())
	before, err := h.HashFiles(root, []string{"environment.yml"})
	require.NoError(t, err)

	writeFile(t, root, "environment.yml", "name: drone_312\ndependencies: [pytest]\n")
	after, err := h.HashFiles(root, []string{"environment.yml"})
	require.NoError(t, err)

	assert.NotEqual(t, before, after)
}

func TestHasher_HashFiles_NoMatch(t *testing.T) {
	got, err := fs.NewHasher(fs.NewWalker()).HashFiles(t.TempDir(), []string{"environment.yml"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestHasher_HashFiles_Globs(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "requirements.txt", "a")
	writeFile(t, root, "sub/requirements.txt", "b")
	writeFile(t, root, "sub/deep/requirements.txt", "c")
	writeFile(t, root, ".git/requirements.txt", "ignored")

	h := fs.NewHasher(fs.NewWalker())

	all, err := h.HashFiles(root, []string{"**/requirements.txt"})
	require.NoError(t, err)
	top, err := h.HashFiles(root, []string{"requirements.txt"})
	require.NoError(t, err)
	star, err := h.HashFiles(root, []string{"*/requirements.txt"})
	require.NoError(t, err)

	assert.NotEmpty(t, all)
	assert.NotEqual(t, all, top)
	assert.NotEqual(t, all, star)

	// Ignored directories do not contribute.
	writeFile(t, root, ".git/requirements.txt", "changed")
	again, err := h.HashFiles(root, []string{"**/requirements.txt"})
	require.NoError(t, err)
	assert.Equal(t, all, again)
}

func TestHasher_HashFiles_MultiplePatternsOrderIndependent(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "environment.yml", "env")
	writeFile(t, root, "setup.py", "setup")

	h := fs.NewHasher(fs.NewWalker())
	a, err := h.HashFiles(root, []string{"environment.yml", "setup.py"})
	require.NoError(t, err)
	b, err := h.HashFiles(root, []string{"setup.py", "environment.yml"})
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestHasher_HashFiles_InvalidPattern(t *testing.T) {
	_, err := fs.NewHasher(fs.NewWalker()).HashFiles(t.TempDir(), []string{""})
	assert.Error(t, err)
}

func TestHasher_ComputeFileHash_Missing(t *testing.T) {
	_, err := fs.NewHasher(fs.NewWalker()).ComputeFileHash(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open file")
}

func TestWalker_WalkFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "b.txt", "")
	writeFile(t, root, "a/c.txt", "")
	writeFile(t, root, ".petal/runs/latest", "")
	writeFile(t, root, ".git/HEAD", "")

	got := slices.Collect(fs.NewWalker().WalkFiles(root))
	assert.Equal(t, []string{"a/c.txt", "b.txt"}, got)
}

func TestWalker_EarlyStop(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", "")
	writeFile(t, root, "b.txt", "")

	var got []string
	for f := range fs.NewWalker().WalkFiles(root) {
		got = append(got, f)
		break
	}
	assert.Len(t, got, 1)
}

func TestProber_DirExists(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "file", "")

	p := fs.NewProber()
	assert.True(t, p.DirExists(root))
	assert.False(t, p.DirExists(filepath.Join(root, "file")))
	assert.False(t, p.DirExists(filepath.Join(root, "missing")))
}
