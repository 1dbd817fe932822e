package cache

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSafeJoin(t *testing.T) {
	got, err := safeJoin("/dst", "bin/python")
	require.NoError(t, err)
	assert.Equal(t, "/dst/bin/python", got)

	for _, name := range []string{"../evil", "/etc/passwd", "a/../../evil"} {
		_, err := safeJoin("/dst", name)
		assert.Error(t, err, name)
	}
}

func TestExtractArchive_RejectsTraversal(t *testing.T) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "../escape", Typeflag: tar.TypeReg, Mode: 0o600, Size: 1}))
	_, err := tw.Write([]byte("x"))
	require.NoError(t, err)
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())

	err = extractArchive(context.Background(), &buf, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "escapes destination")
}
