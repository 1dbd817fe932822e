package cache

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.trai.ch/zerr"
)

// writeArchive streams the tree under src into w as a gzip-compressed tar.
// Names are slash-separated and relative to src.
func writeArchive(ctx context.Context, w io.Writer, src string) error {
	gz := gzip.NewWriter(w)
	tw := tar.NewWriter(gz)

	walkErr := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if path == src {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		var link string
		if info.Mode()&fs.ModeSymlink != 0 {
			if link, err = os.Readlink(path); err != nil {
				return err
			}
		}

		hdr, err := tar.FileInfoHeader(info, link)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)
		if d.IsDir() {
			hdr.Name += "/"
		}

		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		return copyFile(tw, path)
	})

	twErr := tw.Close()
	gzErr := gz.Close()
	if err := errors.Join(walkErr, twErr, gzErr); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to write archive"), "path", src)
	}
	return nil
}

func copyFile(w io.Writer, path string) error {
	f, err := os.Open(path) //nolint:gosec // path comes from walking the cached directory
	if err != nil {
		return err
	}
	defer f.Close() //nolint:errcheck // read-only file
	_, err = io.Copy(w, f)
	return err
}

// extractArchive unpacks a gzip tar produced by writeArchive into dst.
// Entries escaping dst are rejected.
func extractArchive(ctx context.Context, r io.Reader, dst string) error {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return zerr.Wrap(err, "failed to open archive")
	}
	defer gz.Close() //nolint:errcheck // reader close carries no data

	tr := tar.NewReader(gz)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return zerr.Wrap(err, "failed to read archive")
		}

		target, err := safeJoin(dst, hdr.Name)
		if err != nil {
			return err
		}

		if err := extractEntry(tr, hdr, target); err != nil {
			return zerr.With(zerr.Wrap(err, "failed to extract entry"), "entry", hdr.Name)
		}
	}
}

func extractEntry(tr *tar.Reader, hdr *tar.Header, target string) error {
	mode := hdr.FileInfo().Mode().Perm()

	switch hdr.Typeflag {
	case tar.TypeDir:
		return os.MkdirAll(target, mode|0o700)
	case tar.TypeSymlink:
		if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
			return err
		}
		return os.Symlink(hdr.Linkname, target)
	case tar.TypeReg:
		if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
			return err
		}
		f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode) //nolint:gosec // target is checked by safeJoin
		if err != nil {
			return err
		}
		//nolint:gosec // archive was produced by this store
		if _, err := io.Copy(f, tr); err != nil {
			_ = f.Close()
			return err
		}
		return f.Close()
	default:
		// Devices, fifos and hard links are not cached.
		return nil
	}
}

func safeJoin(dst, name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", zerr.With(zerr.New("archive entry escapes destination"), "entry", name)
	}
	return filepath.Join(dst, clean), nil
}
