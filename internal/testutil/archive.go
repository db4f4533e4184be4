// Package testutil builds package archive fixtures for tests.
package testutil

import (
	"archive/tar"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/require"

	"github.com/sergcen/npm-package-diff/archive"
)

// Entry is one archive member.
type Entry struct {
	Name string
	Body string
	Dir  bool
	Mode int64
}

// Files turns a name to body map into entries sorted by name.
func Files(files map[string]string) []Entry {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	entries := make([]Entry, 0, len(names))
	for _, name := range names {
		entries = append(entries, Entry{Name: name, Body: files[name]})
	}
	return entries
}

// TarBytes encodes entries as an archive in the given format.
func TarBytes(tb testing.TB, format archive.Format, entries ...Entry) []byte {
	tb.Helper()

	var raw bytes.Buffer
	tw := tar.NewWriter(&raw)
	for _, e := range entries {
		hdr := &tar.Header{Name: e.Name, Mode: e.Mode}
		if e.Dir {
			hdr.Typeflag = tar.TypeDir
			if hdr.Mode == 0 {
				hdr.Mode = 0o755
			}
		} else {
			hdr.Typeflag = tar.TypeReg
			hdr.Size = int64(len(e.Body))
			if hdr.Mode == 0 {
				hdr.Mode = 0o644
			}
		}
		require.NoError(tb, tw.WriteHeader(hdr))
		if !e.Dir {
			_, err := io.WriteString(tw, e.Body)
			require.NoError(tb, err)
		}
	}
	require.NoError(tb, tw.Close())

	switch format {
	case archive.FormatGzip:
		var out bytes.Buffer
		gz := gzip.NewWriter(&out)
		_, err := gz.Write(raw.Bytes())
		require.NoError(tb, err)
		require.NoError(tb, gz.Close())
		return out.Bytes()
	case archive.FormatZstd:
		enc, err := zstd.NewWriter(nil)
		require.NoError(tb, err)
		defer enc.Close()
		return enc.EncodeAll(raw.Bytes(), nil)
	default:
		return raw.Bytes()
	}
}

// WriteArchive writes entries to dir/name and returns the file path.
func WriteArchive(tb testing.TB, dir, name string, format archive.Format, entries ...Entry) string {
	tb.Helper()

	p := filepath.Join(dir, name)
	require.NoError(tb, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(tb, os.WriteFile(p, TarBytes(tb, format, entries...), 0o644))
	return p
}

// Package writes an npm style tarball whose members live below "package/".
func Package(tb testing.TB, dir, name string, files map[string]string) string {
	tb.Helper()

	prefixed := make(map[string]string, len(files))
	for n, body := range files {
		prefixed["package/"+n] = body
	}
	return WriteArchive(tb, dir, name, archive.FormatGzip, Files(prefixed)...)
}
