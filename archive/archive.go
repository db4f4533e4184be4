// Package archive lists and extracts package archives.
//
// Supported formats are plain tar, gzip compressed tar (.tgz, .tar.gz) and
// zstd compressed tar (.tar.zst). The format is detected from the leading
// bytes of the file, not from its name.
package archive

import (
	"archive/tar"
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/sergcen/npm-package-diff/errors"
)

// Lister enumerates the member paths of an archive.
type Lister interface {
	// List returns the archive's regular file members as cleaned, slash
	// separated relative paths in archive order.
	List(ctx context.Context, archivePath string) ([]string, error)
}

// Extractor unpacks an archive into a directory.
type Extractor interface {
	// Extract writes the archive's full tree below destDir.
	Extract(ctx context.Context, archivePath, destDir string) error
}

// Archiver combines Lister and Extractor.
type Archiver interface {
	Lister
	Extractor
}

// Format identifies the container encoding of an archive.
type Format int

const (
	// FormatTar is an uncompressed tar stream.
	FormatTar Format = iota
	// FormatGzip is a gzip compressed tar stream.
	FormatGzip
	// FormatZstd is a zstd compressed tar stream.
	FormatZstd
)

// String returns the human-readable name of a format.
func (f Format) String() string {
	switch f {
	case FormatTar:
		return "tar"
	case FormatGzip:
		return "tar+gzip"
	case FormatZstd:
		return "tar+zstd"
	default:
		return fmt.Sprintf("unknown(%d)", int(f))
	}
}

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// DetectFormat infers the archive format from its first bytes.
func DetectFormat(header []byte) Format {
	switch {
	case bytes.HasPrefix(header, gzipMagic):
		return FormatGzip
	case bytes.HasPrefix(header, zstdMagic):
		return FormatZstd
	default:
		return FormatTar
	}
}

// openTar opens archivePath and returns a tar reader over its decoded stream.
// The returned close function releases the file and the decompressor.
func openTar(archivePath string) (*tar.Reader, func(), error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return nil, nil, err
	}

	br := bufio.NewReader(f)
	header, err := br.Peek(sniffLen)
	if err != nil && err != io.EOF {
		_ = f.Close()
		return nil, nil, fmt.Errorf("read header: %w", err)
	}

	switch DetectFormat(header) {
	case FormatGzip:
		gz, gzErr := gzip.NewReader(br)
		if gzErr != nil {
			_ = f.Close()
			return nil, nil, fmt.Errorf("open gzip stream: %w", gzErr)
		}
		return tar.NewReader(gz), func() { _ = gz.Close(); _ = f.Close() }, nil
	case FormatZstd:
		zr, zErr := zstd.NewReader(br)
		if zErr != nil {
			_ = f.Close()
			return nil, nil, fmt.Errorf("open zstd stream: %w", zErr)
		}
		return tar.NewReader(zr), func() { zr.Close(); _ = f.Close() }, nil
	default:
		if err := sniffTar(header); err != nil {
			_ = f.Close()
			return nil, nil, err
		}
		return tar.NewReader(br), func() { _ = f.Close() }, nil
	}
}

// sniffLen covers one tar header block.
const sniffLen = 512

// sniffTar rejects uncompressed content that is not a tar stream, such as an
// HTML error page saved in place of a tarball. Zero blocks are an empty tar.
func sniffTar(header []byte) error {
	if len(header) == 0 || bytes.Count(header, []byte{0}) == len(header) {
		return nil
	}
	mt := mimetype.Detect(header)
	if mt.Is("application/x-tar") {
		return nil
	}
	return fmt.Errorf("unsupported archive content %s", mt.String())
}

// CleanName normalizes a member name to a slash separated relative path.
// It reports false for names that are empty or escape the archive root.
func CleanName(name string) (string, bool) {
	name = strings.ReplaceAll(name, "\\", "/")
	if strings.HasPrefix(name, "/") {
		return "", false
	}
	cleaned := path.Clean(name)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", false
	}
	return cleaned, true
}

func archiveError(op, archivePath string, err error) error {
	return &errors.ToolError{
		Tool:     "tar",
		Args:     []string{op, archivePath},
		ExitCode: -1,
		Err:      errors.Wrap(err, errors.CodeArchiveCorrupt, fmt.Sprintf("%s %s", op, archivePath)),
	}
}
