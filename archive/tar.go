package archive

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ExtractOptions bounds what an extraction may write.
type ExtractOptions struct {
	// MaxFiles is the maximum number of files allowed in the archive.
	// Set to 0 for unlimited.
	MaxFiles int

	// MaxSize is the maximum total uncompressed size of all files combined.
	// Set to 0 for unlimited.
	MaxSize int64

	// MaxFileSize is the maximum size allowed for any individual file.
	// Set to 0 for unlimited.
	MaxFileSize int64

	// PreservePerms keeps the permission bits recorded in the archive.
	// When false, files are written 0644 and directories 0755.
	PreservePerms bool
}

// DefaultExtractOptions returns the default extraction limits.
func DefaultExtractOptions() ExtractOptions {
	return ExtractOptions{
		MaxFiles:    100000,
		MaxSize:     4 * 1024 * 1024 * 1024, // 4GB
		MaxFileSize: 1024 * 1024 * 1024,     // 1GB
	}
}

// Option configures a Tar archiver.
type Option func(*ExtractOptions)

// WithMaxFiles sets the maximum number of files allowed in the archive.
func WithMaxFiles(n int) Option {
	return func(o *ExtractOptions) { o.MaxFiles = n }
}

// WithMaxSize sets the maximum total uncompressed size.
func WithMaxSize(n int64) Option {
	return func(o *ExtractOptions) { o.MaxSize = n }
}

// WithMaxFileSize sets the maximum size of a single file.
func WithMaxFileSize(n int64) Option {
	return func(o *ExtractOptions) { o.MaxFileSize = n }
}

// WithPreservePerms keeps archived permission bits.
func WithPreservePerms(preserve bool) Option {
	return func(o *ExtractOptions) { o.PreservePerms = preserve }
}

// Tar lists and extracts tar based archives natively.
type Tar struct {
	opts ExtractOptions
}

var _ Archiver = (*Tar)(nil)

// NewTar creates a Tar archiver.
func NewTar(opts ...Option) *Tar {
	o := DefaultExtractOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Tar{opts: o}
}

// List implements Lister.
func (t *Tar) List(ctx context.Context, archivePath string) ([]string, error) {
	tr, closeFn, err := openTar(archivePath)
	if err != nil {
		return nil, archiveError("list", archivePath, err)
	}
	defer closeFn()

	var names []string
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, archiveError("list", archivePath, err)
		}
		if !isRegular(hdr) {
			continue
		}
		name, ok := CleanName(hdr.Name)
		if !ok {
			return nil, archiveError("list", archivePath, fmt.Errorf("unsafe member path %q", hdr.Name))
		}
		names = append(names, name)
	}
	return names, nil
}

// Extract implements Extractor.
func (t *Tar) Extract(ctx context.Context, archivePath, destDir string) error {
	tr, closeFn, err := openTar(archivePath)
	if err != nil {
		return archiveError("extract", archivePath, err)
	}
	defer closeFn()

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return archiveError("extract", archivePath, fmt.Errorf("create destination: %w", err))
	}

	var (
		files     int
		totalSize int64
	)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return archiveError("extract", archivePath, err)
		}

		switch {
		case hdr.Typeflag == tar.TypeDir:
			name, ok := CleanName(hdr.Name)
			if !ok {
				continue
			}
			if err := os.MkdirAll(filepath.Join(destDir, filepath.FromSlash(name)), t.dirMode(hdr)); err != nil {
				return archiveError("extract", archivePath, err)
			}
		case isRegular(hdr):
			name, ok := CleanName(hdr.Name)
			if !ok {
				return archiveError("extract", archivePath, fmt.Errorf("unsafe member path %q", hdr.Name))
			}
			files++
			if t.opts.MaxFiles > 0 && files > t.opts.MaxFiles {
				return archiveError("extract", archivePath, fmt.Errorf("archive exceeds %d files", t.opts.MaxFiles))
			}
			if t.opts.MaxFileSize > 0 && hdr.Size > t.opts.MaxFileSize {
				return archiveError("extract", archivePath, fmt.Errorf("member %s exceeds %d bytes", name, t.opts.MaxFileSize))
			}
			totalSize += hdr.Size
			if t.opts.MaxSize > 0 && totalSize > t.opts.MaxSize {
				return archiveError("extract", archivePath, fmt.Errorf("archive exceeds %d bytes", t.opts.MaxSize))
			}
			target := filepath.Join(destDir, filepath.FromSlash(name))
			if err := t.writeFile(tr, target, hdr); err != nil {
				return archiveError("extract", archivePath, err)
			}
		default:
			// links, devices and fifos are not part of the compared tree
		}
	}
}

func (t *Tar) writeFile(r io.Reader, target string, hdr *tar.Header) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create parent of %s: %w", target, err)
	}
	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, t.fileMode(hdr))
	if err != nil {
		return fmt.Errorf("create %s: %w", target, err)
	}
	if _, err := io.CopyN(f, r, hdr.Size); err != nil && err != io.EOF {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", target, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", target, err)
	}
	return nil
}

func (t *Tar) fileMode(hdr *tar.Header) os.FileMode {
	if t.opts.PreservePerms {
		return os.FileMode(hdr.Mode).Perm() | 0o200
	}
	return 0o644
}

func (t *Tar) dirMode(hdr *tar.Header) os.FileMode {
	if t.opts.PreservePerms {
		return os.FileMode(hdr.Mode).Perm() | 0o700
	}
	return 0o755
}

// isRegular reports regular file members; tar.Reader already maps the legacy
// TypeRegA flag onto TypeReg.
func isRegular(hdr *tar.Header) bool {
	return hdr.Typeflag == tar.TypeReg
}
