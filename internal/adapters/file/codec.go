package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/kmol-editor/kmol/internal/logging"
	"github.com/kmol-editor/kmol/pkg/domain"
)

// Codec implements ports.ProjectCodec on the local filesystem.
// Each project is one text file; the encoding is chosen by extension.
type Codec struct {
	perm   fs.FileMode
	logger *slog.Logger
}

// Option configures the Codec.
type Option func(*Codec)

// WithLogger sets the logger used for save diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Codec) {
		c.logger = logger
	}
}

// WithPerm sets the permission bits of written project files (default 0644).
func WithPerm(perm fs.FileMode) Option {
	return func(c *Codec) {
		c.perm = perm
	}
}

// New creates a filesystem codec.
func New(opts ...Option) *Codec {
	c := &Codec{
		perm:   0644,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Load reads and parses the project file at path.
func (c *Codec) Load(ctx context.Context, path string) (*domain.Tree, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrIO, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read project file: %w", domain.ErrIO, err)
	}

	tree, err := Decode(data, EncodingFor(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return tree, nil
}

// Exists reports whether a file is present at path.
func (c *Codec) Exists(ctx context.Context, path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("%w: %w", domain.ErrIO, err)
}

// Save serializes the tree and writes it atomically.
// It writes to a temporary file in the target directory first, syncs via
// fsync, and then renames it over the destination, so a crash mid-write
// never leaves a truncated project behind.
func (c *Codec) Save(ctx context.Context, path string, tree *domain.Tree) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrIO, err)
	}
	start := time.Now()

	data, err := Encode(tree, EncodingFor(path))
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrIO, err)
	}

	if err := writeAtomic(path, data, c.perm); err != nil {
		c.logger.Warn("project save failed", "path", path, "err", err)
		return fmt.Errorf("%w: %w", domain.ErrIO, err)
	}

	c.logger.Debug("project saved", "path", path, "bytes", len(data), "duration", time.Since(start))
	return nil
}

func writeAtomic(destPath string, data []byte, perm fs.FileMode) error {
	dir := filepath.Dir(destPath)

	// 1. Create Temp File
	// Same directory as the target: rename is only atomic within one filesystem.
	tmpFile, err := os.CreateTemp(dir, "."+filepath.Base(destPath)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	// Cleanup: after a successful rename tmpPath no longer exists and Remove is a no-op.
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	// 2. Write Data
	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmpFile.Chmod(perm); err != nil && runtime.GOOS != "windows" {
		return fmt.Errorf("failed to set permissions: %w", err)
	}

	// 3. Fsync to ensure durability
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}

	// 4. Close File (cannot rename open file on Windows)
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	// 5. Atomic Rename
	// os.Rename fails on Windows if dest exists, so the old file is removed first.
	// That leaves a short window without a file; elsewhere rename replaces in one step.
	if runtime.GOOS == "windows" {
		if _, err := os.Stat(destPath); err == nil {
			if err := os.Remove(destPath); err != nil {
				return fmt.Errorf("failed to remove existing project for overwrite: %w", err)
			}
		}
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file over project: %w", err)
	}

	// 6. Persist the directory entry. Best effort: not every platform supports it.
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}
