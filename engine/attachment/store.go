package attachment

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/credportal/credportal/engine/core"
	"github.com/spf13/afero"
)

// Store persists uploaded bytes under slash-separated relative keys.
type Store interface {
	Write(ctx context.Context, key string, data []byte) error
	Remove(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// FSStore implements Store on an afero filesystem.
type FSStore struct {
	fs afero.Fs
}

func NewFSStore(fs afero.Fs) *FSStore {
	return &FSStore{fs: fs}
}

// NewOSStore stores files on disk below root.
func NewOSStore(root string) *FSStore {
	return NewFSStore(afero.NewBasePathFs(afero.NewOsFs(), root))
}

func sanitizeKey(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("empty key")
	}
	if strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid key contains '..'")
	}
	if strings.HasPrefix(key, "/") || strings.Contains(key, `\`) {
		return "", fmt.Errorf("invalid absolute key")
	}
	return path.Clean(filepath.ToSlash(key)), nil
}

// Write stores data at key, replacing any previous content. The bytes land in
// a temporary file first so readers never observe a partial write.
func (s *FSStore) Write(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	k, err := sanitizeKey(key)
	if err != nil {
		return fmt.Errorf("%w: %w", core.ErrValidation, err)
	}
	if err := s.fs.MkdirAll(path.Dir(k), 0o755); err != nil {
		return fmt.Errorf("%w: creating directory for %s: %w", core.ErrStorage, k, err)
	}
	tmp := k + ".part"
	if err := afero.WriteFile(s.fs, tmp, data, 0o644); err != nil {
		return fmt.Errorf("%w: writing %s: %w", core.ErrStorage, k, err)
	}
	if err := s.fs.Rename(tmp, k); err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("%w: renaming %s: %w", core.ErrStorage, k, err)
	}
	return nil
}

// Remove deletes key. Removing a missing key is not an error.
func (s *FSStore) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	k, err := sanitizeKey(key)
	if err != nil {
		return fmt.Errorf("%w: %w", core.ErrValidation, err)
	}
	if err := s.fs.Remove(k); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: removing %s: %w", core.ErrStorage, k, err)
	}
	return nil
}

func (s *FSStore) Exists(_ context.Context, key string) (bool, error) {
	k, err := sanitizeKey(key)
	if err != nil {
		return false, fmt.Errorf("%w: %w", core.ErrValidation, err)
	}
	ok, err := afero.Exists(s.fs, k)
	if err != nil {
		return false, fmt.Errorf("%w: stat %s: %w", core.ErrStorage, k, err)
	}
	return ok, nil
}
