package remote

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Dir keeps objects as files under a root directory, such as a synced or
// network folder. Versions are content hashes.
type Dir struct {
	root string
	mu   sync.Mutex
}

func NewDir(root string) (*Dir, error) {
	if root == "" {
		return nil, errors.New("remote dir: root required")
	}
	if err := os.MkdirAll(root, 0o700); err != nil {
		return nil, fmt.Errorf("remote dir: %w", err)
	}
	return &Dir{root: root}, nil
}

func (d *Dir) file(path string) (string, error) {
	clean := filepath.Clean("/" + filepath.FromSlash(path))
	if clean == string(filepath.Separator) || strings.Contains(path, "..") {
		return "", fmt.Errorf("remote dir: invalid path %q", path)
	}
	return filepath.Join(d.root, clean), nil
}

func (d *Dir) Get(_ context.Context, path string) (Object, error) {
	f, err := d.file(path)
	if err != nil {
		return Object{}, err
	}
	data, err := os.ReadFile(f)
	if errors.Is(err, os.ErrNotExist) {
		return Object{}, ErrNotFound
	}
	if err != nil {
		return Object{}, fmt.Errorf("remote dir: %w", err)
	}
	return Object{Data: data, Version: ContentVersion(data)}, nil
}

func (d *Dir) Put(ctx context.Context, path string, data []byte, expected string) (string, error) {
	f, err := d.file(path)
	if err != nil {
		return "", err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	cur, err := d.Get(ctx, path)
	switch {
	case errors.Is(err, ErrNotFound):
		if expected != "" {
			return "", ErrVersionConflict
		}
	case err != nil:
		return "", err
	case cur.Version != expected:
		return "", ErrVersionConflict
	}

	if err := os.MkdirAll(filepath.Dir(f), 0o700); err != nil {
		return "", fmt.Errorf("remote dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(f), ".put-*")
	if err != nil {
		return "", fmt.Errorf("remote dir: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("remote dir: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("remote dir: %w", err)
	}
	if err := os.Rename(tmp.Name(), f); err != nil {
		return "", fmt.Errorf("remote dir: %w", err)
	}
	return ContentVersion(data), nil
}
