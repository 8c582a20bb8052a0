package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FSStore keeps artifacts as files under a root directory; scopes are
// first-level subdirectories.
type FSStore struct {
	root string
}

// NewFSStore creates a store rooted at dir, creating it if needed.
func NewFSStore(dir string) (*FSStore, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve results directory: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create results directory: %w", err)
	}
	return &FSStore{root: abs}, nil
}

// Root returns the absolute root directory.
func (s *FSStore) Root() string {
	return s.root
}

// Abs returns the absolute path of a scope/name locator.
func (s *FSStore) Abs(key string) string {
	if filepath.IsAbs(key) {
		return key
	}
	return filepath.Join(s.root, filepath.FromSlash(key))
}

// Rel converts an absolute path inside the root into a scope/name locator.
func (s *FSStore) Rel(path string) (string, error) {
	rel, err := filepath.Rel(s.root, path)
	if err != nil {
		return "", fmt.Errorf("failed to relativize %s: %w", path, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", &NameError{Name: path}
	}
	return filepath.ToSlash(rel), nil
}

// ListScopes implements Store.
func (s *FSStore) ListScopes(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("failed to list results directory: %w", err)
	}
	var scopes []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			scopes = append(scopes, e.Name())
		}
	}
	sort.Strings(scopes)
	return scopes, nil
}

// List implements Store.
func (s *FSStore) List(_ context.Context, scope string) ([]Object, error) {
	if err := validName(scope, true); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(filepath.Join(s.root, scope))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list %s: %w", scope, err)
	}

	objects := make([]Object, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		objects = append(objects, Object{
			Scope:   scope,
			Name:    e.Name(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Name < objects[j].Name })
	return objects, nil
}

// Read implements Store.
func (s *FSStore) Read(_ context.Context, scope, name string) ([]byte, error) {
	path, err := s.path(scope, name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", JoinKey(scope, name), ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read %s: %w", JoinKey(scope, name), err)
	}
	return data, nil
}

// Write implements Store. Data is written to a temporary file, synced, and
// renamed into place so readers never observe a partial artifact.
func (s *FSStore) Write(_ context.Context, scope, name string, data []byte) error {
	path, err := s.path(scope, name)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", scope, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-"+name+"-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", name, err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", name, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to store %s: %w", name, err)
	}
	return nil
}

// Delete implements Store.
func (s *FSStore) Delete(_ context.Context, scope, name string) (bool, error) {
	path, err := s.path(scope, name)
	if err != nil {
		return false, err
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to delete %s: %w", JoinKey(scope, name), err)
	}
	return true, nil
}

func (s *FSStore) path(scope, name string) (string, error) {
	if err := validName(scope, true); err != nil {
		return "", err
	}
	if err := validName(name, false); err != nil {
		return "", err
	}
	return filepath.Join(s.root, scope, name), nil
}
