package deepdive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/jonathan/ai-visibility/internal/types"
)

// FileStore keeps all requests in one JSON array file. It serves
// single-instance deployments without a database.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates a store backed by path. The file is created on
// first write.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Create implements Store.
func (s *FileStore) Create(_ context.Context, req *types.DeepDiveRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load()
	if err != nil {
		return err
	}
	for _, r := range all {
		if r.ID == req.ID {
			return fmt.Errorf("deep dive request %s already exists", req.ID)
		}
	}
	return s.save(append(all, *req))
}

// Get implements Store.
func (s *FileStore) Get(_ context.Context, id string) (*types.DeepDiveRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load()
	if err != nil {
		return nil, err
	}
	for i := range all {
		if all[i].ID == id {
			return &all[i], nil
		}
	}
	return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
}

// List implements Store.
func (s *FileStore) List(_ context.Context) ([]types.DeepDiveRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load()
	if err != nil {
		return nil, err
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return all, nil
}

// Complete implements Store.
func (s *FileStore) Complete(_ context.Context, id string, results types.DeepDiveResults, at time.Time) (*types.DeepDiveRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load()
	if err != nil {
		return nil, err
	}
	for i := range all {
		if all[i].ID != id {
			continue
		}
		if all[i].Status == types.DeepDiveCompleted {
			return nil, fmt.Errorf("%s: %w", id, ErrCompleted)
		}
		all[i].Status = types.DeepDiveCompleted
		all[i].Results = &results
		all[i].CompletedAt = &at
		if err := s.save(all); err != nil {
			return nil, err
		}
		return &all[i], nil
	}
	return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
}

// Delete implements Store.
func (s *FileStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load()
	if err != nil {
		return err
	}
	for i := range all {
		if all[i].ID == id {
			return s.save(append(all[:i], all[i+1:]...))
		}
	}
	return fmt.Errorf("%s: %w", id, ErrNotFound)
}

func (s *FileStore) load() ([]types.DeepDiveRequest, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return []types.DeepDiveRequest{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read deep dive requests: %w", err)
	}
	var all []types.DeepDiveRequest
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("failed to parse deep dive requests: %w", err)
	}
	return all, nil
}

// save replaces the file atomically.
func (s *FileStore) save(all []types.DeepDiveRequest) error {
	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal deep dive requests: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create deep dive directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".deep-dive-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write deep dive requests: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync deep dive requests: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace deep dive requests: %w", err)
	}
	return nil
}
