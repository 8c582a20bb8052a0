package runindex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"regexp"
	"sort"
	"time"

	"github.com/jonathan/ai-visibility/internal/schemas"
	"github.com/jonathan/ai-visibility/internal/storage"
)

var metadataNamePattern = regexp.MustCompile(`^\.test_run_([A-Za-z0-9-]+)\.json$`)

// FileIndex keeps each run as a hidden .test_run_{id}.json file at the
// store root. Every lookup rescans the root.
type FileIndex struct {
	store storage.Store
}

// NewFileIndex creates an index over the root scope of store.
func NewFileIndex(store storage.Store) *FileIndex {
	return &FileIndex{store: store}
}

// MetadataName returns the hidden filename for a run.
func MetadataName(runID string) string {
	return ".test_run_" + runID + ".json"
}

// PutRun implements Index.
func (f *FileIndex) PutRun(ctx context.Context, meta RunMetadata) error {
	data, err := json.MarshalIndent(meta.normalized(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run metadata: %w", err)
	}
	if err := f.store.Write(ctx, "", MetadataName(meta.TestRunID), data); err != nil {
		return fmt.Errorf("failed to write run metadata: %w", err)
	}
	return nil
}

// GetRun implements Index.
func (f *FileIndex) GetRun(ctx context.Context, runID string) (*RunMetadata, error) {
	data, err := f.store.Read(ctx, "", MetadataName(runID))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	meta, err := decodeMetadata(data)
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}
	return meta, nil
}

// FindRun implements Index.
func (f *FileIndex) FindRun(ctx context.Context, businessDir string, at time.Time, tolerance time.Duration) (*RunMetadata, error) {
	runs, err := f.scan(ctx)
	if err != nil {
		return nil, err
	}
	return nearest(runs, businessDir, at, tolerance), nil
}

// ListRuns implements Index.
func (f *FileIndex) ListRuns(ctx context.Context) ([]RunMetadata, error) {
	runs, err := f.scan(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(runs, func(i, j int) bool { return runs[i].Timestamp.After(runs[j].Timestamp) })
	return runs, nil
}

// DeleteRun implements Index.
func (f *FileIndex) DeleteRun(ctx context.Context, runID string) error {
	if _, err := f.store.Delete(ctx, "", MetadataName(runID)); err != nil {
		return fmt.Errorf("failed to delete run metadata: %w", err)
	}
	return nil
}

// scan reads every metadata file in name order, skipping unreadable or
// malformed ones.
func (f *FileIndex) scan(ctx context.Context) ([]RunMetadata, error) {
	objects, err := f.store.List(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to list run metadata: %w", err)
	}

	var runs []RunMetadata
	for _, obj := range objects {
		if !metadataNamePattern.MatchString(obj.Name) {
			continue
		}
		data, err := f.store.Read(ctx, "", obj.Name)
		if err != nil {
			log.Printf("[runindex] skipping %s: %v", obj.Name, err)
			continue
		}
		meta, err := decodeMetadata(data)
		if err != nil {
			log.Printf("[runindex] skipping %s: %v", obj.Name, err)
			continue
		}
		runs = append(runs, *meta)
	}
	return runs, nil
}

func decodeMetadata(data []byte) (*RunMetadata, error) {
	if err := schemas.Validate(schemas.RunMetadata, data); err != nil {
		return nil, fmt.Errorf("invalid run metadata: %w", err)
	}
	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to parse run metadata: %w", err)
	}
	return &meta, nil
}
