package deepdive

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/ai-visibility/internal/types"
)

// IDPrefix starts every deep-dive request id.
const IDPrefix = "DD-"

// Service applies the request lifecycle on top of a Store.
type Service struct {
	store Store
	now   func() time.Time
}

// NewService creates a deep-dive service.
func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// Submit validates and records a new pending request.
func (s *Service) Submit(ctx context.Context, in *types.DeepDiveSubmitRequest) (*types.DeepDiveRequest, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	req := &types.DeepDiveRequest{
		ID:           IDPrefix + uuid.NewString(),
		BusinessName: strings.TrimSpace(in.BusinessName),
		BusinessURL:  strings.TrimSpace(in.BusinessURL),
		Email:        strings.TrimSpace(in.Email),
		AIEngines:    in.AIEngines,
		QueryCount:   in.QueryCount,
		QueryTypes:   in.QueryTypes,
		Notes:        in.Notes,
		Status:       types.DeepDivePending,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.store.Create(ctx, req); err != nil {
		return nil, err
	}
	log.Printf("[deepdive] request %s submitted for %s", req.ID, req.BusinessName)
	return req, nil
}

// Track returns a request by id.
func (s *Service) Track(ctx context.Context, id string) (*types.DeepDiveRequest, error) {
	return s.store.Get(ctx, strings.TrimSpace(id))
}

// List returns every request, newest first.
func (s *Service) List(ctx context.Context) ([]types.DeepDiveRequest, error) {
	return s.store.List(ctx)
}

// Complete attaches analyst results and marks the request completed.
func (s *Service) Complete(ctx context.Context, in *types.DeepDiveUpdateRequest) (*types.DeepDiveRequest, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	req, err := s.store.Complete(ctx, in.ID, in.Results, s.now().UTC())
	if err != nil {
		return nil, err
	}
	log.Printf("[deepdive] request %s completed", req.ID)
	return req, nil
}

// Delete removes a request.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.store.Delete(ctx, id)
}
