package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jonathan/ai-visibility/internal/correlation"
	"github.com/jonathan/ai-visibility/internal/schemas"
	"github.com/jonathan/ai-visibility/internal/types"
)

// maxBackendBody caps how much of a backend response is read.
const maxBackendBody = 10 << 20

// HTTPBackend talks to a remote test runner over its JSON API.
type HTTPBackend struct {
	baseURL string
	client  *http.Client
}

// NewHTTPBackend creates a backend client for baseURL. A nil client uses a
// client with a 30 second timeout.
func NewHTTPBackend(baseURL string, client *http.Client) *HTTPBackend {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPBackend{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

// BaseURL returns the backend address.
func (b *HTTPBackend) BaseURL() string {
	return b.baseURL
}

// SubmitJob implements Backend.
func (b *HTTPBackend) SubmitJob(ctx context.Context, spec types.JobSpec) (string, error) {
	payload, err := json.Marshal(spec)
	if err != nil {
		return "", fmt.Errorf("failed to encode job: %w", err)
	}
	body, status, err := b.do(ctx, http.MethodPost, "/api/test/run", payload)
	if err != nil {
		return "", err
	}
	if status < 200 || status > 299 {
		return "", &BackendError{Message: fmt.Sprintf("Backend request failed: %d %s", status, strings.TrimSpace(string(body)))}
	}
	if err := schemas.Validate(schemas.JobSubmitted, body); err != nil {
		return "", &BackendError{Message: "Backend returned an invalid submission response", Cause: err}
	}

	var resp struct {
		JobID string `json:"job_id"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", &BackendError{Message: "Backend returned an invalid submission response", Cause: err}
	}
	return resp.JobID, nil
}

// PollJob implements Backend.
func (b *HTTPBackend) PollJob(ctx context.Context, jobID string) (*types.JobStatusPayload, error) {
	body, status, err := b.do(ctx, http.MethodGet, "/api/test/status/"+url.PathEscape(jobID), nil)
	if err != nil {
		return nil, err
	}
	if status < 200 || status > 299 {
		return nil, &BackendError{Message: fmt.Sprintf("Failed to get test status: %d", status)}
	}
	if err := schemas.Validate(schemas.JobStatus, body); err != nil {
		return nil, &BackendError{Message: "Backend returned an invalid status payload", Cause: err}
	}

	var payload types.JobStatusPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &BackendError{Message: "Backend returned an invalid status payload", Cause: err}
	}
	return &payload, nil
}

// DeleteReport implements Backend.
func (b *HTTPBackend) DeleteReport(ctx context.Context, reportID string) error {
	body, status, err := b.do(ctx, http.MethodDelete, "/api/reports/"+url.PathEscape(reportID), nil)
	if err != nil {
		return err
	}
	switch {
	case status == http.StatusNotFound:
		return fmt.Errorf("%s: %w", reportID, correlation.ErrNotFound)
	case status < 200 || status > 299:
		return &BackendError{Message: fmt.Sprintf("Backend delete failed: %d %s", status, strings.TrimSpace(string(body)))}
	}
	return nil
}

func (b *HTTPBackend) do(ctx context.Context, method, path string, payload []byte) ([]byte, int, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, reader)
	if err != nil {
		return nil, 0, &BackendError{Message: "Failed to build backend request", Cause: err}
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, 0, &BackendError{Message: "Failed to communicate with backend", Cause: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBackendBody))
	if err != nil {
		return nil, resp.StatusCode, &BackendError{Message: "Failed to read backend response", Cause: err}
	}
	return body, resp.StatusCode, nil
}
