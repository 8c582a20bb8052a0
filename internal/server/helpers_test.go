package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/jonathan/ai-visibility/internal/config"
	"github.com/jonathan/ai-visibility/internal/correlation"
	"github.com/jonathan/ai-visibility/internal/deepdive"
	"github.com/jonathan/ai-visibility/internal/jobs"
	"github.com/jonathan/ai-visibility/internal/llm"
	"github.com/jonathan/ai-visibility/internal/orchestrator"
	"github.com/jonathan/ai-visibility/internal/report"
	"github.com/jonathan/ai-visibility/internal/runindex"
	"github.com/jonathan/ai-visibility/internal/server/ratelimit"
	"github.com/jonathan/ai-visibility/internal/storage"
	"github.com/jonathan/ai-visibility/internal/subscription"
	"github.com/jonathan/ai-visibility/internal/types"
)

const (
	testSecret        = "test-secret-key-0123456789"
	testAdminPassword = "open-sesame"
)

// fakeLLM recommends the business and one competitor in every answer.
type fakeLLM struct{}

func (fakeLLM) GenerateContent(context.Context, string, llm.ModelTier) (string, error) {
	return "Try Acme Plumbing first; Rival Pipes is also well reviewed.", nil
}

func (fakeLLM) GenerateJSON(context.Context, string, llm.ModelTier) (string, error) {
	queries := make([]string, 10)
	for i := range queries {
		queries[i] = fmt.Sprintf("%q", fmt.Sprintf("Which plumber should I call, take %d?", i+1))
	}
	return `{"queries": [` + strings.Join(queries, ",") + `]}`, nil
}

func (fakeLLM) GetModel(llm.ModelTier) string { return "fake" }
func (fakeLLM) Close() error                  { return nil }

// fakeBackend is a remote backend that completes every job on first poll.
type fakeBackend struct {
	mu        sync.Mutex
	submitErr error
	status    *types.JobStatusPayload
	deleted   []string
}

func (b *fakeBackend) SubmitJob(context.Context, types.JobSpec) (string, error) {
	if b.submitErr != nil {
		return "", b.submitErr
	}
	return "job-1", nil
}

func (b *fakeBackend) PollJob(_ context.Context, id string) (*types.JobStatusPayload, error) {
	if id != "job-1" {
		return nil, fmt.Errorf("job %s: %w", id, jobs.ErrNotFound)
	}
	return b.status, nil
}

func (b *fakeBackend) DeleteReport(_ context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deleted = append(b.deleted, id)
	return nil
}

type harness struct {
	t        *testing.T
	srv      *Server
	handler  http.Handler
	runs     *orchestrator.Service
	business *config.BusinessStore
	usage    *subscription.Tracker
	jwt      *JWTService
}

type option func(*Deps)

func withoutAuth() option {
	return func(d *Deps) { d.JWT = nil }
}

func withRemote(b orchestrator.Backend) option {
	return func(d *Deps) {
		remote := orchestrator.NewRemote(b).WithPollInterval(time.Millisecond)
		d.Runs = orchestrator.NewService(jobs.NewMemoryStore(time.Hour), nil, remote)
	}
}

func withRateLimit(cfg *ratelimit.Config) option {
	return func(d *Deps) { d.RateLimit = cfg }
}

func newHarness(t *testing.T, opts ...option) *harness {
	t.Helper()
	root := t.TempDir()

	store, err := storage.NewFSStore(filepath.Join(root, "results"))
	require.NoError(t, err)
	index := runindex.NewFileIndex(store)
	resolver := correlation.NewResolver(store, index)

	business := config.NewBusinessStore(filepath.Join(root, "config.yaml"))
	require.NoError(t, business.Save(&config.BusinessConfig{
		Name:        "Acme Plumbing",
		URL:         "https://acme.example",
		Location:    "Sydney",
		Competitors: []string{"Rival Pipes"},
	}))

	workers := orchestrator.NewRegistry(orchestrator.NewLLMWorker(fakeLLM{}, store))
	local := orchestrator.NewLocal(store, index, workers, business, 2)

	hash, err := bcrypt.GenerateFromPassword([]byte(testAdminPassword), bcrypt.MinCost)
	require.NoError(t, err)

	deps := Deps{
		Runs:      orchestrator.NewService(jobs.NewMemoryStore(time.Hour), local, nil).WithWatchInterval(10 * time.Millisecond),
		Reports:   report.NewBuilder(store, resolver),
		Resolver:  resolver,
		Business:  business,
		DeepDives: deepdive.NewService(deepdive.NewFileStore(filepath.Join(root, "deep-dive-requests.json"))),
		Usage:     subscription.NewTracker(subscription.NewMemoryUsage()),
		JWT:       NewJWTService(&config.JWTConfig{Secret: testSecret, ExpirationHours: 1}),
		Passwords: &config.PasswordConfig{BcryptCost: bcrypt.MinCost},
		Admin:     &config.AdminConfig{PasswordHash: string(hash)},
		RateLimit: &ratelimit.Config{Enabled: false},
	}
	for _, opt := range opts {
		opt(&deps)
	}

	srv, err := New(Config{Port: 0, BackendURL: "http://backend.test"}, deps)
	require.NoError(t, err)
	t.Cleanup(func() {
		deps.Runs.Wait()
		srv.Close()
	})

	return &harness{
		t:        t,
		srv:      srv,
		handler:  srv.Handler(),
		runs:     deps.Runs,
		business: business,
		usage:    deps.Usage,
		jwt:      deps.JWT,
	}
}

// do sends a request through the full middleware chain. A non-nil body is
// JSON-encoded unless it is already a string.
func (h *harness) do(method, path string, body any, token string) *httptest.ResponseRecorder {
	h.t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(h.t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.RemoteAddr = "192.0.2.1:5000"
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.handler.ServeHTTP(w, req)
	return w
}

func (h *harness) token(userID, tier string) string {
	h.t.Helper()
	tok, err := h.jwt.GenerateToken(userID, tier)
	require.NoError(h.t, err)
	return tok
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func runRequest(consumer int) map[string]any {
	return map[string]any{
		"providers":       []string{"claude", "openai"},
		"queryTypes":      []string{"consumer"},
		"consumerQueries": consumer,
		"businessQueries": 0,
	}
}
