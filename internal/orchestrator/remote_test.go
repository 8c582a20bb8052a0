package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/ai-visibility/internal/correlation"
	"github.com/jonathan/ai-visibility/internal/types"
)

// scriptedBackend replays one poll outcome per call; a nil status means
// the poll fails.
type scriptedBackend struct {
	submitErr error
	polls     []*types.JobStatusPayload
	calls     int
	spec      types.JobSpec
}

func (b *scriptedBackend) SubmitJob(_ context.Context, spec types.JobSpec) (string, error) {
	b.spec = spec
	if b.submitErr != nil {
		return "", b.submitErr
	}
	return "job-1", nil
}

func (b *scriptedBackend) PollJob(_ context.Context, _ string) (*types.JobStatusPayload, error) {
	b.calls++
	if b.calls > len(b.polls) {
		return &types.JobStatusPayload{Status: types.JobRunning}, nil
	}
	if st := b.polls[b.calls-1]; st != nil {
		return st, nil
	}
	return nil, errors.New("502 bad gateway")
}

func (b *scriptedBackend) DeleteReport(context.Context, string) error { return nil }

func newTestRemote(b Backend) (*Remote, *int) {
	r := NewRemote(b)
	slept := 0
	r.sleep = func(context.Context, time.Duration) error {
		slept++
		return nil
	}
	return r, &slept
}

func running() *types.JobStatusPayload {
	return &types.JobStatusPayload{Status: types.JobRunning, Progress: 50}
}

func TestRemote_CompletedResultsPassThrough(t *testing.T) {
	raw := json.RawMessage(`[{"provider":"openai","success":true,"extra":{"kept":1}}]`)
	b := &scriptedBackend{polls: []*types.JobStatusPayload{running(), {Status: types.JobCompleted, Progress: 100, Results: raw}}}
	r, slept := newTestRemote(b)

	var seen []int
	got, err := r.Run(context.Background(), types.JobSpec{Providers: []string{"openai"}}, func(p int, _ string) { seen = append(seen, p) })
	require.NoError(t, err)
	assert.JSONEq(t, string(raw), string(got))
	assert.Equal(t, 2, *slept)
	assert.Equal(t, []int{50, 100}, seen)
	assert.Equal(t, []string{"openai"}, b.spec.Providers)
}

func TestRemote_CompletedWithoutResults(t *testing.T) {
	r, _ := newTestRemote(&scriptedBackend{polls: []*types.JobStatusPayload{{Status: types.JobCompleted}}})
	got, err := r.Run(context.Background(), types.JobSpec{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(got))
}

func TestRemote_FailedJobSurfacesBackendError(t *testing.T) {
	b := &scriptedBackend{polls: []*types.JobStatusPayload{{Status: types.JobFailed, Error: "OpenAI quota exceeded"}}}
	r, _ := newTestRemote(b)

	_, err := r.Run(context.Background(), types.JobSpec{}, nil)
	var failed *JobFailedError
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, "OpenAI quota exceeded", failed.Message)
	assert.Equal(t, 1, b.calls)
}

func TestRemote_TimesOutAfterMaxAttempts(t *testing.T) {
	b := &scriptedBackend{}
	r, slept := newTestRemote(b)

	_, err := r.Run(context.Background(), types.JobSpec{}, nil)
	assert.ErrorIs(t, err, ErrTimedOut)
	assert.Equal(t, "Test run timed out. Check backend logs.", err.Error())
	assert.Equal(t, DefaultMaxAttempts, b.calls)
	assert.Equal(t, DefaultMaxAttempts, *slept)
}

func TestRemote_ToleratesThreeConsecutiveFailures(t *testing.T) {
	b := &scriptedBackend{polls: []*types.JobStatusPayload{
		nil, nil, nil, running(),
		nil, nil, nil,
		{Status: types.JobCompleted, Results: json.RawMessage(`[]`)},
	}}
	r, _ := newTestRemote(b)

	_, err := r.Run(context.Background(), types.JobSpec{}, nil)
	require.NoError(t, err)
	assert.Equal(t, 8, b.calls)
}

func TestRemote_AbortsOnFourthConsecutiveFailure(t *testing.T) {
	b := &scriptedBackend{polls: []*types.JobStatusPayload{running(), nil, nil, nil, nil, running()}}
	r, _ := newTestRemote(b)

	_, err := r.Run(context.Background(), types.JobSpec{}, nil)
	var be *BackendError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, BackendHint, be.Hint())
	assert.Equal(t, 5, b.calls)
}

func TestRemote_FailuresCountTowardAttemptCap(t *testing.T) {
	polls := make([]*types.JobStatusPayload, 0, DefaultMaxAttempts)
	for len(polls) < DefaultMaxAttempts {
		polls = append(polls, nil, nil, running())
	}
	b := &scriptedBackend{polls: polls}
	r, _ := newTestRemote(b)

	_, err := r.Run(context.Background(), types.JobSpec{}, nil)
	assert.ErrorIs(t, err, ErrTimedOut)
	assert.Equal(t, DefaultMaxAttempts, b.calls)
}

func TestRemote_SubmitFailureIsBackendError(t *testing.T) {
	r, slept := newTestRemote(&scriptedBackend{submitErr: errors.New("dial tcp: connection refused")})

	_, err := r.Run(context.Background(), types.JobSpec{}, nil)
	var be *BackendError
	require.ErrorAs(t, err, &be)
	assert.Contains(t, be.Error(), "connection refused")
	assert.Zero(t, *slept)
}

func TestRemote_ContextCancelStopsPolling(t *testing.T) {
	r := NewRemote(&scriptedBackend{})
	r.interval = time.Hour
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Run(ctx, types.JobSpec{}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHTTPBackend(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/test/run", func(w http.ResponseWriter, r *http.Request) {
		var spec types.JobSpec
		if err := json.NewDecoder(r.Body).Decode(&spec); err != nil || len(spec.Providers) == 0 {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"job_id":"abc"}`))
	})
	mux.HandleFunc("GET /api/test/status/{id}", func(w http.ResponseWriter, r *http.Request) {
		switch r.PathValue("id") {
		case "abc":
			_, _ = w.Write([]byte(`{"status":"completed","progress":100,"message":"done","results":[{"provider":"openai"}]}`))
		case "broken":
			_, _ = w.Write([]byte(`{"status":"exploded"}`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	})
	mux.HandleFunc("DELETE /api/reports/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") == "missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	b := NewHTTPBackend(srv.URL+"/", srv.Client())
	ctx := context.Background()

	id, err := b.SubmitJob(ctx, types.JobSpec{Providers: []string{"openai"}})
	require.NoError(t, err)
	assert.Equal(t, "abc", id)

	_, err = b.SubmitJob(ctx, types.JobSpec{})
	var be *BackendError
	require.ErrorAs(t, err, &be)
	assert.Contains(t, be.Message, "400")

	st, err := b.PollJob(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, types.JobCompleted, st.Status)
	assert.JSONEq(t, `[{"provider":"openai"}]`, string(st.Results))

	_, err = b.PollJob(ctx, "broken")
	require.ErrorAs(t, err, &be)
	assert.Contains(t, be.Message, "invalid status payload")

	_, err = b.PollJob(ctx, "other")
	require.ErrorAs(t, err, &be)

	require.NoError(t, b.DeleteReport(ctx, "Acme_2025-01-01T12:00:00"))
	assert.ErrorIs(t, b.DeleteReport(ctx, "missing"), correlation.ErrNotFound)
}

func TestHTTPBackend_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	_, err := NewHTTPBackend(srv.URL, nil).SubmitJob(context.Background(), types.JobSpec{})
	var be *BackendError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, "Failed to communicate with backend", be.Message)
}
