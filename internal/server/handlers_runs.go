package server

import (
	"context"
	"log"
	"net/http"

	"github.com/jonathan/ai-visibility/internal/server/middleware"
	"github.com/jonathan/ai-visibility/internal/subscription"
	"github.com/jonathan/ai-visibility/internal/types"
)

// handleTestRun starts a test run. In remote mode it blocks until the
// backend finishes; locally it returns 202 with the job to poll.
func (s *Server) handleTestRun(w http.ResponseWriter, r *http.Request) {
	var req types.TestRunRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if err := req.Validate(); err != nil {
		s.writeError(w, err)
		return
	}

	caller, _ := middleware.GetIdentity(r)
	if caller != nil {
		if err := s.checkQuota(r.Context(), caller, &req); err != nil {
			s.writeError(w, err)
			return
		}
	}

	if s.runs.RemoteMode() {
		results, err := s.runs.RunRemote(r.Context(), &req)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.recordUsage(r.Context(), caller)
		s.jsonResponse(w, http.StatusOK, map[string]any{
			"success": true,
			"message": "Test run completed successfully",
			"results": results,
		})
		return
	}

	job, err := s.runs.Submit(r.Context(), &req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.recordUsage(r.Context(), caller)
	s.jsonResponse(w, http.StatusAccepted, job)
}

// checkQuota rejects runs the caller's tier does not allow.
func (s *Server) checkQuota(ctx context.Context, caller middleware.Identity, req *types.TestRunRequest) error {
	if err := subscription.CheckRequest(caller.GetTier(), req.TotalQueries(), req.CustomQueries != nil); err != nil {
		return err
	}
	usage, err := s.usage.Current(ctx, caller.GetUserID(), caller.GetTier())
	if err != nil {
		return err
	}
	if !usage.Decision.Allowed {
		return &quotaError{reason: usage.Decision.Reason}
	}
	return nil
}

// recordUsage counts an accepted run against the caller's month.
func (s *Server) recordUsage(ctx context.Context, caller middleware.Identity) {
	if caller == nil {
		return
	}
	if _, err := s.usage.Record(context.WithoutCancel(ctx), caller.GetUserID(), caller.GetTier()); err != nil {
		log.Printf("[server] failed to record usage for %s: %v", caller.GetUserID(), err)
	}
}

// quotaError is a monthly limit hit, reported with the tier's reason.
type quotaError struct {
	reason string
}

func (e *quotaError) Error() string { return e.reason }

func (e *quotaError) Unwrap() error { return subscription.ErrLimitReached }

// handleTestStatus returns a run's status payload. Remote runs are looked
// up on the backend.
func (s *Server) handleTestStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if s.runs.RemoteMode() {
		payload, err := s.runs.Remote().Backend().PollJob(r.Context(), id)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.jsonResponse(w, http.StatusOK, payload)
		return
	}

	job, err := s.runs.Status(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, job)
}

// handleTestStream follows a local job over Server-Sent Events: one
// "progress" event per change and a final "complete" event.
func (s *Server) handleTestStream(w http.ResponseWriter, r *http.Request) {
	updates, err := s.runs.Watch(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	for job := range updates {
		event := eventProgress
		if job.Status.Terminal() {
			event = eventComplete
		}
		if err := sse.WriteEvent(event, job); err != nil {
			log.Printf("[server] stream for job %s closed: %v", job.ID, err)
			return
		}
		if event == eventComplete {
			return
		}
	}
	if r.Context().Err() == nil {
		sse.WriteError("job is no longer available")
	}
}

// handleConfigCheck reports whether runs are delegated to a backend.
func (s *Server) handleConfigCheck(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]any{
		"configured": s.runs.RemoteMode(),
		"backendUrl": "NOT SET",
		"mode":       "local",
		"message":    "Backend URL is NOT configured. Test runs execute locally; set BACKEND_URL to use a remote backend.",
	}
	if s.runs.RemoteMode() {
		resp["backendUrl"] = s.backendURL
		resp["mode"] = "remote"
		resp["message"] = "Backend URL is configured"
	}
	s.jsonResponse(w, http.StatusOK, resp)
}
