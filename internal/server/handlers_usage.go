package server

import (
	"net/http"

	"github.com/jonathan/ai-visibility/internal/server/middleware"
	"github.com/jonathan/ai-visibility/internal/subscription"
)

// handleGetUsage returns the caller's test usage this month.
func (s *Server) handleGetUsage(w http.ResponseWriter, r *http.Request) {
	caller, err := middleware.GetIdentity(r)
	if err != nil {
		s.errorResponse(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	usage, err := s.usage.Current(r.Context(), caller.GetUserID(), caller.GetTier())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, usage)
}

// handleIncrementUsage counts one test for the caller, refusing once the
// monthly limit is reached.
func (s *Server) handleIncrementUsage(w http.ResponseWriter, r *http.Request) {
	caller, err := middleware.GetIdentity(r)
	if err != nil {
		s.errorResponse(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	usage, err := s.usage.Consume(r.Context(), caller.GetUserID(), caller.GetTier())
	if err != nil {
		if usage != nil {
			s.jsonResponse(w, HTTPStatus(err), map[string]any{
				"error": "Monthly test limit reached",
				"limit": usage.Limits.MaxTestsPerMonth,
			})
			return
		}
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"success":   true,
		"testCount": usage.TestsUsed,
		"limit":     usage.Limits.MaxTestsPerMonth,
	})
}

// handleCanRunTest answers whether the caller may start another test.
func (s *Server) handleCanRunTest(w http.ResponseWriter, r *http.Request) {
	caller, err := middleware.GetIdentity(r)
	if err != nil {
		s.errorResponse(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	usage, err := s.usage.Current(r.Context(), caller.GetUserID(), caller.GetTier())
	if err != nil {
		s.writeError(w, err)
		return
	}

	var remaining any = usage.TestsRemaining
	if usage.TestsRemaining == subscription.Unlimited {
		remaining = "unlimited"
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"canRun":            usage.Decision.Allowed,
		"reason":            usage.Decision.Reason,
		"testsRunThisMonth": usage.TestsUsed,
		"maxTestsPerMonth":  usage.Limits.MaxTestsPerMonth,
		"testsRemaining":    remaining,
		"tier":              usage.Tier,
		"tierName":          subscription.DisplayName(usage.Tier),
	})
}
