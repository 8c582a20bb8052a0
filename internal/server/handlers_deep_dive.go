package server

import (
	"net/http"
	"strings"

	"github.com/jonathan/ai-visibility/internal/types"
)

// handleSubmitDeepDive records a new manual analysis request.
func (s *Server) handleSubmitDeepDive(w http.ResponseWriter, r *http.Request) {
	var req types.DeepDiveSubmitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	created, err := s.deepDives.Submit(r.Context(), &req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"success": true, "request": created})
}

// handleTrackDeepDive returns one request by id.
func (s *Server) handleTrackDeepDive(w http.ResponseWriter, r *http.Request) {
	req, err := s.deepDives.Track(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"success": true, "request": req})
}

// handleListDeepDives returns every request, newest first.
func (s *Server) handleListDeepDives(w http.ResponseWriter, r *http.Request) {
	list, err := s.deepDives.List(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if list == nil {
		list = []types.DeepDiveRequest{}
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"success": true, "requests": list})
}

// handleUpdateDeepDive attaches results and completes a request.
func (s *Server) handleUpdateDeepDive(w http.ResponseWriter, r *http.Request) {
	var req types.DeepDiveUpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	updated, err := s.deepDives.Complete(r.Context(), &req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"success": true, "request": updated})
}

// handleDeleteDeepDive removes the request named by ?id=.
func (s *Server) handleDeleteDeepDive(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		s.writeError(w, &ErrValidation{Field: "id", Message: "is required"})
		return
	}
	if err := s.deepDives.Delete(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"success": true})
}
