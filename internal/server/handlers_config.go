package server

import (
	"net/http"

	"github.com/jonathan/ai-visibility/internal/config"
)

// handleGetConfig returns the business profile.
func (s *Server) handleGetConfig(w http.ResponseWriter, _ *http.Request) {
	cfg, err := s.business.Load()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, cfg)
}

// handleSaveConfig replaces the business profile.
func (s *Server) handleSaveConfig(w http.ResponseWriter, r *http.Request) {
	var cfg config.BusinessConfig
	if err := decodeJSON(w, r, &cfg); err != nil {
		s.writeError(w, err)
		return
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		s.writeError(w, &ErrValidation{Field: "config", Message: err.Error()})
		return
	}
	if err := s.business.Save(&cfg); err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"success": true, "config": cfg})
}
