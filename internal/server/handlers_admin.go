package server

import (
	"log"
	"net/http"

	"github.com/jonathan/ai-visibility/internal/config"
)

// AdminLoginRequest is the body of POST /api/admin/login.
type AdminLoginRequest struct {
	Password string `json:"password"`
}

// handleAdminLogin exchanges the admin password for an admin token.
func (s *Server) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	if s.jwt == nil || s.passwords == nil || !s.admin.Enabled() {
		s.writeError(w, config.ErrAuthDisabled)
		return
	}

	var req AdminLoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if req.Password == "" {
		s.writeError(w, &ErrValidation{Field: "password", Message: "is required"})
		return
	}
	if !s.passwords.VerifyPassword(req.Password, s.admin.PasswordHash) {
		log.Printf("[server] admin login failed from %s", clientID(r))
		s.writeError(w, ErrInvalidCredentials)
		return
	}

	token, err := s.jwt.GenerateAdminToken()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]string{"token": token})
}
