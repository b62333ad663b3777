package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/bleflow/internal/auth"
)

// loginRequest is the request body for POST /auth/login.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// handleLogin authenticates the operator and returns a JWT access token.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Username == "" || req.Password == "" {
		writeBadRequest(w, "username and password are required")
		return
	}

	token, err := s.auth.Login(req.Username, req.Password)
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		s.logger.Warn("login failed", "username", req.Username)
		writeUnauthorized(w, "invalid credentials")
		return
	case errors.Is(err, auth.ErrNotConfigured):
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "login is not configured")
		return
	case err != nil:
		s.logger.Error("login error", "error", err)
		writeInternalError(w, "failed to generate token")
		return
	}

	s.logger.Info("login succeeded", "username", req.Username)
	writeJSON(w, http.StatusOK, token)
}

// handleWSTicket issues a single-use WebSocket ticket for the caller so the
// JWT never appears in a URL.
func (s *Server) handleWSTicket(w http.ResponseWriter, r *http.Request) {
	subject := ""
	if claims := claimsFromContext(r.Context()); claims != nil {
		subject = claims.Subject
	}

	ticket, err := s.tickets.Issue(subject)
	if err != nil {
		s.logger.Error("issuing websocket ticket", "error", err)
		writeInternalError(w, "failed to issue ticket")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ticket":     ticket,
		"expires_in": int(s.tickets.TTL().Seconds()),
	})
}
