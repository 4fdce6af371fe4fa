package api

import (
	"net/http"
)

// LoginRequest represents a login request
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse represents a login response
type LoginResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
	Admin    bool   `json:"admin"`
}

// handleLogin verifies a legacy password and issues a session token. The
// challenge-response exchange for migrated accounts lives in the transport
// layer and does not pass through here.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if apiErr := decodeBody(r, &req); apiErr != nil {
		writeAPIError(w, apiErr)
		return
	}

	if s.loginLimiter.IsLimited(req.Username) {
		writeAPIError(w, newAPIError(http.StatusTooManyRequests, "too many login attempts"))
		return
	}

	username, err := s.accountService.Authenticate(req.Username, req.Password)
	if err != nil {
		s.loginLimiter.RecordAttempt(req.Username)
		writeAPIError(w, newAPIError(http.StatusUnauthorized, "authentication failed"))
		return
	}

	token, err := s.accountService.GenerateJWT(username)
	if err != nil {
		s.logger.Error("failed to sign session token", "error", err)
		writeAPIError(w, newAPIError(http.StatusInternalServerError, "failed to generate token"))
		return
	}

	writeJSON(w, http.StatusOK, LoginResponse{
		Token:    token,
		Username: username,
		Admin:    s.accountService.IsAdmin(username),
	})
}
