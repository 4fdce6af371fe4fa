package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/filegate/filegate/pkg/accounts"
	"github.com/filegate/filegate/pkg/services"
	"github.com/filegate/filegate/pkg/storage"
)

// sanitize builds the projection of an account that may leave this layer:
// credential fields stripped, username always present, derived booleans
// attached.
func (s *Server) sanitize(a accounts.Account) accounts.View {
	return accounts.NewView(a, s.accountService.Resolver().CanLoginAdmin(a))
}

// handleGetUsernames returns the usernames of all accounts.
func (s *Server) handleGetUsernames(w http.ResponseWriter, r *http.Request) {
	list, err := s.accountService.Store().Usernames()
	if err != nil {
		writeAPIError(w, newAPIError(http.StatusInternalServerError, "failed to list accounts"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"list": list})
}

// handleGetAccount returns the sanitized account for the given username, or
// for the caller's own identity when the username is omitted.
func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
	}
	if apiErr := decodeBody(r, &req); apiErr != nil {
		writeAPIError(w, apiErr)
		return
	}

	username := req.Username
	if username == "" {
		username, _ = s.accountService.Resolver().CurrentUsername(r.Context())
	}
	if username == "" {
		writeAPIError(w, newAPIError(http.StatusNotFound, "no current identity"))
		return
	}

	account, err := s.accountService.Store().Get(username)
	if err != nil {
		writeAPIError(w, newAPIError(http.StatusNotFound, "account not found"))
		return
	}
	writeJSON(w, http.StatusOK, s.sanitize(account))
}

// handleGetAccounts returns the sanitized list of all accounts.
func (s *Server) handleGetAccounts(w http.ResponseWriter, r *http.Request) {
	list, err := s.accountService.Store().List()
	if err != nil {
		writeAPIError(w, newAPIError(http.StatusInternalServerError, "failed to list accounts"))
		return
	}
	views := make([]accounts.View, 0, len(list))
	for _, a := range list {
		views = append(views, s.sanitize(a))
	}
	writeJSON(w, http.StatusOK, map[string]any{"list": views})
}

// handleGetAdmins returns the usernames with effective admin access.
func (s *Server) handleGetAdmins(w http.ResponseWriter, r *http.Request) {
	list, err := s.accountService.Store().List()
	if err != nil {
		writeAPIError(w, newAPIError(http.StatusInternalServerError, "failed to list accounts"))
		return
	}
	admins := make([]string, 0)
	for _, a := range list {
		if s.accountService.Resolver().CanLoginAdmin(a) {
			admins = append(admins, a.Username)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"list": admins})
}

// handleSetAccount merges changes onto an existing account. A JSON null
// clears a field instead of storing it; the admin flag additionally rejects
// any non-boolean value before the store is touched.
func (s *Server) handleSetAccount(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string                     `json:"username"`
		Changes  map[string]json.RawMessage `json:"changes"`
	}
	if apiErr := decodeBody(r, &req); apiErr != nil {
		writeAPIError(w, apiErr)
		return
	}
	if req.Username == "" {
		writeAPIError(w, newAPIError(http.StatusBadRequest, "username is required"))
		return
	}

	changes, apiErr := convertChanges(req.Changes)
	if apiErr != nil {
		writeAPIError(w, apiErr)
		return
	}

	account, err := s.accountService.Store().Set(req.Username, changes)
	if err != nil {
		writeAPIError(w, storeError(err, http.StatusBadRequest))
		return
	}
	s.events.Broadcast(EventAccountUpdated, account.Username)
	writeJSON(w, http.StatusOK, map[string]string{"username": account.Username})
}

// handleAddAccount creates a new account from a username plus arbitrary
// initial fields.
func (s *Server) handleAddAccount(w http.ResponseWriter, r *http.Request) {
	var req map[string]json.RawMessage
	if apiErr := decodeBody(r, &req); apiErr != nil {
		writeAPIError(w, apiErr)
		return
	}

	var username string
	if raw, ok := req["username"]; ok {
		if err := json.Unmarshal(raw, &username); err != nil {
			writeAPIError(w, newAPIError(http.StatusBadRequest, "invalid username"))
			return
		}
	}
	if username == "" {
		writeAPIError(w, newAPIError(http.StatusBadRequest, "username is required"))
		return
	}
	delete(req, "username")

	fields, apiErr := convertChanges(req)
	if apiErr != nil {
		writeAPIError(w, apiErr)
		return
	}

	account, err := s.accountService.Store().Add(username, fields)
	if err != nil {
		if errors.Is(err, storage.ErrAccountExists) {
			writeAPIError(w, newAPIError(http.StatusForbidden, "account already exists"))
			return
		}
		writeAPIError(w, storeError(err, http.StatusBadRequest))
		return
	}
	s.events.Broadcast(EventAccountAdded, account.Username)
	writeJSON(w, http.StatusOK, map[string]string{"username": account.Username})
}

// handleDelAccount deletes an account. Deleting the caller's own account or
// the last admin is allowed; the registry performs no policy protection.
func (s *Server) handleDelAccount(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
	}
	if apiErr := decodeBody(r, &req); apiErr != nil {
		writeAPIError(w, apiErr)
		return
	}

	removed, err := s.accountService.Store().Remove(req.Username)
	if err != nil {
		writeAPIError(w, newAPIError(http.StatusInternalServerError, "failed to persist registry"))
		return
	}
	if !removed {
		writeAPIError(w, newAPIError(http.StatusBadRequest, "no such account"))
		return
	}
	s.events.Broadcast(EventAccountDeleted, req.Username)
	writeJSON(w, http.StatusOK, map[string]any{})
}

// handleChangePasswordOthers sets a new legacy password on another account
// (administrative variant, no current-password proof).
func (s *Server) handleChangePasswordOthers(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username    string `json:"username"`
		NewPassword string `json:"newPassword"`
	}
	if apiErr := decodeBody(r, &req); apiErr != nil {
		writeAPIError(w, apiErr)
		return
	}

	if err := s.accountService.ChangePassword(req.Username, req.NewPassword); err != nil {
		writeAPIError(w, credentialError(err))
		return
	}
	s.events.Broadcast(EventCredentialChanged, req.Username)
	writeJSON(w, http.StatusOK, map[string]any{})
}

// handleChangeSRPOthers stores a client-computed salt/verifier pair on
// another account.
func (s *Server) handleChangeSRPOthers(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Salt     string `json:"salt"`
		Verifier string `json:"verifier"`
	}
	if apiErr := decodeBody(r, &req); apiErr != nil {
		writeAPIError(w, apiErr)
		return
	}

	if err := s.accountService.ChangeSRP(req.Username, req.Salt, req.Verifier); err != nil {
		writeAPIError(w, credentialError(err))
		return
	}
	s.events.Broadcast(EventCredentialChanged, req.Username)
	writeJSON(w, http.StatusOK, map[string]any{})
}

// handleChangeOwnPassword is the self-service variant of change_password.
func (s *Server) handleChangeOwnPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		NewPassword string `json:"newPassword"`
	}
	if apiErr := decodeBody(r, &req); apiErr != nil {
		writeAPIError(w, apiErr)
		return
	}

	if err := s.accountService.ChangeOwnPassword(r.Context(), req.NewPassword); err != nil {
		writeAPIError(w, credentialError(err))
		return
	}
	username, _ := s.accountService.Resolver().CurrentUsername(r.Context())
	s.events.Broadcast(EventCredentialChanged, username)
	writeJSON(w, http.StatusOK, map[string]any{})
}

// handleChangeOwnSRP is the self-service variant of change_srp.
func (s *Server) handleChangeOwnSRP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Salt     string `json:"salt"`
		Verifier string `json:"verifier"`
	}
	if apiErr := decodeBody(r, &req); apiErr != nil {
		writeAPIError(w, apiErr)
		return
	}

	if err := s.accountService.ChangeOwnSRP(r.Context(), req.Salt, req.Verifier); err != nil {
		writeAPIError(w, credentialError(err))
		return
	}
	username, _ := s.accountService.Resolver().CurrentUsername(r.Context())
	s.events.Broadcast(EventCredentialChanged, username)
	writeJSON(w, http.StatusOK, map[string]any{})
}

// convertChanges turns raw JSON change values into the store's change map.
// JSON null becomes the clear sentinel (nil); the admin flag must otherwise
// be a boolean.
func convertChanges(raw map[string]json.RawMessage) (map[string]any, *APIError) {
	changes := make(map[string]any, len(raw))
	for key, value := range raw {
		if len(value) == 0 || string(value) == "null" {
			changes[key] = nil
			continue
		}
		if key == "admin" {
			var b bool
			if err := json.Unmarshal(value, &b); err != nil {
				return nil, newAPIError(http.StatusBadRequest, "invalid admin")
			}
			changes[key] = b
			continue
		}
		var v any
		if err := json.Unmarshal(value, &v); err != nil {
			return nil, newAPIError(http.StatusBadRequest, "invalid value for field "+key)
		}
		changes[key] = v
	}
	return changes, nil
}

// storeError maps store failures to the error taxonomy. notFoundStatus
// varies per operation: set_account reports a missing account as a bad
// request, the credential operations as not found.
func storeError(err error, notFoundStatus int) *APIError {
	switch {
	case errors.Is(err, storage.ErrAccountNotFound):
		return newAPIError(notFoundStatus, "no such account")
	case errors.Is(err, storage.ErrInvalidChange):
		return newAPIError(http.StatusBadRequest, err.Error())
	default:
		return newAPIError(http.StatusInternalServerError, "failed to persist registry")
	}
}

// credentialError maps credential codec failures to the error taxonomy.
func credentialError(err error) *APIError {
	switch {
	case errors.Is(err, storage.ErrAccountNotFound):
		return newAPIError(http.StatusNotFound, "no such account")
	case errors.Is(err, services.ErrMalformedSRP),
		errors.Is(err, services.ErrEmptyPassword):
		return newAPIError(http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrNoSession):
		return newAPIError(http.StatusUnauthorized, "no authenticated session")
	default:
		return newAPIError(http.StatusInternalServerError, "failed to persist registry")
	}
}
