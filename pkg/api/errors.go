package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// APIError is the structured error returned by admin operations. Status is
// an HTTP-like code: 400 BadRequest, 403 Forbidden, 404 NotFound, 500 for
// persistence failures.
type APIError struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

func newAPIError(status int, message string) *APIError {
	if message == "" {
		message = http.StatusText(status)
	}
	return &APIError{Status: status, Message: message}
}

// writeJSON sends a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeAPIError sends a structured error. Handlers either return a
// successful structured result or one of these; there is no bare-body path.
func writeAPIError(w http.ResponseWriter, e *APIError) {
	writeJSON(w, e.Status, map[string]any{"error": e})
}

// decodeBody parses the single JSON request object. An empty body decodes as
// the zero value, since several operations take no arguments.
func decodeBody(r *http.Request, v any) *APIError {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return newAPIError(http.StatusBadRequest, "invalid request body")
	}
	return nil
}
