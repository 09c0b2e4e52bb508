package backend

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"portal/pkg/errors"
)

// APIError is a non-2xx response from the backend.
type APIError struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.Status, e.Message)
}

// Unwrap maps well-known statuses onto the shared sentinels.
func (e *APIError) Unwrap() error {
	switch {
	case e.Status == http.StatusNotFound:
		return errors.ErrNotFound
	case e.Status == http.StatusUnauthorized:
		return errors.ErrUnauthenticated
	case e.Status == http.StatusForbidden:
		return errors.ErrForbidden
	case e.Status >= 500:
		return errors.ErrBackendUnavailable
	default:
		return nil
	}
}

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 64 << 10

// decodeError builds an APIError from resp. The backend reports failures as
// {"error": "..."} and occasionally {"message": "..."}.
func decodeError(resp *http.Response) *APIError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	msg := ""
	if json.Unmarshal(body, &payload) == nil {
		msg = payload.Error
		if msg == "" {
			msg = payload.Message
		}
	}
	if msg == "" {
		msg = strings.TrimSpace(string(body))
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &APIError{Status: resp.StatusCode, Message: msg}
}
