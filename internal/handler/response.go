// Package handler provides HTTP handlers for the vendor and admin portal.
package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"portal/internal/backend"
	"portal/internal/kyc"
	"portal/internal/middleware"
	"portal/internal/session"
	"portal/pkg/errors"
	"portal/pkg/logger"
)

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func respondValidationErrors(w http.ResponseWriter, errors map[string]string) {
	respondJSON(w, http.StatusBadRequest, map[string]interface{}{
		"error":             "Validation failed",
		"validation_errors": errors,
	})
}

// decodeBody reads a JSON request body into dst, rejecting unknown fields.
// It writes the error response itself and reports whether decoding succeeded.
func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		if err == io.EOF {
			respondError(w, http.StatusBadRequest, "Request body is required")
			return false
		}
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// parsePage reads limit/offset query parameters, capping limit at 100.
func parsePage(r *http.Request) backend.Page {
	p := backend.Page{Limit: 20}
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			p.Limit = n
		}
	}
	if p.Limit > 100 {
		p.Limit = 100
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			p.Offset = n
		}
	}
	return p
}

// SessionTerminator ends a session whose backend credentials stopped working.
type SessionTerminator interface {
	Delete(ctx context.Context, id string) error
}

// failer turns service errors into responses. A backend-expired session is
// deleted and its cookie cleared so the dashboard returns to the login page.
type failer struct {
	sessions SessionTerminator
	codec    *session.CookieCodec
	logger   logger.Logger
}

func (f *failer) fail(w http.ResponseWriter, r *http.Request, err error, operation string) {
	status, body := mapError(err)

	if errors.Is(err, errors.ErrSessionExpired) && f.sessions != nil {
		if sess, ok := session.FromContext(r.Context()); ok {
			_ = f.sessions.Delete(r.Context(), sess.ID)
		}
		if f.codec != nil {
			f.codec.Clear(w)
		}
	}

	fields := map[string]interface{}{
		"operation":  operation,
		"error":      err.Error(),
		"status":     status,
		"request_id": middleware.RequestIDFromContext(r.Context()),
	}
	if status >= 500 {
		f.logger.Error("Request failed", fields)
	} else {
		f.logger.Warn("Request rejected", fields)
	}

	respondJSON(w, status, body)
}

// mapError maps an error to a status and a response body. Transition
// rejections keep their kind distinct: locked is 409, not allowed is 403 and a
// missing reason is 422.
func mapError(err error) (int, map[string]interface{}) {
	var te *kyc.TransitionError
	if errors.As(err, &te) {
		status := http.StatusForbidden
		switch te.Kind {
		case kyc.ErrRecordLocked:
			status = http.StatusConflict
		case kyc.ErrReasonRequired:
			status = http.StatusUnprocessableEntity
		}
		return status, map[string]interface{}{
			"error": te.Error(),
			"code":  te.Code(),
			"from":  te.From,
			"to":    te.To,
		}
	}

	body := func(code, msg string) map[string]interface{} {
		return map[string]interface{}{"error": msg, "code": code}
	}

	switch {
	case errors.Is(err, errors.ErrSessionExpired), errors.Is(err, errors.ErrSessionNotFound):
		return http.StatusUnauthorized, body("session_expired", "Session expired")
	case errors.Is(err, errors.ErrInvalidCredentials):
		return http.StatusUnauthorized, body("invalid_credentials", "Invalid credentials")
	case errors.Is(err, errors.ErrUnauthenticated):
		return http.StatusUnauthorized, body("unauthenticated", "Authentication required")
	case errors.Is(err, errors.ErrInvalidContext):
		return http.StatusForbidden, body("invalid_context", "That view is not available for this account")
	case errors.Is(err, errors.ErrForbidden):
		return http.StatusForbidden, body("forbidden", "Access denied")
	case errors.Is(err, errors.ErrNotFound):
		return http.StatusNotFound, body("not_found", "Resource not found")
	case errors.Is(err, errors.ErrAuditUnavailable):
		return http.StatusServiceUnavailable, body("audit_unavailable", "Audit trail is not configured")
	case errors.Is(err, errors.ErrBackendUnavailable):
		return http.StatusBadGateway, body("backend_unavailable", "Backend service is temporarily unavailable")
	}

	var apiErr *backend.APIError
	if errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500 {
		return apiErr.Status, body("backend_rejected", apiErr.Message)
	}

	return http.StatusInternalServerError, body("internal", "An internal error occurred")
}
