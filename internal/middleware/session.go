package middleware

import (
	"context"
	"net/http"

	"portal/internal/domain"
	"portal/internal/session"
	"portal/pkg/errors"
	"portal/pkg/logger"
)

// SessionLoader loads a session by ID.
type SessionLoader interface {
	Get(ctx context.Context, id string) (*session.Session, error)
}

// SessionMiddleware resolves the session cookie into a *session.Session on the
// request context.
type SessionMiddleware struct {
	store  SessionLoader
	codec  *session.CookieCodec
	logger logger.Logger
}

// NewSessionMiddleware constructs a SessionMiddleware.
func NewSessionMiddleware(store SessionLoader, codec *session.CookieCodec, log logger.Logger) *SessionMiddleware {
	return &SessionMiddleware{store: store, codec: codec, logger: log}
}

// Authenticate rejects requests without a live session.
func (m *SessionMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := m.codec.Read(r)
		if err != nil {
			jsonError(w, http.StatusUnauthorized, "Authentication required")
			return
		}

		sess, err := m.store.Get(r.Context(), id)
		switch {
		case errors.Is(err, errors.ErrSessionExpired), errors.Is(err, errors.ErrSessionNotFound):
			m.codec.Clear(w)
			jsonError(w, http.StatusUnauthorized, "Session expired")
			return
		case err != nil:
			m.logger.Error("Failed to load session", map[string]interface{}{
				"error":      err.Error(),
				"request_id": RequestIDFromContext(r.Context()),
			})
			jsonError(w, http.StatusServiceUnavailable, "Session store unavailable")
			return
		}

		next.ServeHTTP(w, r.WithContext(session.WithContext(r.Context(), sess)))
	})
}

// RequireAdmin allows only admins acting in the admin view.
func RequireAdmin(next http.Handler) http.Handler {
	return requireView(domain.ViewAdmin, next)
}

// RequireVendor allows only vendor members acting in the vendor view.
func RequireVendor(next http.Handler) http.Handler {
	return requireView(domain.ViewVendor, next)
}

func requireView(view domain.View, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := session.FromContext(r.Context())
		if !ok {
			jsonError(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		if !session.CanUseView(&sess.User, view) {
			jsonError(w, http.StatusForbidden, "Access denied")
			return
		}
		if sess.View != view {
			jsonError(w, http.StatusForbidden, "Switch to the "+string(view)+" view to continue")
			return
		}
		next.ServeHTTP(w, r)
	})
}
