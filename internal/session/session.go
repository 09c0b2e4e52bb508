// Package session keeps portal sessions: who is signed in, which backend tokens
// they hold, and whether they are acting in the admin or vendor view.
package session

import (
	"context"
	"time"

	"portal/internal/domain"

	"golang.org/x/oauth2"
)

// Session is one signed-in browser.
type Session struct {
	ID        string        `json:"id"`
	User      domain.User   `json:"user"`
	Token     *oauth2.Token `json:"token"`
	View      domain.View   `json:"view"`
	CreatedAt time.Time     `json:"created_at"`
	ExpiresAt time.Time     `json:"expires_at"`
}

// IsAdmin reports whether the session's user has explicit admin access.
func (s *Session) IsAdmin() bool {
	return IsAdmin(&s.User)
}

// IsPrivileged reports whether the session's user is a privileged overseer.
func (s *Session) IsPrivileged() bool {
	return IsPrivileged(&s.User)
}

type ctxKey struct{}

// WithContext stores sess on ctx.
func WithContext(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, sess)
}

// FromContext returns the session placed on ctx by the session middleware.
func FromContext(ctx context.Context) (*Session, bool) {
	sess, ok := ctx.Value(ctxKey{}).(*Session)
	return sess, ok && sess != nil
}
