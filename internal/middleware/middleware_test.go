package middleware

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"portal/internal/domain"
	"portal/internal/session"
	"portal/pkg/config"
	"portal/pkg/errors"
	"portal/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type failingLoader struct{}

func (failingLoader) Get(context.Context, string) (*session.Session, error) {
	return nil, errors.Wrap(io.ErrUnexpectedEOF, "redis")
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func newSessionFixture(t *testing.T) (*session.Store, *session.CookieCodec) {
	t.Helper()
	store := session.NewStore(session.NewMemoryKV(), time.Hour)
	codec := session.NewCookieCodec(config.SessionConfig{CookieName: "portal_session", Secret: "k"})
	return store, codec
}

func requestWithSession(t *testing.T, codec *session.CookieCodec, sess *session.Session) *http.Request {
	t.Helper()
	rec := httptest.NewRecorder()
	require.NoError(t, codec.Write(rec, sess))
	req := httptest.NewRequest(http.MethodGet, "/api/admin/kyc/pending", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	return req
}

func TestSessionMiddleware_Authenticate(t *testing.T) {
	store, codec := newSessionFixture(t)
	mw := NewSessionMiddleware(store, codec, logger.NewNop())

	user := domain.User{ID: uuid.New(), Admin: &domain.AdminFlags{IsAdmin: true}}
	sess, err := store.Create(context.Background(), user, &oauth2.Token{AccessToken: "a"})
	require.NoError(t, err)

	var seen *session.Session
	h := mw.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = session.FromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, requestWithSession(t, codec, sess))
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, seen)
	assert.Equal(t, sess.ID, seen.ID)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	require.NoError(t, store.Delete(context.Background(), sess.ID))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, requestWithSession(t, codec, sess))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Session expired")
	assert.NotEmpty(t, rec.Result().Cookies())
}

func TestSessionMiddleware_StoreFailure(t *testing.T) {
	_, codec := newSessionFixture(t)
	mw := NewSessionMiddleware(failingLoader{}, codec, logger.NewNop())

	rec := httptest.NewRecorder()
	mw.Authenticate(okHandler()).ServeHTTP(rec, requestWithSession(t, codec, &session.Session{ID: "x", ExpiresAt: time.Now().Add(time.Hour)}))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRequireAdmin(t *testing.T) {
	vendorOrg := &domain.VendorMembership{OrganizationID: uuid.New(), Role: "owner"}

	tests := []struct {
		name string
		sess *session.Session
		want int
	}{
		{"no session", nil, http.StatusUnauthorized},
		{"vendor", &session.Session{User: domain.User{Vendor: vendorOrg}, View: domain.ViewVendor}, http.StatusForbidden},
		{"empty admin object", &session.Session{User: domain.User{Admin: &domain.AdminFlags{}}, View: domain.ViewAdmin}, http.StatusForbidden},
		{"admin in vendor view", &session.Session{User: domain.User{Admin: &domain.AdminFlags{IsAdmin: true}, Vendor: vendorOrg}, View: domain.ViewVendor}, http.StatusForbidden},
		{"admin", &session.Session{User: domain.User{Admin: &domain.AdminFlags{IsAdmin: true}}, View: domain.ViewAdmin}, http.StatusOK},
		{"super admin", &session.Session{User: domain.User{Admin: &domain.AdminFlags{IsSuperAdmin: true}}, View: domain.ViewAdmin}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.sess != nil {
				req = req.WithContext(session.WithContext(req.Context(), tt.sess))
			}
			rec := httptest.NewRecorder()
			RequireAdmin(okHandler()).ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestRequireVendor(t *testing.T) {
	sess := &session.Session{
		User: domain.User{Vendor: &domain.VendorMembership{OrganizationID: uuid.New()}},
		View: domain.ViewVendor,
	}
	req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(session.WithContext(context.Background(), sess))
	rec := httptest.NewRecorder()
	RequireVendor(okHandler()).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCORS(t *testing.T) {
	h := CORS([]string{"https://portal.example.com"})(okHandler())

	req := httptest.NewRequest(http.MethodOptions, "/api/auth/login", nil)
	req.Header.Set("Origin", "https://portal.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://portal.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestBodyLimit(t *testing.T) {
	h := BodyLimit(8)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := io.ReadAll(r.Body); err != nil {
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("small")))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(make([]byte, 64))))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestRecovery(t *testing.T) {
	h := Recovery(logger.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Internal server error"}`, rec.Body.String())
}

func TestCorrelationID(t *testing.T) {
	var seen string
	h := CorrelationID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", seen)
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	_, err := uuid.Parse(rec.Header().Get("X-Request-ID"))
	assert.NoError(t, err)
}
