package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"portal/internal/domain"
	"portal/internal/session"
	"portal/pkg/errors"
	"portal/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newAuthFixture(t *testing.T) (*AuthHandler, *MockAuthAPI, *session.Store) {
	t.Helper()
	api := new(MockAuthAPI)
	store := session.NewStore(session.NewMemoryKV(), time.Hour)
	h := NewAuthHandler(api, store, newCodec(), newValidator(t), logger.NewNop())
	return h, api, store
}

func TestLogin_CreatesSessionAndCookie(t *testing.T) {
	h, api, store := newAuthFixture(t)
	user := adminUser(true)

	api.On("Login", mock.Anything, "reviewer@example.com", "pw").
		Return(&domain.TokenPair{AccessToken: "opaque", RefreshToken: "r", ExpiresIn: 900}, nil)
	api.On("Me", mock.Anything, mock.Anything).Return(&user, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login",
		jsonBody(t, map[string]string{"email": " Reviewer@Example.com ", "password": "pw"}))
	rec := httptest.NewRecorder()
	h.Login(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeResponse(t, rec)
	assert.Equal(t, "admin", body["view"])
	assert.Equal(t, true, body["is_admin"])
	assert.Equal(t, true, body["is_privileged"])

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	id, err := newCodec().Open(cookies[0].Value)
	require.NoError(t, err)

	sess, err := store.Get(req.Context(), id)
	require.NoError(t, err)
	assert.Equal(t, user.ID, sess.User.ID)
	assert.Equal(t, "opaque", sess.Token.AccessToken)
	api.AssertExpectations(t)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	h, api, _ := newAuthFixture(t)
	api.On("Login", mock.Anything, "a@b.co", "wrong").Return(nil, errors.ErrInvalidCredentials)

	rec := httptest.NewRecorder()
	h.Login(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login",
		jsonBody(t, map[string]string{"email": "a@b.co", "password": "wrong"})))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid_credentials", decodeResponse(t, rec)["code"])
	assert.Empty(t, rec.Result().Cookies())
}

func TestLogin_ValidationErrors(t *testing.T) {
	h, api, _ := newAuthFixture(t)

	rec := httptest.NewRecorder()
	h.Login(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login",
		jsonBody(t, map[string]string{"email": "not-an-email"})))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeResponse(t, rec)
	assert.Equal(t, "Validation failed", body["error"])
	assert.Contains(t, body["validation_errors"], "email")
	api.AssertNotCalled(t, "Login", mock.Anything, mock.Anything, mock.Anything)
}

func TestLogin_BlankPassword(t *testing.T) {
	h, api, _ := newAuthFixture(t)

	rec := httptest.NewRecorder()
	h.Login(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login",
		jsonBody(t, map[string]string{"email": "a@b.co", "password": "   "})))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	errs := decodeResponse(t, rec)["validation_errors"].(map[string]interface{})
	assert.Equal(t, "Must not be blank", errs["password"])
	api.AssertNotCalled(t, "Login", mock.Anything, mock.Anything, mock.Anything)
}

func TestLogin_RejectsEmptyBody(t *testing.T) {
	h, _, _ := newAuthFixture(t)

	rec := httptest.NewRecorder()
	h.Login(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login", http.NoBody))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Request body is required", decodeResponse(t, rec)["error"])
}

func TestLogin_RefusesAccountWithoutPortalAccess(t *testing.T) {
	h, api, _ := newAuthFixture(t)
	user := domain.User{Email: "nobody@example.com", Admin: &domain.AdminFlags{}}

	api.On("Login", mock.Anything, mock.Anything, mock.Anything).
		Return(&domain.TokenPair{AccessToken: "a", RefreshToken: "r"}, nil)
	api.On("Me", mock.Anything, mock.Anything).Return(&user, nil)
	api.On("Logout", mock.Anything, mock.Anything).Return(nil)

	rec := httptest.NewRecorder()
	h.Login(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login",
		jsonBody(t, map[string]string{"email": "nobody@example.com", "password": "pw"})))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, rec.Result().Cookies())
	api.AssertCalled(t, "Logout", mock.Anything, mock.Anything)
}

func TestLogout_DeletesSessionEvenWhenBackendFails(t *testing.T) {
	h, api, store := newAuthFixture(t)
	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)

	sess, err := store.Create(req.Context(), vendorUser(), newTestSession(vendorUser()).Token)
	require.NoError(t, err)
	api.On("Logout", mock.Anything, sess.Token).Return(errors.ErrBackendUnavailable)

	rec := httptest.NewRecorder()
	h.Logout(rec, withSession(req, sess))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	_, err = store.Get(req.Context(), sess.ID)
	assert.True(t, errors.Is(err, errors.ErrSessionNotFound))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, -1, cookies[0].MaxAge)
}

func TestSession_ReportsViews(t *testing.T) {
	h, _, _ := newAuthFixture(t)
	user := adminUser(false)
	user.Vendor = vendorUser().Vendor
	sess := newTestSession(user)

	rec := httptest.NewRecorder()
	h.Session(rec, withSession(httptest.NewRequest(http.MethodGet, "/api/auth/session", nil), sess))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeResponse(t, rec)
	assert.Equal(t, true, body["is_admin"])
	assert.Equal(t, false, body["is_privileged"])
	assert.Equal(t, true, body["has_vendor"])
	assert.ElementsMatch(t, []interface{}{"admin", "vendor"}, body["available_views"])
}

func TestSwitchContext(t *testing.T) {
	h, _, store := newAuthFixture(t)
	req := httptest.NewRequest(http.MethodPost, "/api/auth/context", nil)

	user := adminUser(false)
	user.Vendor = vendorUser().Vendor
	sess, err := store.Create(req.Context(), user, newTestSession(user).Token)
	require.NoError(t, err)
	require.Equal(t, domain.ViewAdmin, sess.View)

	t.Run("allowed view is persisted", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/api/auth/context", jsonBody(t, map[string]string{"view": "vendor"}))
		h.SwitchContext(rec, withSession(r, sess))

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		stored, err := store.Get(r.Context(), sess.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.ViewVendor, stored.View)
	})

	t.Run("unknown view fails validation", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/api/auth/context", jsonBody(t, map[string]string{"view": "root"}))
		h.SwitchContext(rec, withSession(r, sess))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("view the user lacks is forbidden", func(t *testing.T) {
		vendorOnly := newTestSession(vendorUser())
		rec := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/api/auth/context", jsonBody(t, map[string]string{"view": "admin"}))
		h.SwitchContext(rec, withSession(r, vendorOnly))

		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "invalid_context", decodeResponse(t, rec)["code"])
	})
}
