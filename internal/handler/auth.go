package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"portal/internal/domain"
	"portal/internal/session"
	"portal/pkg/errors"
	"portal/pkg/logger"
	"portal/pkg/validator"

	"golang.org/x/oauth2"
)

// AuthAPI is the backend's authentication surface.
type AuthAPI interface {
	Login(ctx context.Context, email, password string) (*domain.TokenPair, error)
	Me(ctx context.Context, tok *oauth2.Token) (*domain.User, error)
	Logout(ctx context.Context, tok *oauth2.Token) error
}

// SessionStore creates and persists portal sessions.
type SessionStore interface {
	Create(ctx context.Context, user domain.User, tok *oauth2.Token) (*session.Session, error)
	Save(ctx context.Context, sess *session.Session) error
	Delete(ctx context.Context, id string) error
}

// AuthHandler handles sign-in, sign-out and view switching.
type AuthHandler struct {
	failer
	api       AuthAPI
	store     SessionStore
	codec     *session.CookieCodec
	validator *validator.Validator
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(api AuthAPI, store SessionStore, codec *session.CookieCodec, val *validator.Validator, log logger.Logger) *AuthHandler {
	return &AuthHandler{
		failer:    failer{sessions: store, codec: codec, logger: log},
		api:       api,
		store:     store,
		codec:     codec,
		validator: val,
	}
}

// LoginRequest is the sign-in form.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,not_blank,max=256"`
}

// SwitchContextRequest selects the admin or vendor view.
type SwitchContextRequest struct {
	View domain.View `json:"view" validate:"required,oneof=admin vendor"`
}

// SessionResponse describes the signed-in user to the dashboard.
type SessionResponse struct {
	User           domain.User   `json:"user"`
	View           domain.View   `json:"view"`
	IsAdmin        bool          `json:"is_admin"`
	IsPrivileged   bool          `json:"is_privileged"`
	HasVendor      bool          `json:"has_vendor"`
	AvailableViews []domain.View `json:"available_views"`
	ExpiresAt      time.Time     `json:"expires_at"`
}

func newSessionResponse(sess *session.Session) SessionResponse {
	views := []domain.View{}
	for _, v := range []domain.View{domain.ViewAdmin, domain.ViewVendor} {
		if session.CanUseView(&sess.User, v) {
			views = append(views, v)
		}
	}
	return SessionResponse{
		User:           sess.User,
		View:           sess.View,
		IsAdmin:        sess.IsAdmin(),
		IsPrivileged:   sess.IsPrivileged(),
		HasVendor:      session.HasVendor(&sess.User),
		AvailableViews: views,
		ExpiresAt:      sess.ExpiresAt,
	}
}

// Login authenticates against the backend and starts a session.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if errs := h.validator.ValidateStructured(&req); len(errs) > 0 {
		respondValidationErrors(w, errs)
		return
	}

	pair, err := h.api.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(w, r, err, "login")
		return
	}
	tok := session.TokenFromPair(*pair, time.Now())

	user, err := h.api.Me(r.Context(), tok)
	if err != nil {
		h.fail(w, r, err, "login.me")
		return
	}
	if !session.IsAdmin(user) && !session.HasVendor(user) {
		_ = h.api.Logout(r.Context(), tok)
		h.logger.Warn("Login refused: no portal access", map[string]interface{}{"user_id": user.ID.String()})
		respondError(w, http.StatusForbidden, "This account has no portal access")
		return
	}

	sess, err := h.store.Create(r.Context(), *user, tok)
	if err != nil {
		h.fail(w, r, err, "login.session")
		return
	}
	if err := h.codec.Write(w, sess); err != nil {
		h.fail(w, r, err, "login.cookie")
		return
	}

	h.logger.Info("User signed in", map[string]interface{}{
		"user_id":    user.ID.String(),
		"view":       string(sess.View),
		"privileged": sess.IsPrivileged(),
	})
	respondJSON(w, http.StatusOK, newSessionResponse(sess))
}

// Logout ends the session. The backend logout is best effort.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	sess, ok := session.FromContext(r.Context())
	if !ok {
		h.codec.Clear(w)
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if err := h.api.Logout(r.Context(), sess.Token); err != nil {
		h.logger.Warn("Backend logout failed", map[string]interface{}{
			"session_id": sess.ID,
			"error":      err.Error(),
		})
	}
	if err := h.store.Delete(r.Context(), sess.ID); err != nil {
		h.logger.Error("Failed to delete session", map[string]interface{}{
			"session_id": sess.ID,
			"error":      err.Error(),
		})
	}
	h.codec.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}

// Session returns the current user and view.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	sess, ok := session.FromContext(r.Context())
	if !ok {
		h.fail(w, r, errors.ErrUnauthenticated, "session")
		return
	}
	respondJSON(w, http.StatusOK, newSessionResponse(sess))
}

// SwitchContext moves the session between the admin and vendor views.
func (h *AuthHandler) SwitchContext(w http.ResponseWriter, r *http.Request) {
	sess, ok := session.FromContext(r.Context())
	if !ok {
		h.fail(w, r, errors.ErrUnauthenticated, "switch_context")
		return
	}

	var req SwitchContextRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if errs := h.validator.ValidateStructured(&req); len(errs) > 0 {
		respondValidationErrors(w, errs)
		return
	}

	if err := session.SwitchView(sess, req.View); err != nil {
		h.fail(w, r, err, "switch_context")
		return
	}
	if err := h.store.Save(r.Context(), sess); err != nil {
		h.fail(w, r, err, "switch_context.save")
		return
	}
	respondJSON(w, http.StatusOK, newSessionResponse(sess))
}
