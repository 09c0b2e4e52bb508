package handler

import (
	"context"
	"io"
	"net/http"
	"net/url"
	pathpkg "path"
	"strings"

	"portal/internal/session"
	"portal/pkg/errors"
	"portal/pkg/logger"
)

// Forwarder relays a request to the backend under the session's credentials.
type Forwarder interface {
	Forward(ctx context.Context, sess *session.Session, method, path string, query url.Values, body []byte) (*http.Response, error)
}

// reservedPaths belong to the portal and are never forwarded, whatever the
// method. KYC status changes must pass the review rules in UpdateStatus.
var reservedPaths = []string{"/admin/kyc"}

func reserved(p string) bool {
	p = strings.ToLower(pathpkg.Clean("/" + p))
	for _, r := range reservedPaths {
		if p == r || strings.HasPrefix(p, r+"/") {
			return true
		}
	}
	return false
}

// ProxyHandler passes vendor and admin API calls the portal does not handle
// itself straight through to the backend.
type ProxyHandler struct {
	failer
	backend Forwarder
	prefix  string
}

// NewProxyHandler creates a ProxyHandler. prefix is removed from the incoming
// path before forwarding, so /api/vendor/payouts reaches the backend as
// /vendor/payouts.
func NewProxyHandler(fwd Forwarder, prefix string, sessions SessionTerminator, codec *session.CookieCodec, log logger.Logger) *ProxyHandler {
	return &ProxyHandler{
		failer:  failer{sessions: sessions, codec: codec, logger: log},
		backend: fwd,
		prefix:  strings.TrimSuffix(prefix, "/"),
	}
}

func (h *ProxyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sess, ok := session.FromContext(r.Context())
	if !ok {
		h.fail(w, r, errors.ErrUnauthenticated, "proxy")
		return
	}

	path := strings.TrimPrefix(r.URL.Path, h.prefix)
	if path == "" || path == r.URL.Path || reserved(path) {
		respondError(w, http.StatusNotFound, "Not found")
		return
	}

	var body []byte
	if r.Body != nil && r.Method != http.MethodGet && r.Method != http.MethodHead {
		b, err := io.ReadAll(r.Body)
		if err != nil {
			respondError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}
		body = b
	}

	resp, err := h.backend.Forward(r.Context(), sess, r.Method, path, r.URL.Query(), body)
	if err != nil {
		h.fail(w, r, err, "proxy")
		return
	}
	defer resp.Body.Close()

	for k, vv := range resp.Header {
		for _, v := range vv {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		h.logger.Warn("Proxy response copy failed", map[string]interface{}{
			"path":  path,
			"error": err.Error(),
		})
	}
}
