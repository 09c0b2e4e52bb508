// ==============================================================================
// BACKEND CLIENT - internal/backend/client.go
// ==============================================================================
// Authenticated HTTP access to the remote API that owns all persistent state.
// The portal never stores KYC data itself; every read and write lands here.
// ==============================================================================

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"portal/internal/metrics"
	"portal/internal/session"
	"portal/pkg/config"
	"portal/pkg/errors"
	"portal/pkg/logger"

	"golang.org/x/oauth2"
)

// TokenSaver persists a refreshed token on the session it belongs to.
type TokenSaver interface {
	SaveToken(ctx context.Context, sess *session.Session, tok *oauth2.Token) error
}

// Client talks to the backend on behalf of a session.
type Client struct {
	baseURL string
	cfg     config.BackendConfig
	http    *http.Client
	saver   TokenSaver
	metrics *metrics.Metrics
	logger  logger.Logger
	now     func() time.Time
}

// NewClient builds a backend client. saver may be nil, in which case refreshed
// tokens live only on the in-memory session.
func NewClient(cfg config.BackendConfig, saver TokenSaver, m *metrics.Metrics, log logger.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		cfg:     cfg,
		http:    &http.Client{Timeout: timeout},
		saver:   saver,
		metrics: m,
		logger:  log,
		now:     time.Now,
	}
}

// NewRequest builds a request against the backend. body may be nil.
func (c *Client) NewRequest(ctx context.Context, method, path string, query url.Values, body []byte) (*http.Request, error) {
	target := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, rdr)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create backend request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// Do sends req with the session's bearer token. An expired token is refreshed
// before sending. A 401 triggers exactly one refresh and one retry; a second
// 401 or a failed refresh returns ErrSessionExpired.
func (c *Client) Do(ctx context.Context, sess *session.Session, req *http.Request) (*http.Response, error) {
	if sess == nil || sess.Token == nil || sess.Token.AccessToken == "" {
		return nil, errors.ErrUnauthenticated
	}

	refreshed := false
	if !c.tokenValid(sess.Token) {
		if err := c.refresh(ctx, sess); err != nil {
			return nil, err
		}
		refreshed = true
	}

	resp, err := c.send(req, sess.Token)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	drain(resp)

	if refreshed {
		return nil, errors.ErrSessionExpired
	}
	if err := c.refresh(ctx, sess); err != nil {
		return nil, err
	}

	retry, err := rewind(req)
	if err != nil {
		return nil, err
	}
	resp, err = c.send(retry, sess.Token)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		drain(resp)
		return nil, errors.ErrSessionExpired
	}
	return resp, nil
}

func (c *Client) tokenValid(tok *oauth2.Token) bool {
	if tok.AccessToken == "" {
		return false
	}
	return tok.Expiry.IsZero() || c.now().Before(tok.Expiry)
}

func (c *Client) send(req *http.Request, tok *oauth2.Token) (*http.Response, error) {
	tok.SetAuthHeader(req)
	return c.roundTrip(req, operationFor(req))
}

// roundTrip executes req and records latency. Transport failures map to
// ErrBackendUnavailable.
func (c *Client) roundTrip(req *http.Request, op string) (*http.Response, error) {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.ObserveBackend(op, 0, time.Since(start))
		c.logger.Warn("Backend request failed", map[string]interface{}{
			"operation": op,
			"error":     err.Error(),
		})
		return nil, errors.Wrap(errors.ErrBackendUnavailable, err.Error())
	}
	c.metrics.ObserveBackend(op, resp.StatusCode, time.Since(start))
	return resp, nil
}

func (c *Client) refresh(ctx context.Context, sess *session.Session) error {
	if sess.Token.RefreshToken == "" {
		c.metrics.IncrementRefresh("missing")
		return errors.ErrSessionExpired
	}

	body, _ := json.Marshal(map[string]string{"refresh_token": sess.Token.RefreshToken})
	req, err := c.NewRequest(ctx, http.MethodPost, c.cfg.RefreshPath, nil, body)
	if err != nil {
		return err
	}
	resp, err := c.roundTrip(req, "auth.refresh")
	if err != nil {
		c.metrics.IncrementRefresh("error")
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.metrics.IncrementRefresh("rejected")
		c.logger.Info("Token refresh rejected", map[string]interface{}{
			"session_id": sess.ID,
			"status":     resp.StatusCode,
		})
		return errors.ErrSessionExpired
	}

	pair, err := decodeTokenPair(resp.Body)
	if err != nil {
		c.metrics.IncrementRefresh("error")
		return err
	}
	if pair.RefreshToken == "" {
		pair.RefreshToken = sess.Token.RefreshToken
	}

	tok := session.TokenFromPair(*pair, c.now())
	sess.Token = tok
	if c.saver != nil {
		if err := c.saver.SaveToken(ctx, sess, tok); err != nil {
			c.logger.Error("Failed to persist refreshed token", map[string]interface{}{
				"session_id": sess.ID,
				"error":      err.Error(),
			})
		}
	}
	c.metrics.IncrementRefresh("ok")
	return nil
}

// rewind returns a copy of req whose body can be sent again.
func rewind(req *http.Request) (*http.Request, error) {
	retry := req.Clone(req.Context())
	if req.Body == nil || req.Body == http.NoBody {
		return retry, nil
	}
	if req.GetBody == nil {
		return nil, errors.Wrap(errors.ErrBackendUnavailable, "request body cannot be replayed")
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, errors.Wrap(err, "failed to rewind request body")
	}
	retry.Body = body
	return retry, nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	resp.Body.Close()
}

// decodeJSON reads a successful response into dest or turns a failure into an APIError.
func decodeJSON(resp *http.Response, dest interface{}) error {
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if dest == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return errors.Wrap(err, "failed to decode backend response")
	}
	return nil
}

// getJSON and sendJSON are the session-authenticated helpers used by the typed APIs.
func (c *Client) getJSON(ctx context.Context, sess *session.Session, path string, query url.Values, dest interface{}) error {
	req, err := c.NewRequest(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return err
	}
	resp, err := c.Do(ctx, sess, req)
	if err != nil {
		return err
	}
	return decodeJSON(resp, dest)
}

func (c *Client) sendJSON(ctx context.Context, sess *session.Session, method, path string, payload, dest interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "failed to encode backend request")
	}
	req, err := c.NewRequest(ctx, method, path, nil, body)
	if err != nil {
		return err
	}
	resp, err := c.Do(ctx, sess, req)
	if err != nil {
		return err
	}
	return decodeJSON(resp, dest)
}

type operationKey struct{}

// withOperation names the logical backend call for metrics.
func withOperation(ctx context.Context, op string) context.Context {
	return context.WithValue(ctx, operationKey{}, op)
}

func operationFor(req *http.Request) string {
	if op, ok := req.Context().Value(operationKey{}).(string); ok {
		return op
	}
	return "forward"
}
