package backend

import (
	"context"
	"net/http"
	"net/url"

	"portal/internal/session"
)

// hopHeaders are never copied from a backend response; the portal sets its own
// CORS policy and connection handling.
var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Transfer-Encoding",
	"Upgrade",
	"Access-Control-Allow-Origin",
	"Access-Control-Allow-Methods",
	"Access-Control-Allow-Headers",
	"Access-Control-Allow-Credentials",
	"Access-Control-Expose-Headers",
	"Access-Control-Max-Age",
	"Set-Cookie",
}

// Forward relays an arbitrary authenticated call to the backend and returns the
// raw response. The caller must close the body. Non-2xx responses are returned
// as-is so the client sees the backend's status and payload.
func (c *Client) Forward(ctx context.Context, sess *session.Session, method, path string, query url.Values, body []byte) (*http.Response, error) {
	req, err := c.NewRequest(ctx, method, path, query, body)
	if err != nil {
		return nil, err
	}
	resp, err := c.Do(ctx, sess, req)
	if err != nil {
		return nil, err
	}
	for _, h := range hopHeaders {
		resp.Header.Del(h)
	}
	return resp, nil
}
