package backend

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"portal/internal/domain"
	"portal/pkg/errors"

	"golang.org/x/oauth2"
)

// Login exchanges credentials for a token pair. A 400 or 401 from the backend
// becomes ErrInvalidCredentials so the portal never echoes upstream wording.
func (c *Client) Login(ctx context.Context, email, password string) (*domain.TokenPair, error) {
	body, _ := json.Marshal(map[string]string{"email": email, "password": password})
	req, err := c.NewRequest(ctx, http.MethodPost, c.cfg.LoginPath, nil, body)
	if err != nil {
		return nil, err
	}
	resp, err := c.roundTrip(req, "auth.login")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusBadRequest {
		drain(resp)
		return nil, errors.ErrInvalidCredentials
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp)
	}
	pair, err := decodeTokenPair(resp.Body)
	if err != nil {
		return nil, err
	}
	return pair, nil
}

// Me fetches the profile of the token's owner, including admin flags and
// vendor membership.
func (c *Client) Me(ctx context.Context, tok *oauth2.Token) (*domain.User, error) {
	req, err := c.NewRequest(withOperation(ctx, "auth.me"), http.MethodGet, c.cfg.MePath, nil, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.send(req, tok)
	if err != nil {
		return nil, err
	}

	var envelope struct {
		domain.User
		Data *domain.User `json:"user"`
	}
	if err := decodeJSON(resp, &envelope); err != nil {
		return nil, err
	}
	if envelope.Data != nil {
		return envelope.Data, nil
	}
	u := envelope.User
	return &u, nil
}

// Logout revokes the refresh token upstream. Callers treat failure as best effort.
func (c *Client) Logout(ctx context.Context, tok *oauth2.Token) error {
	if tok == nil {
		return nil
	}
	body, _ := json.Marshal(map[string]string{"refresh_token": tok.RefreshToken})
	req, err := c.NewRequest(withOperation(ctx, "auth.logout"), http.MethodPost, c.cfg.LogoutPath, nil, body)
	if err != nil {
		return err
	}
	resp, err := c.send(req, tok)
	if err != nil {
		return err
	}
	return decodeJSON(resp, nil)
}

// decodeTokenPair accepts both a bare token pair and one nested under "tokens".
func decodeTokenPair(r io.Reader) (*domain.TokenPair, error) {
	var payload struct {
		domain.TokenPair
		Tokens *domain.TokenPair `json:"tokens"`
	}
	if err := json.NewDecoder(r).Decode(&payload); err != nil {
		return nil, errors.Wrap(err, "failed to decode token response")
	}
	pair := payload.TokenPair
	if payload.Tokens != nil {
		pair = *payload.Tokens
	}
	if pair.AccessToken == "" {
		return nil, errors.Wrap(errors.ErrBackendUnavailable, "token response has no access token")
	}
	return &pair, nil
}
