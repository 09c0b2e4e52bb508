package session

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"time"

	"portal/pkg/config"
	"portal/pkg/errors"

	"golang.org/x/crypto/nacl/secretbox"
)

const nonceSize = 24

// CookieCodec seals session IDs into an HTTP-only cookie so a client cannot
// forge or enumerate them.
type CookieCodec struct {
	key    [32]byte
	name   string
	secure bool
	domain string
}

// NewCookieCodec derives the sealing key from the configured secret.
func NewCookieCodec(cfg config.SessionConfig) *CookieCodec {
	return &CookieCodec{
		key:    sha256.Sum256([]byte(cfg.Secret)),
		name:   cfg.CookieName,
		secure: cfg.Secure,
		domain: cfg.Domain,
	}
}

// Name is the cookie name.
func (c *CookieCodec) Name() string {
	return c.name
}

// Seal encrypts and authenticates id.
func (c *CookieCodec) Seal(id string) (string, error) {
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", err
	}
	box := secretbox.Seal(nonce[:], []byte(id), &nonce, &c.key)
	return base64.RawURLEncoding.EncodeToString(box), nil
}

// Open reverses Seal. Anything tampered with or sealed under another key
// yields ErrSessionNotFound.
func (c *CookieCodec) Open(value string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil || len(raw) <= nonceSize {
		return "", errors.ErrSessionNotFound
	}
	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])
	id, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, &c.key)
	if !ok {
		return "", errors.ErrSessionNotFound
	}
	return string(id), nil
}

// Write sets the session cookie for sess.
func (c *CookieCodec) Write(w http.ResponseWriter, sess *Session) error {
	value, err := c.Seal(sess.ID)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     c.name,
		Value:    value,
		Path:     "/",
		Domain:   c.domain,
		Expires:  sess.ExpiresAt,
		MaxAge:   int(time.Until(sess.ExpiresAt).Seconds()),
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Read returns the session ID carried by r.
func (c *CookieCodec) Read(r *http.Request) (string, error) {
	cookie, err := r.Cookie(c.name)
	if err != nil || cookie.Value == "" {
		return "", errors.ErrSessionNotFound
	}
	return c.Open(cookie.Value)
}

// Clear expires the session cookie.
func (c *CookieCodec) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.name,
		Value:    "",
		Path:     "/",
		Domain:   c.domain,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
