package session

import (
	"context"
	"time"

	"portal/internal/domain"
	"portal/pkg/cache"
	"portal/pkg/errors"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// KV is the key-value backend sessions are persisted in. *cache.RedisCache
// satisfies it; MemoryKV is used in tests and single-node development.
type KV interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, key string) error
}

// Store creates, loads and persists sessions.
type Store struct {
	kv  KV
	ttl time.Duration
	now func() time.Time
}

// NewStore returns a Store whose sessions live for ttl after creation.
func NewStore(kv KV, ttl time.Duration) *Store {
	return &Store{kv: kv, ttl: ttl, now: time.Now}
}

func sessionKey(id string) string {
	return "session:" + id
}

// Create starts a session for user holding tok, in the user's default view.
func (s *Store) Create(ctx context.Context, user domain.User, tok *oauth2.Token) (*Session, error) {
	now := s.now().UTC()
	sess := &Session{
		ID:        uuid.NewString(),
		User:      user,
		Token:     tok,
		View:      DefaultView(&user),
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.Save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Get loads a session. Unknown IDs return ErrSessionNotFound, sessions past
// their absolute expiry are deleted and return ErrSessionExpired.
func (s *Store) Get(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, errors.ErrSessionNotFound
	}
	var sess Session
	if err := s.kv.Get(ctx, sessionKey(id), &sess); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, errors.ErrSessionNotFound
		}
		return nil, errors.Wrap(err, "failed to load session")
	}
	if !s.now().Before(sess.ExpiresAt) {
		_ = s.kv.Delete(ctx, sessionKey(id))
		return nil, errors.ErrSessionExpired
	}
	return &sess, nil
}

// Save persists sess until its absolute expiry.
func (s *Store) Save(ctx context.Context, sess *Session) error {
	ttl := sess.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return errors.ErrSessionExpired
	}
	if err := s.kv.Set(ctx, sessionKey(sess.ID), sess, ttl); err != nil {
		return errors.Wrap(err, "failed to save session")
	}
	return nil
}

// SaveToken replaces the session's backend token after a refresh.
func (s *Store) SaveToken(ctx context.Context, sess *Session, tok *oauth2.Token) error {
	sess.Token = tok
	return s.Save(ctx, sess)
}

// Delete ends a session. Deleting an unknown session is not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	if err := s.kv.Delete(ctx, sessionKey(id)); err != nil {
		return errors.Wrap(err, "failed to delete session")
	}
	return nil
}
