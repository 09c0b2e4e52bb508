// Package middleware provides shared HTTP middleware utilities.
package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"portal/internal/session"
	"portal/pkg/errors"
	"portal/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// IdempotencyMiddleware replays the response of a mutating request when the
// client retries it with the same Idempotency-Key, so a double-clicked status
// change reaches the backend only once.
type IdempotencyMiddleware struct {
	cache  *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

// NewIdempotencyMiddleware constructs an IdempotencyMiddleware with a TTL.
func NewIdempotencyMiddleware(cache *redis.Client, ttl time.Duration, log logger.Logger) *IdempotencyMiddleware {
	return &IdempotencyMiddleware{
		cache:  cache,
		ttl:    ttl,
		logger: log,
	}
}

// Guard deduplicates POST/PUT/PATCH/DELETE requests carrying an Idempotency-Key.
// Requests without the header pass straight through. Keys are scoped to the
// session user so two reviewers cannot collide. Reusing a key with a different
// body is refused with 422 rather than replaying the earlier response.
func (m *IdempotencyMiddleware) Guard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost && r.Method != http.MethodPut &&
			r.Method != http.MethodPatch && r.Method != http.MethodDelete {
			next.ServeHTTP(w, r)
			return
		}

		key := r.Header.Get("Idempotency-Key")
		if key == "" {
			next.ServeHTTP(w, r)
			return
		}
		if len(key) > 128 {
			jsonError(w, http.StatusBadRequest, "Idempotency-Key too long")
			return
		}

		scope := "anonymous"
		if sess, ok := session.FromContext(r.Context()); ok {
			scope = sess.User.ID.String()
		}
		dataKey := fmt.Sprintf("idempotency:data:%s:%s:%s:%s", scope, r.Method, r.URL.Path, key)
		lockKey := fmt.Sprintf("idempotency:lock:%s:%s:%s:%s", scope, r.Method, r.URL.Path, key)

		fingerprint, err := bodyFingerprint(r)
		if err != nil {
			jsonError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		if m.replayCached(w, r, dataKey, fingerprint) {
			return
		}

		ok, err := m.cache.SetNX(r.Context(), lockKey, RequestIDFromContext(r.Context()), m.ttl).Result()
		if err != nil {
			m.logger.Warn("Idempotency store unavailable", map[string]interface{}{"error": err.Error()})
			next.ServeHTTP(w, r)
			return
		}

		if !ok {
			// Another request with this key is in flight; wait briefly for its result.
			ticker := time.NewTicker(100 * time.Millisecond)
			defer ticker.Stop()
			deadline := time.After(5 * time.Second)
			for {
				select {
				case <-ticker.C:
					if m.replayCached(w, r, dataKey, fingerprint) {
						return
					}
				case <-deadline:
					jsonError(w, http.StatusConflict, errors.ErrDuplicateRequest.Error())
					return
				case <-r.Context().Done():
					return
				}
			}
		}
		defer m.cache.Del(r.Context(), lockKey)

		cw := newCaptureWriter(w, 1<<20)
		next.ServeHTTP(cw, r)

		if err := m.cacheResponse(r, dataKey, fingerprint, cw); err != nil {
			m.logger.Warn("Failed to cache idempotent response", map[string]interface{}{"error": err.Error()})
		}
	})
}

type capturedResponse struct {
	Fingerprint string            `json:"fingerprint"`
	Status      int               `json:"status"`
	Body        []byte            `json:"body"`
	Headers     map[string]string `json:"headers"`
}

// bodyFingerprint hashes the request body and leaves it readable for the next handler.
func bodyFingerprint(r *http.Request) (string, error) {
	if r.Body == nil {
		return "", nil
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return "", err
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:]), nil
}

// replayCached writes the stored response for dataKey, or a 422 when the key
// was first used with a different body. It reports whether it wrote anything.
func (m *IdempotencyMiddleware) replayCached(w http.ResponseWriter, r *http.Request, dataKey, fingerprint string) bool {
	payload, err := m.cache.Get(r.Context(), dataKey).Bytes()
	if err != nil {
		return false
	}

	var cr capturedResponse
	if err := json.Unmarshal(payload, &cr); err != nil {
		return false
	}
	if cr.Fingerprint != fingerprint {
		jsonError(w, http.StatusUnprocessableEntity, "Idempotency-Key was already used with a different request body")
		return true
	}

	for k, v := range cr.Headers {
		w.Header().Set(k, v)
	}
	w.Header().Set("Idempotent-Replayed", "true")
	w.WriteHeader(cr.Status)
	_, _ = w.Write(cr.Body)
	return true
}

// cacheResponse stores successful responses only; failures may be retried.
func (m *IdempotencyMiddleware) cacheResponse(r *http.Request, dataKey, fingerprint string, cw *captureWriter) error {
	if cw.status < 200 || cw.status > 299 || cw.truncated {
		return nil
	}

	payload, err := json.Marshal(capturedResponse{
		Fingerprint: fingerprint,
		Status:      cw.status,
		Body:        cw.buf,
		Headers:     cw.headers,
	})
	if err != nil {
		return err
	}

	return m.cache.Set(r.Context(), dataKey, payload, m.ttl).Err()
}

type captureWriter struct {
	http.ResponseWriter
	buf       []byte
	limit     int
	status    int
	truncated bool
	headers   map[string]string
}

func newCaptureWriter(w http.ResponseWriter, limit int) *captureWriter {
	return &captureWriter{
		ResponseWriter: w,
		buf:            make([]byte, 0, 1024),
		limit:          limit,
		headers:        make(map[string]string),
	}
}

func (w *captureWriter) WriteHeader(statusCode int) {
	w.status = statusCode
	for k, v := range w.ResponseWriter.Header() {
		if len(v) > 0 {
			w.headers[k] = v[0]
		}
	}
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *captureWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.WriteHeader(http.StatusOK)
	}
	if space := w.limit - len(w.buf); space >= len(p) {
		w.buf = append(w.buf, p...)
	} else {
		w.truncated = true
	}
	return w.ResponseWriter.Write(p)
}
