package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"portal/internal/backend"
	"portal/internal/domain"
	"portal/internal/session"
	"portal/pkg/config"
	"portal/pkg/validator"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

// ==============================================================================
// FIXTURES
// ==============================================================================

func newCodec() *session.CookieCodec {
	return session.NewCookieCodec(config.SessionConfig{CookieName: "portal_session", Secret: "handler-test"})
}

func newValidator(t *testing.T) *validator.Validator {
	t.Helper()
	val := validator.New()
	require.NoError(t, RegisterValidations(val))
	return val
}

func adminUser(super bool) domain.User {
	return domain.User{
		ID:    uuid.New(),
		Email: "reviewer@example.com",
		Admin: &domain.AdminFlags{IsAdmin: true, IsSuperAdmin: super},
	}
}

func vendorUser() domain.User {
	return domain.User{
		ID:     uuid.New(),
		Email:  "vendor@example.com",
		Vendor: &domain.VendorMembership{OrganizationID: uuid.New(), Role: "owner"},
	}
}

func newTestSession(user domain.User) *session.Session {
	return &session.Session{
		ID:        uuid.NewString(),
		User:      user,
		Token:     &oauth2.Token{AccessToken: "access", RefreshToken: "refresh", Expiry: time.Now().Add(time.Hour)},
		View:      session.DefaultView(&user),
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(time.Hour),
	}
}

func withSession(r *http.Request, sess *session.Session) *http.Request {
	return r.WithContext(session.WithContext(r.Context(), sess))
}

func jsonBody(t *testing.T, v interface{}) io.Reader {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(b)
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

// ==============================================================================
// FAKES
// ==============================================================================

type MockAuthAPI struct {
	mock.Mock
}

func (m *MockAuthAPI) Login(ctx context.Context, email, password string) (*domain.TokenPair, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TokenPair), args.Error(1)
}

func (m *MockAuthAPI) Me(ctx context.Context, tok *oauth2.Token) (*domain.User, error) {
	args := m.Called(ctx, tok)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockAuthAPI) Logout(ctx context.Context, tok *oauth2.Token) error {
	return m.Called(ctx, tok).Error(0)
}

// fakeBackend holds KYC records in memory and records the updates it receives.
type fakeBackend struct {
	mu      sync.Mutex
	records map[uuid.UUID]*domain.KYCRecord
	updates []domain.KYCStatusUpdate
	err     error
}

func newFakeBackend(recs ...*domain.KYCRecord) *fakeBackend {
	fb := &fakeBackend{records: make(map[uuid.UUID]*domain.KYCRecord)}
	for _, r := range recs {
		fb.records[r.OrganizationID] = r
	}
	return fb
}

func (f *fakeBackend) GetKYC(_ context.Context, _ *session.Session, orgID uuid.UUID) (*domain.KYCRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	rec, ok := f.records[orgID]
	if !ok {
		return nil, &backend.APIError{Status: http.StatusNotFound, Message: "kyc record not found"}
	}
	cp := *rec
	return &cp, nil
}

func (f *fakeBackend) UpdateKYCStatus(_ context.Context, _ *session.Session, orgID uuid.UUID, in domain.KYCStatusUpdate) (*domain.KYCRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, in)
	rec := f.records[orgID]
	rec.Status = in.Status
	rec.RejectionReason = in.RejectionReason
	cp := *rec
	return &cp, nil
}

func (f *fakeBackend) ListPendingKYC(_ context.Context, _ *session.Session, page backend.Page) (*domain.KYCPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := &domain.KYCPage{Limit: page.Limit, Offset: page.Offset}
	for _, r := range f.records {
		out.Items = append(out.Items, r)
	}
	out.Total = len(out.Items)
	return out, nil
}

func (f *fakeBackend) GetKYCStatistics(context.Context, *session.Session) (*domain.KYCStatistics, error) {
	return &domain.KYCStatistics{
		ByStatus: map[domain.KYCStatus]int{
			domain.KYCStatusApproved:  3,
			domain.KYCStatusRejected:  1,
			domain.KYCStatusSubmitted: 2,
		},
	}, nil
}

type fakeAttempts struct {
	counts map[domain.TransitionOutcome]int
}

func (f *fakeAttempts) Create(context.Context, *domain.TransitionAttempt) error { return nil }

func (f *fakeAttempts) ListByOrganization(context.Context, uuid.UUID, int, int) ([]*domain.TransitionAttempt, error) {
	return []*domain.TransitionAttempt{}, nil
}

func (f *fakeAttempts) CountByOutcome(context.Context) (map[domain.TransitionOutcome]int, error) {
	return f.counts, nil
}

type forwardCall struct {
	method string
	path   string
	query  url.Values
	body   []byte
}

type fakeForwarder struct {
	calls  []forwardCall
	status int
	body   string
	err    error
}

func (f *fakeForwarder) Forward(_ context.Context, _ *session.Session, method, path string, query url.Values, body []byte) (*http.Response, error) {
	f.calls = append(f.calls, forwardCall{method: method, path: path, query: query, body: body})
	if f.err != nil {
		return nil, f.err
	}
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	return &http.Response{
		StatusCode: f.status,
		Header:     h,
		Body:       io.NopCloser(strings.NewReader(f.body)),
	}, nil
}

