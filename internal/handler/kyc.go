package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"portal/internal/backend"
	"portal/internal/domain"
	"portal/internal/kyc"
	"portal/internal/middleware"
	"portal/internal/session"
	"portal/pkg/errors"
	"portal/pkg/logger"
	"portal/pkg/validator"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// KYCListing is the read-only listing surface of the backend.
type KYCListing interface {
	ListPendingKYC(ctx context.Context, sess *session.Session, page backend.Page) (*domain.KYCPage, error)
	GetKYCStatistics(ctx context.Context, sess *session.Session) (*domain.KYCStatistics, error)
}

// KYCHandler serves the admin KYC review screens.
type KYCHandler struct {
	failer
	service   *kyc.Service
	listing   KYCListing
	validator *validator.Validator
}

// NewKYCHandler creates a new KYCHandler.
func NewKYCHandler(service *kyc.Service, listing KYCListing, sessions SessionTerminator, codec *session.CookieCodec, val *validator.Validator, log logger.Logger) *KYCHandler {
	return &KYCHandler{
		failer:    failer{sessions: sessions, codec: codec, logger: log},
		service:   service,
		listing:   listing,
		validator: val,
	}
}

// RegisterValidations adds the kyc_status rule used by UpdateRequest.
func RegisterValidations(val *validator.Validator) error {
	return val.RegisterStringRule("kyc_status", func(s string) bool {
		_, err := kyc.ParseStatus(s)
		return err == nil
	})
}

// RecordResponse pairs a record with what the caller may do to it next.
type RecordResponse struct {
	Record  *domain.KYCRecord `json:"record"`
	Options *kyc.Options      `json:"options"`
}

// StatusesResponse is the status registry for the dashboard.
type StatusesResponse struct {
	Statuses     []kyc.StatusInfo `json:"statuses"`
	Regular      kyc.Table        `json:"regular"`
	Privileged   kyc.Table        `json:"privileged"`
	PolicyDigest string           `json:"policy_digest,omitempty"`
}

func (h *KYCHandler) caller(r *http.Request) (kyc.Caller, bool) {
	sess, ok := session.FromContext(r.Context())
	if !ok {
		return kyc.Caller{}, false
	}
	return kyc.CallerFromSession(sess, middleware.RequestIDFromContext(r.Context())), true
}

func orgIDFromPath(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["orgID"])
	if err != nil || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

// ListPending returns the review queue.
func (h *KYCHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(r)
	if !ok {
		h.fail(w, r, errors.ErrUnauthenticated, "kyc.pending")
		return
	}

	page, err := h.listing.ListPendingKYC(r.Context(), caller.Session, parsePage(r))
	if err != nil {
		h.fail(w, r, err, "kyc.pending")
		return
	}
	respondJSON(w, http.StatusOK, page)
}

// Statistics returns the per-status counts plus approval and rejection rates.
// With an audit store it also reports how recorded attempts were decided.
func (h *KYCHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(r)
	if !ok {
		h.fail(w, r, errors.ErrUnauthenticated, "kyc.statistics")
		return
	}

	stats, err := h.listing.GetKYCStatistics(r.Context(), caller.Session)
	if err != nil {
		h.fail(w, r, err, "kyc.statistics")
		return
	}
	stats = kyc.WithRates(stats, time.Now())

	outcomes, err := h.service.OutcomeCounts(r.Context())
	switch {
	case err == nil:
		stats.AttemptOutcomes = outcomes
	case !errors.Is(err, errors.ErrAuditUnavailable):
		h.logger.Warn("Failed to count KYC transition attempts", map[string]interface{}{"error": err.Error()})
	}
	respondJSON(w, http.StatusOK, stats)
}

// Get returns one record and the caller's options for it.
func (h *KYCHandler) Get(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(r)
	if !ok {
		h.fail(w, r, errors.ErrUnauthenticated, "kyc.get")
		return
	}
	orgID, ok := orgIDFromPath(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid organization ID")
		return
	}

	rec, err := h.service.Get(r.Context(), caller, orgID)
	if err != nil {
		h.fail(w, r, err, "kyc.get")
		return
	}
	respondJSON(w, http.StatusOK, RecordResponse{
		Record:  rec,
		Options: h.service.OptionsFor(rec, caller.Privileged),
	})
}

// UpdateStatus moves a record to a new status.
func (h *KYCHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(r)
	if !ok {
		h.fail(w, r, errors.ErrUnauthenticated, "kyc.update_status")
		return
	}
	orgID, ok := orgIDFromPath(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid organization ID")
		return
	}

	var req kyc.UpdateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if errs := h.validator.ValidateStructured(&req); len(errs) > 0 {
		respondValidationErrors(w, errs)
		return
	}
	status, err := kyc.ParseStatus(string(req.Status))
	if err != nil {
		respondValidationErrors(w, map[string]string{"status": "Unknown KYC status"})
		return
	}
	req.Status = status
	req.Reason = strings.TrimSpace(req.Reason)
	req.Notes = strings.TrimSpace(req.Notes)

	rec, err := h.service.UpdateStatus(r.Context(), caller, orgID, req)
	if err != nil {
		h.fail(w, r, err, "kyc.update_status")
		return
	}
	respondJSON(w, http.StatusOK, RecordResponse{
		Record:  rec,
		Options: h.service.OptionsFor(rec, caller.Privileged),
	})
}

// Attempts returns the audit trail for one organization, newest first.
func (h *KYCHandler) Attempts(w http.ResponseWriter, r *http.Request) {
	orgID, ok := orgIDFromPath(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid organization ID")
		return
	}

	page := parsePage(r)
	attempts, err := h.service.Attempts(r.Context(), orgID, page.Limit, page.Offset)
	if err != nil {
		h.fail(w, r, err, "kyc.attempts")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"attempts": attempts,
		"limit":    page.Limit,
		"offset":   page.Offset,
	})
}

// Statuses describes every status and the transition tables in force.
func (h *KYCHandler) Statuses(w http.ResponseWriter, r *http.Request) {
	policy := h.service.Reviewer().Policy()
	regular, privileged := policy.Tables()
	respondJSON(w, http.StatusOK, StatusesResponse{
		Statuses:     kyc.Catalog(),
		Regular:      regular,
		Privileged:   privileged,
		PolicyDigest: policy.Digest(),
	})
}
