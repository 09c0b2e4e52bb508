package backend

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"portal/internal/domain"
	"portal/internal/session"

	"github.com/google/uuid"
)

const kycBasePath = "/admin/kyc"

// Page selects a window of a listing.
type Page struct {
	Limit  int
	Offset int
}

func (p Page) query() url.Values {
	q := url.Values{}
	if p.Limit > 0 {
		q.Set("limit", strconv.Itoa(p.Limit))
	}
	if p.Offset > 0 {
		q.Set("offset", strconv.Itoa(p.Offset))
	}
	return q
}

// GetKYC loads the KYC record of one organization.
func (c *Client) GetKYC(ctx context.Context, sess *session.Session, orgID uuid.UUID) (*domain.KYCRecord, error) {
	var rec domain.KYCRecord
	if err := c.getJSON(withOperation(ctx, "kyc.get"), sess, kycBasePath+"/"+orgID.String(), nil, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// UpdateKYCStatus calls the backend's single status update endpoint. Approval,
// rejection and every other move go through it.
func (c *Client) UpdateKYCStatus(ctx context.Context, sess *session.Session, orgID uuid.UUID, in domain.KYCStatusUpdate) (*domain.KYCRecord, error) {
	var rec domain.KYCRecord
	path := kycBasePath + "/" + orgID.String() + "/status"
	if err := c.sendJSON(withOperation(ctx, "kyc.update_status"), sess, http.MethodPut, path, in, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListPendingKYC lists records waiting on a reviewer.
func (c *Client) ListPendingKYC(ctx context.Context, sess *session.Session, page Page) (*domain.KYCPage, error) {
	var out domain.KYCPage
	if err := c.getJSON(withOperation(ctx, "kyc.list_pending"), sess, kycBasePath+"/pending", page.query(), &out); err != nil {
		return nil, err
	}
	if out.Items == nil {
		out.Items = []*domain.KYCRecord{}
	}
	return &out, nil
}

// GetKYCStatistics returns the backend's per-status counts. Rates are derived
// by the caller.
func (c *Client) GetKYCStatistics(ctx context.Context, sess *session.Session) (*domain.KYCStatistics, error) {
	var stats domain.KYCStatistics
	if err := c.getJSON(withOperation(ctx, "kyc.statistics"), sess, kycBasePath+"/statistics", nil, &stats); err != nil {
		return nil, err
	}
	if stats.ByStatus == nil {
		stats.ByStatus = map[domain.KYCStatus]int{}
	}
	return &stats, nil
}
