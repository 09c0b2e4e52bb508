package session

import (
	"portal/internal/domain"
	"portal/pkg/errors"

	"github.com/google/uuid"
)

// Only the explicit boolean flags issued by the backend grant admin capability.
// An admin object with neither flag set (for example `"admin": {}` on a vendor
// account) grants nothing, and the free-form role list is never consulted.

// IsAdmin reports whether u may use the admin portal.
func IsAdmin(u *domain.User) bool {
	return u != nil && u.Admin != nil && (u.Admin.IsAdmin || u.Admin.IsSuperAdmin)
}

// IsPrivileged reports whether u is a privileged overseer (super admin).
func IsPrivileged(u *domain.User) bool {
	return u != nil && u.Admin != nil && u.Admin.IsSuperAdmin
}

// HasVendor reports whether u operates a vendor organization.
func HasVendor(u *domain.User) bool {
	return u != nil && u.Vendor != nil && u.Vendor.OrganizationID != uuid.Nil
}

// DefaultView picks the view a fresh session starts in.
func DefaultView(u *domain.User) domain.View {
	if IsAdmin(u) {
		return domain.ViewAdmin
	}
	return domain.ViewVendor
}

// CanUseView reports whether u may act in view v.
func CanUseView(u *domain.User, v domain.View) bool {
	switch v {
	case domain.ViewAdmin:
		return IsAdmin(u)
	case domain.ViewVendor:
		return HasVendor(u)
	default:
		return false
	}
}

// SwitchView moves sess to view v, or returns ErrInvalidContext.
func SwitchView(sess *Session, v domain.View) error {
	if !CanUseView(&sess.User, v) {
		return errors.ErrInvalidContext
	}
	sess.View = v
	return nil
}
