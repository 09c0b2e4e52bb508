// Package domain re-exports core domain types so internal code can import
// `portal/internal/domain` while using definitions from `portal/pkg/domain`.
package domain

import pkg "portal/pkg/domain"

// User is the authenticated portal principal.
type User = pkg.User

// AdminFlags carries explicit admin capability flags.
type AdminFlags = pkg.AdminFlags

// VendorMembership links a user to a vendor organization.
type VendorMembership = pkg.VendorMembership

// Organization is a merchant tenant.
type Organization = pkg.Organization

// TokenPair is a backend-issued access/refresh token pair.
type TokenPair = pkg.TokenPair

// View is the portal surface a session acts in.
type View = pkg.View

const (
	ViewAdmin  = pkg.ViewAdmin
	ViewVendor = pkg.ViewVendor
)
