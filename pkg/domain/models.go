package domain

import (
	"github.com/google/uuid"
)

// View is the portal surface a session is currently acting in.
type View string

const (
	ViewAdmin  View = "admin"
	ViewVendor View = "vendor"
)

// AdminFlags carries the explicit admin capability flags issued by the backend.
type AdminFlags struct {
	IsAdmin      bool `json:"is_admin"`
	IsSuperAdmin bool `json:"is_super_admin"`
}

// VendorMembership links a user to the organization they operate as a vendor.
type VendorMembership struct {
	OrganizationID   uuid.UUID `json:"organization_id"`
	OrganizationName string    `json:"organization_name,omitempty"`
	Role             string    `json:"role"`
}

// User is the authenticated principal as described by the backend's /auth/me endpoint.
type User struct {
	ID        uuid.UUID         `json:"id"`
	Email     string            `json:"email"`
	FirstName string            `json:"first_name,omitempty"`
	LastName  string            `json:"last_name,omitempty"`
	Roles     []string          `json:"roles,omitempty"`
	Admin     *AdminFlags       `json:"admin,omitempty"`
	Vendor    *VendorMembership `json:"vendor,omitempty"`
}

// Organization is a merchant tenant on the platform.
type Organization struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// TokenPair is what the backend returns from login and refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type,omitempty"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`
}
