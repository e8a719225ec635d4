package domain

import "time"

// Role is the subscription tier of an identity. It is a closed set and
// determines both usage limits and capabilities.
type Role string

const (
	RoleFree  Role = "free"
	RolePro   Role = "pro"
	RoleAdmin Role = "admin"
)

// ValidRoles returns the set of valid identity roles.
func ValidRoles() []Role {
	return []Role{RoleFree, RolePro, RoleAdmin}
}

// IsValidRole checks whether the given role string is a valid role.
func IsValidRole(role Role) bool {
	for _, r := range ValidRoles() {
		if r == role {
			return true
		}
	}
	return false
}

// Identity represents an authenticated account. The record is owned by the
// user-management subsystem; this service reads it and only ever writes
// password_hash.
type Identity struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	FullName     string    `json:"full_name"`
	Role         Role      `json:"role"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Capability names a cross-cutting permission checked by the isolation gate
// and handlers. Authorization code checks capabilities, never role strings.
type Capability string

const (
	// CapabilityCrossTenant allows reading and modifying resources owned by
	// other tenants.
	CapabilityCrossTenant Capability = "cross_tenant_access"

	// CapabilityAuditRead allows reading the audit log.
	CapabilityAuditRead Capability = "audit_read"
)

var roleCapabilities = map[Role][]Capability{
	RoleAdmin: {CapabilityCrossTenant, CapabilityAuditRead},
}

// HasCapability reports whether the given role grants the capability.
func HasCapability(role Role, cap Capability) bool {
	for _, c := range roleCapabilities[role] {
		if c == cap {
			return true
		}
	}
	return false
}

// TenantContext binds a request to exactly one tenant. It is built fresh by
// the isolation gate for each request and never persisted or shared. A tenant
// is currently one identity; keeping the two ids separate leaves room for
// organizational tenancy without touching downstream authorization code.
type TenantContext struct {
	TenantID   string
	IdentityID string
	Role       Role
}

// AllowsAccessTo reports whether this tenant context may act on a resource
// owned by resourceOwnerID. Access is granted to the owning tenant and to
// identities holding the cross-tenant capability.
func (tc TenantContext) AllowsAccessTo(resourceOwnerID string) bool {
	if tc.TenantID == resourceOwnerID {
		return true
	}
	return HasCapability(tc.Role, CapabilityCrossTenant)
}
