package domain

// ──────────────────────────────────────────────────────────────────────────────
// UserRole
// ──────────────────────────────────────────────────────────────────────────────

// UserRole is carried in the access token's "role" claim.
type UserRole string

const (
	RoleMember     UserRole = "member"     // company user on the marketplace
	RoleAdmin      UserRole = "admin"      // full back-office access
	RoleCompliance UserRole = "compliance" // AML review
	RoleFinance    UserRole = "finance"    // payments and escrow reconciliation
	RoleOps        UserRole = "ops"        // operations support
	RoleReadOnly   UserRole = "readonly"   // read-only back-office access
)

// CanAccessBackoffice returns true for every staff role.
func (r UserRole) CanAccessBackoffice() bool {
	switch r {
	case RoleAdmin, RoleCompliance, RoleFinance, RoleOps, RoleReadOnly:
		return true
	}
	return false
}

// IsAdmin returns true only for the full admin role.
func (r UserRole) IsAdmin() bool {
	return r == RoleAdmin
}
