package user

type Role string

const (
	RoleOwner    Role = "owner"    // Company owner - full access
	RoleManager  Role = "manager"  // Runs and approves payroll
	RoleEmployee Role = "employee" // Regular employee
	RolePending  Role = "pending"  // Still in onboarding
)

// ParseRole returns the role for a claim value, or RolePending when unknown.
func ParseRole(raw string) Role {
	switch Role(raw) {
	case RoleOwner, RoleManager, RoleEmployee:
		return Role(raw)
	default:
		return RolePending
	}
}
