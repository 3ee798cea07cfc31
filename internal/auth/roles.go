package auth

// Role represents a user role inside the federation.
type Role string

const (
	RoleMember           Role = "member"
	RoleAssociationAdmin Role = "association_admin"
	RoleNationalBoard    Role = "national_board"
)

// NormalizeRole validates and normalizes a role string.
func NormalizeRole(value string) (Role, bool) {
	switch Role(value) {
	case RoleMember, RoleAssociationAdmin, RoleNationalBoard:
		return Role(value), true
	default:
		return "", false
	}
}

// RoleAtLeast returns true when role satisfies required role.
func RoleAtLeast(role Role, required Role) bool {
	return roleRank(role) >= roleRank(required)
}

func roleRank(role Role) int {
	switch role {
	case RoleMember:
		return 1
	case RoleAssociationAdmin:
		return 2
	case RoleNationalBoard:
		return 3
	default:
		return 0
	}
}
