package rbac

// Role names. Keep these stable; they are part of auth/RBAC contracts.
const (
	RoleAgent      = "agent"
	RoleManager    = "manager"
	RoleSuperAdmin = "super_admin"
)

func IsSuperAdmin(role string) bool { return role == RoleSuperAdmin }

// CanManage reports whether the role sees workspace-wide data
// (all lists, all items, all agents' sessions) rather than only its own.
func CanManage(role string) bool {
	return role == RoleManager || role == RoleSuperAdmin
}
