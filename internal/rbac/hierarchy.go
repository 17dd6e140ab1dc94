package rbac

// IsBypassRole reports whether checks for this role code are always granted.
// Applied by the request pipeline; the engine functions never consult it.
func IsBypassRole(code string) bool {
	return code == RoleSuperadmin.Code() || code == RoleAdmin.Code()
}

// BypassesTenantStore reports whether a principal with this role may operate
// against the platform tenant, which has no business database.
func BypassesTenantStore(code string) bool {
	return code == RoleSuperadmin.Code()
}

// LevelOf returns the hierarchy level for a role code; custom codes rank 0.
func LevelOf(code string) int {
	if sr, ok := ParseSystemRole(code); ok {
		return sr.Level()
	}
	return 0
}

// HasRoleLevel reports whether role ranks at or above required.
func HasRoleLevel(role Role, required SystemRole) bool {
	return role.Level() >= required.Level()
}

// CanAssignRole reports whether actor may hand target to a principal.
// The superadmin role is never assignable through this path.
func CanAssignRole(actor Role, target Role) bool {
	if target.Code == RoleSuperadmin.Code() {
		return false
	}
	return target.Level() <= actor.Level()
}

// CanManagePrincipal reports whether actor may edit or deactivate a principal holding
// targetRole. Only a superadmin manages a superadmin.
func CanManagePrincipal(actor Role, targetRole Role) bool {
	if targetRole.Code == RoleSuperadmin.Code() {
		return actor.Code == RoleSuperadmin.Code()
	}
	return targetRole.Level() <= actor.Level()
}

// SystemRoleDescriptor returns the role descriptor backed purely by a template.
func SystemRoleDescriptor(role SystemRole) Role {
	return Role{
		Code:   role.Code(),
		Name:   role.DisplayName(),
		Base:   role,
		Active: true,
		System: true,
		Permissions: PermissionSet{
			Resources: ResourceMap{},
			Special:   Specials{Flags: map[Capability]bool{}},
		},
		SortOrder: int(role),
	}
}
