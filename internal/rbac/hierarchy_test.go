package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasRoleLevel(t *testing.T) {
	gerente := SystemRoleDescriptor(RoleGerente)

	assert.True(t, HasRoleLevel(gerente, RoleVendedor))
	assert.True(t, HasRoleLevel(gerente, RoleGerente))
	assert.False(t, HasRoleLevel(gerente, RoleAdmin))

	custom := Role{Code: "jefe_tienda", Base: RoleGerente}
	assert.True(t, HasRoleLevel(custom, RoleGerente))

	orphan := Role{Code: "temporal"}
	assert.False(t, HasRoleLevel(orphan, RoleConsulta))
}

func TestCanAssignRole(t *testing.T) {
	admin := SystemRoleDescriptor(RoleAdmin)
	gerente := SystemRoleDescriptor(RoleGerente)
	superadmin := SystemRoleDescriptor(RoleSuperadmin)

	assert.True(t, CanAssignRole(admin, gerente))
	assert.True(t, CanAssignRole(admin, admin))
	assert.False(t, CanAssignRole(gerente, admin))
	assert.False(t, CanAssignRole(admin, superadmin))
	assert.False(t, CanAssignRole(superadmin, superadmin))
}

func TestCanManagePrincipal(t *testing.T) {
	admin := SystemRoleDescriptor(RoleAdmin)
	superadmin := SystemRoleDescriptor(RoleSuperadmin)
	vendedor := SystemRoleDescriptor(RoleVendedor)

	assert.False(t, CanManagePrincipal(admin, superadmin))
	assert.True(t, CanManagePrincipal(superadmin, superadmin))
	assert.True(t, CanManagePrincipal(admin, vendedor))
	assert.False(t, CanManagePrincipal(vendedor, admin))
}

func TestBypassPredicates(t *testing.T) {
	assert.True(t, IsBypassRole("superadmin"))
	assert.True(t, IsBypassRole("admin"))
	assert.False(t, IsBypassRole("gerente"))

	assert.True(t, BypassesTenantStore("superadmin"))
	assert.False(t, BypassesTenantStore("admin"))
}

func TestParseSystemRole(t *testing.T) {
	role, ok := ParseSystemRole("contador")
	assert.True(t, ok)
	assert.Equal(t, RoleContador, role)

	_, ok = ParseSystemRole("")
	assert.False(t, ok)
	assert.Equal(t, "none", NoBase.String())
}
