package rbac

import (
	"time"

	"github.com/google/uuid"
)

// Role is a named bundle of permissions owned by a tenant.
type Role struct {
	ID          uuid.UUID
	TenantID    uuid.UUID
	Code        string
	Name        string
	Base        SystemRole
	Permissions PermissionSet
	Active      bool
	System      bool
	SortOrder   int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Level reports the hierarchy level of the role. Custom roles take the level of their base.
func (r Role) Level() int {
	if sr, ok := ParseSystemRole(r.Code); ok {
		return sr.Level()
	}
	return r.Base.Level()
}

// SystemRole enumerates the built-in role templates. NoBase is the explicit "no template" value.
type SystemRole uint8

const (
	NoBase SystemRole = iota
	RoleConsulta
	RoleAlmacenero
	RoleCajero
	RoleVendedor
	RoleContador
	RoleGerente
	RoleAdmin
	RoleSuperadmin
)

var systemRoleCodes = map[SystemRole]string{
	RoleConsulta:   "consulta",
	RoleAlmacenero: "almacenero",
	RoleCajero:     "cajero",
	RoleVendedor:   "vendedor",
	RoleContador:   "contador",
	RoleGerente:    "gerente",
	RoleAdmin:      "admin",
	RoleSuperadmin: "superadmin",
}

var systemRolesByCode = func() map[string]SystemRole {
	out := make(map[string]SystemRole, len(systemRoleCodes))
	for role, code := range systemRoleCodes {
		out[code] = role
	}
	return out
}()

var systemRoleNames = map[SystemRole]string{
	RoleConsulta:   "Consulta",
	RoleAlmacenero: "Almacenero",
	RoleCajero:     "Cajero",
	RoleVendedor:   "Vendedor",
	RoleContador:   "Contador",
	RoleGerente:    "Gerente",
	RoleAdmin:      "Administrador",
	RoleSuperadmin: "Superadministrador",
}

// DisplayName returns the human name used when seeding the role.
func (s SystemRole) DisplayName() string {
	return systemRoleNames[s]
}

// Code returns the wire code of the system role, empty for NoBase.
func (s SystemRole) Code() string {
	return systemRoleCodes[s]
}

func (s SystemRole) String() string {
	if s == NoBase {
		return "none"
	}
	return s.Code()
}

// Level places the role in the assignment hierarchy:
// consulta < operational roles < gerente < admin < superadmin.
func (s SystemRole) Level() int {
	switch s {
	case RoleSuperadmin:
		return 5
	case RoleAdmin:
		return 4
	case RoleGerente:
		return 3
	case RoleAlmacenero, RoleCajero, RoleVendedor, RoleContador:
		return 2
	case RoleConsulta:
		return 1
	default:
		return 0
	}
}

// ParseSystemRole maps a wire code to a SystemRole.
func ParseSystemRole(code string) (SystemRole, bool) {
	role, ok := systemRolesByCode[code]
	return role, ok
}

// SystemRoles lists every built-in role in ascending hierarchy order.
func SystemRoles() []SystemRole {
	return []SystemRole{
		RoleConsulta,
		RoleAlmacenero,
		RoleCajero,
		RoleVendedor,
		RoleContador,
		RoleGerente,
		RoleAdmin,
		RoleSuperadmin,
	}
}
