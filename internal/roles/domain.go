package roles

import (
	"errors"

	"github.com/odyssey-erp/odyssey-tenancy/internal/rbac"
)

// Role management failures.
var (
	ErrNotFound     = errors.New("roles: role not found")
	ErrDuplicate    = errors.New("roles: role code already exists")
	ErrSystemRole   = errors.New("roles: system roles are immutable")
	ErrInactive     = errors.New("roles: role inactive")
	ErrInUse        = errors.New("roles: role still assigned")
	ErrInvalidBase  = errors.New("roles: unknown base role")
	ErrReservedCode = errors.New("roles: code reserved for a system role")
	ErrEscalation   = errors.New("roles: role ranks above the actor")
)

// CreateInput is the payload for a new tenant role.
type CreateInput struct {
	Code        string             `json:"code" validate:"required,min=2,max=64,lowercase,excludesall= "`
	Name        string             `json:"name" validate:"required,max=120"`
	Base        string             `json:"base" validate:"omitempty,max=64"`
	Permissions rbac.PermissionSet `json:"permissions"`
	SortOrder   int                `json:"sortOrder" validate:"gte=0"`
}

// UpdateInput changes a tenant role. The code is immutable.
type UpdateInput struct {
	Name        *string             `json:"name" validate:"omitempty,max=120"`
	Base        *string             `json:"base" validate:"omitempty,max=64"`
	Permissions *rbac.PermissionSet `json:"permissions"`
	Active      *bool               `json:"active"`
	SortOrder   *int                `json:"sortOrder" validate:"omitempty,gte=0"`
}

// parseBase resolves a stored or submitted base code. Empty means no base; codes
// outside the system set are rejected for input and mapped to NoBase when loading.
func parseBase(code string) (rbac.SystemRole, error) {
	if code == "" {
		return rbac.NoBase, nil
	}
	sr, ok := rbac.ParseSystemRole(code)
	if !ok {
		return rbac.NoBase, ErrInvalidBase
	}
	return sr, nil
}
