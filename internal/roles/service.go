package roles

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/odyssey-erp/odyssey-tenancy/internal/rbac"
)

// Store defines data access methods for roles.
type Store interface {
	RoleByCode(ctx context.Context, tenantID uuid.UUID, code string) (rbac.Role, error)
	ListRoles(ctx context.Context, tenantID uuid.UUID) ([]rbac.Role, error)
	CreateRole(ctx context.Context, role rbac.Role) (rbac.Role, error)
	UpdateRole(ctx context.Context, role rbac.Role) (rbac.Role, error)
	DeleteRole(ctx context.Context, tenantID uuid.UUID, code string) error
	CountAssignees(ctx context.Context, tenantID uuid.UUID, code string) (int, error)
	SeedSystemRoles(ctx context.Context, tenantID uuid.UUID, roles []rbac.Role) error
}

type cacheKey struct {
	tenant uuid.UUID
	code   string
}

// Service handles role business logic. Resolved roles are cached; returned values are
// shared and must be treated as read-only.
type Service struct {
	store    Store
	cache    *expirable.LRU[cacheKey, rbac.Role]
	validate *validator.Validate
}

// NewService builds Service instance.
func NewService(store Store, cacheSize int, cacheTTL time.Duration) *Service {
	if cacheSize <= 0 {
		cacheSize = 1024
	}
	if cacheTTL <= 0 {
		cacheTTL = time.Minute
	}
	return &Service{
		store:    store,
		cache:    expirable.NewLRU[cacheKey, rbac.Role](cacheSize, nil, cacheTTL),
		validate: validator.New(),
	}
}

// Resolve returns the role descriptor a principal's role code refers to. A system code
// with no stored row resolves to its built-in descriptor.
func (s *Service) Resolve(ctx context.Context, tenantID uuid.UUID, code string) (rbac.Role, error) {
	key := cacheKey{tenant: tenantID, code: code}
	if role, ok := s.cache.Get(key); ok {
		return active(role)
	}
	role, err := s.store.RoleByCode(ctx, tenantID, code)
	if errors.Is(err, ErrNotFound) {
		sr, ok := rbac.ParseSystemRole(code)
		if !ok {
			return rbac.Role{}, ErrNotFound
		}
		role = rbac.SystemRoleDescriptor(sr)
		role.TenantID = tenantID
		err = nil
	}
	if err != nil {
		return rbac.Role{}, err
	}
	s.cache.Add(key, role)
	return active(role)
}

func active(role rbac.Role) (rbac.Role, error) {
	if !role.Active {
		return rbac.Role{}, ErrInactive
	}
	return role, nil
}

// List returns the tenant's roles, filling in tenant system roles that were never seeded.
func (s *Service) List(ctx context.Context, tenantID uuid.UUID) ([]rbac.Role, error) {
	stored, err := s.store.ListRoles(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(stored))
	for _, role := range stored {
		seen[role.Code] = true
	}
	out := stored
	for _, sr := range rbac.SystemRoles() {
		if seen[sr.Code()] || sr == rbac.RoleSuperadmin {
			continue
		}
		role := rbac.SystemRoleDescriptor(sr)
		role.TenantID = tenantID
		out = append(out, role)
	}
	return out, nil
}

// Get returns one role regardless of its active flag.
func (s *Service) Get(ctx context.Context, tenantID uuid.UUID, code string) (rbac.Role, error) {
	role, err := s.store.RoleByCode(ctx, tenantID, code)
	if errors.Is(err, ErrNotFound) {
		if sr, ok := rbac.ParseSystemRole(code); ok {
			role = rbac.SystemRoleDescriptor(sr)
			role.TenantID = tenantID
			return role, nil
		}
	}
	return role, err
}

// Effective returns the resolved permission set of a role.
func (s *Service) Effective(ctx context.Context, tenantID uuid.UUID, code string) (rbac.PermissionSet, error) {
	role, err := s.Get(ctx, tenantID, code)
	if err != nil {
		return rbac.PermissionSet{}, err
	}
	return rbac.EffectivePermissions(role), nil
}

// Create adds a custom role. The actor may not create a role ranking above itself.
func (s *Service) Create(ctx context.Context, actor rbac.Role, tenantID uuid.UUID, in CreateInput) (rbac.Role, error) {
	in.Code = strings.TrimSpace(in.Code)
	in.Name = strings.TrimSpace(in.Name)
	if err := s.validate.Struct(in); err != nil {
		return rbac.Role{}, err
	}
	if _, reserved := rbac.ParseSystemRole(in.Code); reserved {
		return rbac.Role{}, ErrReservedCode
	}
	base, err := parseBase(in.Base)
	if err != nil {
		return rbac.Role{}, err
	}
	role := rbac.Role{
		TenantID:    tenantID,
		Code:        in.Code,
		Name:        in.Name,
		Base:        base,
		Permissions: in.Permissions,
		Active:      true,
		SortOrder:   in.SortOrder,
	}
	if !rbac.CanAssignRole(actor, role) {
		return rbac.Role{}, ErrEscalation
	}
	return s.store.CreateRole(ctx, role)
}

// Update changes a custom role. System roles and role codes are immutable.
func (s *Service) Update(ctx context.Context, actor rbac.Role, tenantID uuid.UUID, code string, in UpdateInput) (rbac.Role, error) {
	if err := s.validate.Struct(in); err != nil {
		return rbac.Role{}, err
	}
	current, err := s.Get(ctx, tenantID, code)
	if err != nil {
		return rbac.Role{}, err
	}
	if current.System {
		return rbac.Role{}, ErrSystemRole
	}
	if !rbac.CanAssignRole(actor, current) {
		return rbac.Role{}, ErrEscalation
	}
	next := current
	if in.Name != nil {
		next.Name = strings.TrimSpace(*in.Name)
	}
	if in.Base != nil {
		if next.Base, err = parseBase(*in.Base); err != nil {
			return rbac.Role{}, err
		}
	}
	if in.Permissions != nil {
		next.Permissions = *in.Permissions
	}
	if in.Active != nil {
		next.Active = *in.Active
	}
	if in.SortOrder != nil {
		next.SortOrder = *in.SortOrder
	}
	if !rbac.CanAssignRole(actor, next) {
		return rbac.Role{}, ErrEscalation
	}
	updated, err := s.store.UpdateRole(ctx, next)
	if err != nil {
		return rbac.Role{}, err
	}
	s.cache.Remove(cacheKey{tenant: tenantID, code: code})
	return updated, nil
}

// Delete removes a custom role that nobody holds.
func (s *Service) Delete(ctx context.Context, actor rbac.Role, tenantID uuid.UUID, code string) error {
	current, err := s.Get(ctx, tenantID, code)
	if err != nil {
		return err
	}
	if current.System {
		return ErrSystemRole
	}
	if !rbac.CanAssignRole(actor, current) {
		return ErrEscalation
	}
	n, err := s.store.CountAssignees(ctx, tenantID, code)
	if err != nil {
		return err
	}
	if n > 0 {
		return fmt.Errorf("%w: %d principals", ErrInUse, n)
	}
	if err := s.store.DeleteRole(ctx, tenantID, code); err != nil {
		return err
	}
	s.cache.Remove(cacheKey{tenant: tenantID, code: code})
	return nil
}

// Seed stores the built-in tenant roles for a new tenant. Superadmin is a platform
// role and is never seeded.
func (s *Service) Seed(ctx context.Context, tenantID uuid.UUID) error {
	system := make([]rbac.Role, 0, len(rbac.SystemRoles()))
	for _, sr := range rbac.SystemRoles() {
		if sr == rbac.RoleSuperadmin {
			continue
		}
		system = append(system, rbac.SystemRoleDescriptor(sr))
	}
	return s.store.SeedSystemRoles(ctx, tenantID, system)
}

// Purge drops every cached role.
func (s *Service) Purge() {
	s.cache.Purge()
}
