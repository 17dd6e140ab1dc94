package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/odyssey-erp/odyssey-tenancy/internal/audit"
	"github.com/odyssey-erp/odyssey-tenancy/internal/rbac"
)

// Role assignment failures.
var (
	ErrAssignForbidden = errors.New("users: role assignment not permitted")
	ErrManageForbidden = errors.New("users: principal outside the actor's reach")
)

// Store defines data access methods for principals.
type Store interface {
	PrincipalByID(ctx context.Context, id uuid.UUID) (*Principal, error)
	Profile(ctx context.Context, tenantID, id uuid.UUID) (*Profile, error)
	UpdateProfile(ctx context.Context, tenantID, id uuid.UUID, patch ProfilePatch, passwordHash string) (*Profile, error)
	SetRole(ctx context.Context, tenantID, id uuid.UUID, role string) error
	SoftDelete(ctx context.Context, tenantID, id uuid.UUID) error
}

// RoleResolver resolves role codes to descriptors within a tenant.
type RoleResolver interface {
	Resolve(ctx context.Context, tenantID uuid.UUID, code string) (rbac.Role, error)
}

// Service handles principal business logic.
type Service struct {
	store    Store
	roles    RoleResolver
	audit    audit.Emitter
	validate *validator.Validate
}

// NewService builds Service instance.
func NewService(store Store, roles RoleResolver, emitter audit.Emitter) *Service {
	if emitter == nil {
		emitter = audit.Discard{}
	}
	return &Service{store: store, roles: roles, audit: emitter, validate: validator.New()}
}

// PrincipalByID loads the minimal principal record.
func (s *Service) PrincipalByID(ctx context.Context, id uuid.UUID) (*Principal, error) {
	return s.store.PrincipalByID(ctx, id)
}

// Profile returns the full record of a principal in the tenant.
func (s *Service) Profile(ctx context.Context, tenantID, id uuid.UUID) (*Profile, error) {
	return s.store.Profile(ctx, tenantID, id)
}

// Update applies a validated patch.
func (s *Service) Update(ctx context.Context, tenantID, id uuid.UUID, patch ProfilePatch) (*Profile, error) {
	if patch.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*patch.Email))
		patch.Email = &email
	}
	if err := s.validate.Struct(patch); err != nil {
		return nil, err
	}
	var hash string
	if patch.Password != nil {
		b, err := bcrypt.GenerateFromPassword([]byte(*patch.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("users: hash password: %w", err)
		}
		hash = string(b)
		patch.Password = nil
	}
	return s.store.UpdateProfile(ctx, tenantID, id, patch, hash)
}

// Delete soft-deletes a principal.
func (s *Service) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	return s.store.SoftDelete(ctx, tenantID, id)
}

// AssignRole gives target the role code. The actor must rank at or above both the
// target's current role and the new one, and superadmin is never assignable here.
func (s *Service) AssignRole(ctx context.Context, actor rbac.Role, actorID, tenantID, targetID uuid.UUID, code string) error {
	target, err := s.store.Profile(ctx, tenantID, targetID)
	if err != nil {
		return err
	}
	current, err := s.roles.Resolve(ctx, tenantID, target.Role)
	if err != nil {
		current = rbac.Role{Code: target.Role}
	}
	if !rbac.CanManagePrincipal(actor, current) {
		return ErrManageForbidden
	}
	next, err := s.roles.Resolve(ctx, tenantID, code)
	if err != nil {
		return err
	}
	if !rbac.CanAssignRole(actor, next) {
		return ErrAssignForbidden
	}
	if err := s.store.SetRole(ctx, tenantID, targetID, next.Code); err != nil {
		return err
	}
	s.audit.LogSecurityEvent(actorID.String(), audit.ActionRoleAssigned, string(rbac.ResourceUsers), map[string]any{
		"tenantId": tenantID.String(),
		"targetId": targetID.String(),
		"from":     target.Role,
		"to":       next.Code,
	})
	return nil
}
