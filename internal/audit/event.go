// Package audit records security events without blocking the request that raised them.
package audit

import (
	"context"
	"time"
)

// Security event actions.
const (
	ActionTenantMismatch   = "auth.tenant_mismatch"
	ActionInactiveLogin    = "auth.inactive_principal"
	ActionRoleAssigned     = "rbac.role_assigned"
	ActionTenantInvalidate = "tenancy.handle_invalidated"
)

// Event is one security audit record.
type Event struct {
	SubjectID    string         `json:"subjectId"`
	Action       string         `json:"action"`
	ResourceType string         `json:"resourceType"`
	Details      map[string]any `json:"details,omitempty"`
	At           time.Time      `json:"at"`
}

// Emitter accepts security events. Implementations never block the caller.
type Emitter interface {
	LogSecurityEvent(subjectID, action, resourceType string, details map[string]any)
}

// Sink delivers an event to durable storage.
type Sink interface {
	Deliver(ctx context.Context, ev Event) error
}

// Discard drops every event.
type Discard struct{}

// LogSecurityEvent implements Emitter.
func (Discard) LogSecurityEvent(string, string, string, map[string]any) {}
