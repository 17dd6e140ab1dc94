// Package gate implements the ordered request authorization pipeline.
package gate

import (
	"context"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-tenancy/internal/schema"
	"github.com/odyssey-erp/odyssey-tenancy/internal/tenancy"
	"github.com/odyssey-erp/odyssey-tenancy/internal/users"
)

// Request is the authorization state of one inbound request. Each pipeline stage
// derives a new value from the previous one; a stored Request is never modified.
type Request struct {
	SubjectID   uuid.UUID
	TenantID    uuid.UUID
	Role        string
	Email       string
	DisplayName string
	Principal   users.Principal

	// Tenant is nil for the platform tenant once TenantResolved is set.
	Tenant         *tenancy.Handle
	TenantResolved bool

	// Record is set by the ownership check.
	Record       schema.Record
	RecordEntity string
}

type ctxKey struct{}

// FromContext returns the request state attached by the pipeline.
func FromContext(ctx context.Context) (Request, bool) {
	req, ok := ctx.Value(ctxKey{}).(Request)
	return req, ok
}

// WithRequest attaches req to ctx.
func WithRequest(ctx context.Context, req Request) context.Context {
	return context.WithValue(ctx, ctxKey{}, req)
}

func (r Request) withTenant(h *tenancy.Handle) Request {
	r.Tenant = h
	r.TenantResolved = true
	return r
}

func (r Request) withRecord(entity string, rec schema.Record) Request {
	r.Record = rec
	r.RecordEntity = entity
	return r
}
