package gate

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-tenancy/internal/audit"
	"github.com/odyssey-erp/odyssey-tenancy/internal/auth"
	"github.com/odyssey-erp/odyssey-tenancy/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-tenancy/internal/rbac"
	"github.com/odyssey-erp/odyssey-tenancy/internal/users"
)

// Authenticate runs the credential, claim, freshness and rate limit stages and
// attaches the resulting Request to the context.
func (g *Gate) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			g.reject(w, StageAuthenticate, httpx.Fail(httpx.ErrUnauthorized, "NO_TOKEN", "authentication token required"))
			return
		}
		claims, err := g.verifier.Verify(token)
		if err != nil {
			if errors.Is(err, auth.ErrMalformed) {
				g.reject(w, StageClaims, httpx.Fail(httpx.ErrUnauthorized, "MALFORMED_CLAIMS", "token claims are incomplete"))
				return
			}
			expired := errors.Is(err, auth.ErrExpired)
			message := "invalid token"
			if expired {
				message = "token expired"
			}
			g.reject(w, StageAuthenticate, httpx.Fail(httpx.ErrUnauthorized, "INVALID_TOKEN", message).With("expired", expired))
			return
		}

		subjectID, tenantID, ok := parseClaimIDs(claims)
		if !ok {
			g.reject(w, StageClaims, httpx.Fail(httpx.ErrUnauthorized, "MALFORMED_CLAIMS", "token claims are incomplete"))
			return
		}

		principal, err := g.principals.PrincipalByID(r.Context(), subjectID)
		switch {
		case errors.Is(err, users.ErrNotFound):
			g.reject(w, StageFreshness, httpx.Fail(httpx.ErrUnauthorized, "PRINCIPAL_NOT_FOUND", "user no longer exists"))
			return
		case err != nil:
			g.fail(w, r, StageFreshness, err)
			return
		case !principal.IsActive:
			g.reject(w, StageFreshness, httpx.Fail(httpx.ErrUnauthorized, "PRINCIPAL_INACTIVE", "user is deactivated"))
			return
		case principal.TenantID != tenantID:
			g.audit.LogSecurityEvent(subjectID.String(), audit.ActionTenantMismatch, string(rbac.ResourceUsers), map[string]any{
				"claimTenantId":  tenantID.String(),
				"storedTenantId": principal.TenantID.String(),
				"path":           r.URL.Path,
				"remoteAddr":     r.RemoteAddr,
			})
			g.logger.Warn("token tenant mismatch",
				slog.String("subject", subjectID.String()),
				slog.String("claimTenant", tenantID.String()),
				slog.String("storedTenant", principal.TenantID.String()))
			g.reject(w, StageFreshness, httpx.Fail(httpx.ErrUnauthorized, "TENANT_MISMATCH", "token does not match the user's tenant"))
			return
		}

		if !g.admit(w, r, subjectID) {
			return
		}

		// The durable record wins over the token for role and email.
		req := Request{
			SubjectID:   subjectID,
			TenantID:    tenantID,
			Role:        principal.Role,
			Email:       principal.Email,
			DisplayName: principal.DisplayName(),
			Principal:   *principal,
		}
		next.ServeHTTP(w, r.WithContext(WithRequest(r.Context(), req)))
	})
}

// admit applies the per-subject rate limit. Limiter errors are logged and the
// request proceeds.
func (g *Gate) admit(w http.ResponseWriter, r *http.Request, subjectID uuid.UUID) bool {
	if g.limiter == nil {
		return true
	}
	d, err := g.limiter.Allow(r.Context(), subjectID.String())
	if err != nil {
		g.logger.Warn("rate limiter unavailable", slog.Any("error", err))
		return true
	}
	resetIn := d.ResetIn(g.now())
	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
	if d.Allowed {
		return true
	}
	h.Set("Retry-After", strconv.Itoa(resetIn))
	g.reject(w, StageRateLimit, httpx.Fail(httpx.ErrRateLimited, "RATE_LIMITED", "too many requests").With("resetIn", resetIn))
	return false
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func parseClaimIDs(c *auth.Claims) (uuid.UUID, uuid.UUID, bool) {
	if c == nil || strings.TrimSpace(c.Role) == "" {
		return uuid.Nil, uuid.Nil, false
	}
	subject, err := uuid.Parse(c.Subject)
	if err != nil || subject == uuid.Nil {
		return uuid.Nil, uuid.Nil, false
	}
	tenant, err := uuid.Parse(c.TenantID)
	if err != nil || tenant == uuid.Nil {
		return uuid.Nil, uuid.Nil, false
	}
	return subject, tenant, true
}
