package gate

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/odyssey-erp/odyssey-tenancy/internal/platform/httpx"
)

// Pipeline stage labels used in logs and metrics.
const (
	StageAuthenticate = "authenticate"
	StageClaims       = "claims"
	StageFreshness    = "freshness"
	StageRateLimit    = "rate_limit"
	StageTenant       = "tenant"
	StageAuthorize    = "authorize"
	StageOwnership    = "ownership"
	StageSelfModify   = "self_modification"
)

var errInternal = errors.New("gate: internal failure")

var errUnauthenticated = httpx.Fail(httpx.ErrUnauthorized, "UNAUTHENTICATED", "authentication required")

func (g *Gate) reject(w http.ResponseWriter, stage string, f *httpx.Failure) {
	g.metrics.GateRejected(stage, f.Code)
	httpx.RespondError(w, f)
}

// fail answers 500 with the generic envelope and logs the cause.
func (g *Gate) fail(w http.ResponseWriter, r *http.Request, stage string, err error) {
	g.logger.Error("authorization stage failed",
		slog.String("stage", stage),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Any("error", err))
	g.metrics.GateRejected(stage, "INTERNAL")
	httpx.RespondError(w, errInternal)
}

// current returns the request state, rejecting when authentication never ran.
func (g *Gate) current(w http.ResponseWriter, r *http.Request, stage string) (Request, bool) {
	req, ok := FromContext(r.Context())
	if !ok {
		g.reject(w, stage, errUnauthenticated)
	}
	return req, ok
}
