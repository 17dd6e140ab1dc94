package audithttp

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/odyssey-erp/odyssey-tenancy/internal/gate"
	"github.com/odyssey-erp/odyssey-tenancy/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-tenancy/internal/rbac"
)

const rateLimit = 10
const rateWindow = time.Minute

// MountRoutes mendaftarkan endpoint timeline event keamanan. Event bersifat lintas
// tenant sehingga hanya superadmin yang boleh membacanya.
func (h *Handler) MountRoutes(r chi.Router, g *gate.Gate) {
	if h == nil {
		return
	}
	limiter := httprate.Limit(rateLimit, rateWindow,
		httprate.WithKeyFuncs(rateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.RespondError(w, httpx.Fail(httpx.ErrRateLimited, "RATE_LIMITED", "too many requests").
				With("resetIn", int(rateWindow.Seconds())))
		}),
	)
	r.With(g.RequireRoleLevel(rbac.RoleSuperadmin), limiter).Get("/audit/security-events", h.handleTimeline)
}

func rateLimitKey(r *http.Request) (string, error) {
	if req, ok := gate.FromContext(r.Context()); ok {
		return "user:" + req.SubjectID.String(), nil
	}
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}
