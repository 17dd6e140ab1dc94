package audithttp

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-tenancy/internal/audit"
	"github.com/odyssey-erp/odyssey-tenancy/internal/gate"
)

type stubTimelineService struct {
	result      audit.Result
	err         error
	lastFilters audit.TimelineFilters
}

func (s *stubTimelineService) Timeline(ctx context.Context, filters audit.TimelineFilters) (audit.Result, error) {
	s.lastFilters = filters
	return s.result, s.err
}

func newAuditHandler(service *stubTimelineService) *Handler {
	handler := NewHandler(nil, service)
	handler.now = func() time.Time { return time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC) }
	return handler
}

func TestTimelineReturnsEvents(t *testing.T) {
	events := []audit.Event{{SubjectID: "u-1", Action: audit.ActionTenantMismatch, ResourceType: "usuarios", At: time.Date(2024, 3, 10, 10, 0, 0, 0, time.UTC)}}
	service := &stubTimelineService{result: audit.Result{Events: events, Paging: audit.PagingInfo{Page: 1, PageSize: 20}}}
	handler := newAuditHandler(service)

	req := httptest.NewRequest(http.MethodGet, "/audit/security-events?from=2024-03-01&to=2024-03-14&action=auth.tenant_mismatch&pageSize=500", nil)
	rr := httptest.NewRecorder()
	handler.handleTimeline(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "auth.tenant_mismatch") {
		t.Fatalf("expected event in body, got %s", rr.Body.String())
	}
	got := service.lastFilters
	if got.PageSize != maxPageSize {
		t.Fatalf("expected page size clamp, got %d", got.PageSize)
	}
	if !got.To.Equal(time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected inclusive end date, got %s", got.To)
	}
	if got.Action != audit.ActionTenantMismatch {
		t.Fatalf("expected action filter, got %q", got.Action)
	}
}

func TestTimelineDefaultsToLastWeek(t *testing.T) {
	service := &stubTimelineService{}
	handler := newAuditHandler(service)
	rr := httptest.NewRecorder()
	handler.handleTimeline(rr, httptest.NewRequest(http.MethodGet, "/audit/security-events", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if d := service.lastFilters.To.Sub(service.lastFilters.From); d != defaultDateRange {
		t.Fatalf("expected default range, got %s", d)
	}
}

func TestTimelineRejectsBadFilters(t *testing.T) {
	for _, query := range []string{"from=yesterday", "from=2024-03-10&to=2024-03-01", "from=2023-01-01&to=2024-03-01", "page=0"} {
		service := &stubTimelineService{}
		handler := newAuditHandler(service)
		rr := httptest.NewRecorder()
		handler.handleTimeline(rr, httptest.NewRequest(http.MethodGet, "/audit/security-events?"+query, nil))
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", query, rr.Code)
		}
	}
}

func TestTimelineHidesStoreErrors(t *testing.T) {
	service := &stubTimelineService{err: errors.New("pq: relation security_audit_logs does not exist")}
	handler := newAuditHandler(service)
	rr := httptest.NewRecorder()
	handler.handleTimeline(rr, httptest.NewRequest(http.MethodGet, "/audit/security-events", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	if strings.Contains(rr.Body.String(), "relation") {
		t.Fatalf("store error leaked: %s", rr.Body.String())
	}
}

func TestRateLimitKeyPrefersSubject(t *testing.T) {
	subject := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/audit/security-events", nil)
	req = req.WithContext(gate.WithRequest(req.Context(), gate.Request{SubjectID: subject}))
	key, err := rateLimitKey(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key != "user:"+subject.String() {
		t.Fatalf("unexpected key %q", key)
	}

	anon := httptest.NewRequest(http.MethodGet, "/audit/security-events", nil)
	key, err = rateLimitKey(anon)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(key, "ip:") {
		t.Fatalf("expected ip key, got %q", key)
	}
}
