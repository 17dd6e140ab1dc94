package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics mengumpulkan metrik Prometheus untuk aplikasi.
type Metrics struct {
	registry         *prometheus.Registry
	handler          http.Handler
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	gateRejections   *prometheus.CounterVec
	tenantLookups    *prometheus.CounterVec
	tenantOpened     prometheus.Counter
	tenantEvictions  *prometheus.CounterVec
	tenantHandles    prometheus.Gauge
	accessorsCached  prometheus.Gauge
	auditEvents      *prometheus.CounterVec
	rateLimitTracked prometheus.Gauge
}

// NewMetrics menginisialisasi registry dan metrik dasar.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "odyssey_http_requests_total",
		Help: "Jumlah permintaan HTTP berdasarkan route dan status.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "odyssey_http_request_duration_seconds",
		Help:    "Durasi permintaan HTTP per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	rejections := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "odyssey_gate_rejections_total",
		Help: "Permintaan yang ditolak oleh pipeline otorisasi, per tahap dan kode.",
	}, []string{"stage", "code"})
	lookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "odyssey_tenant_handle_lookups_total",
		Help: "Resolusi handle tenant berdasarkan hasil cache.",
	}, []string{"result"})
	opened := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "odyssey_tenant_connections_opened_total",
		Help: "Koneksi pool tenant yang dibuka.",
	})
	evictions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "odyssey_tenant_handle_evictions_total",
		Help: "Handle tenant yang dikeluarkan dari cache, per alasan.",
	}, []string{"reason"})
	handles := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "odyssey_tenant_handles",
		Help: "Jumlah handle tenant yang aktif di cache.",
	})
	accessors := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "odyssey_schema_accessors",
		Help: "Jumlah accessor entitas per tenant di cache.",
	})
	audit := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "odyssey_audit_events_total",
		Help: "Event audit keamanan berdasarkan hasil pengiriman.",
	}, []string{"result"})
	tracked := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "odyssey_rate_limit_subjects",
		Help: "Jumlah subjek yang dilacak oleh rate limiter in-process.",
	})
	registry.MustRegister(requests, duration, rejections, lookups, opened, evictions, handles, accessors, audit, tracked)
	return &Metrics{
		registry:         registry,
		handler:          promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:    requests,
		requestDuration:  duration,
		gateRejections:   rejections,
		tenantLookups:    lookups,
		tenantOpened:     opened,
		tenantEvictions:  evictions,
		tenantHandles:    handles,
		accessorsCached:  accessors,
		auditEvents:      audit,
		rateLimitTracked: tracked,
	}
}

// Handler mengembalikan http.Handler untuk endpoint /metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware mencatat metrik untuk setiap permintaan HTTP.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// GateRejected mencatat penolakan pada tahap pipeline.
func (m *Metrics) GateRejected(stage, code string) {
	if m == nil {
		return
	}
	m.gateRejections.WithLabelValues(stage, code).Inc()
}

// TenantLookup mencatat hit/miss cache handle tenant.
func (m *Metrics) TenantLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.tenantLookups.WithLabelValues(result).Inc()
}

// TenantOpened mencatat koneksi tenant baru.
func (m *Metrics) TenantOpened(cached int) {
	if m == nil {
		return
	}
	m.tenantOpened.Inc()
	m.tenantHandles.Set(float64(cached))
}

// TenantEvicted mencatat pengeluaran handle tenant.
func (m *Metrics) TenantEvicted(reason string, cached int) {
	if m == nil {
		return
	}
	m.tenantEvictions.WithLabelValues(reason).Inc()
	m.tenantHandles.Set(float64(cached))
}

// AccessorsCached memperbarui jumlah accessor di cache.
func (m *Metrics) AccessorsCached(n int) {
	if m == nil {
		return
	}
	m.accessorsCached.Set(float64(n))
}

// AuditEvent mencatat hasil pengiriman event audit (queued, delivered, dropped, failed).
func (m *Metrics) AuditEvent(result string) {
	if m == nil {
		return
	}
	m.auditEvents.WithLabelValues(result).Inc()
}

// RateLimitTracked memperbarui jumlah subjek yang dilacak.
func (m *Metrics) RateLimitTracked(n int) {
	if m == nil {
		return
	}
	m.rateLimitTracked.Set(float64(n))
}

// Registerer mengekspos registry untuk pendaftaran metrik khusus.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
