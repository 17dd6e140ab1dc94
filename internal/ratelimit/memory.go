package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/go-chi/httprate"

	"github.com/odyssey-erp/odyssey-tenancy/internal/observability"
)

// MemoryConfig tunes a MemoryLimiter.
type MemoryConfig struct {
	Max     int
	Window  time.Duration
	Sweep   time.Duration
	Now     func() time.Time
	Logger  *slog.Logger
	Metrics *observability.Metrics
}

// MemoryLimiter keeps httprate's sliding-window counters in process. State is lost on
// restart and not shared between instances.
type MemoryLimiter struct {
	max     int
	window  time.Duration
	sweep   time.Duration
	now     func() time.Time
	logger  *slog.Logger
	metrics *observability.Metrics

	mu      sync.Mutex
	counter httprate.LimitCounter
	seen    map[string]time.Time
}

// NewMemoryLimiter constructs a MemoryLimiter.
func NewMemoryLimiter(cfg MemoryConfig) *MemoryLimiter {
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.Sweep <= 0 {
		cfg.Sweep = cfg.Window
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &MemoryLimiter{
		max:     cfg.Max,
		window:  cfg.Window,
		sweep:   cfg.Sweep,
		now:     cfg.Now,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
		counter: httprate.NewLocalLimitCounter(cfg.Window),
		seen:    make(map[string]time.Time),
	}
}

// Allow implements Limiter. The previous window's count is weighted by how much of it
// still overlaps the rolling window ending now.
func (m *MemoryLimiter) Allow(_ context.Context, key string) (Decision, error) {
	if m.max <= 0 {
		return Decision{Allowed: true}, nil
	}
	now := m.now().UTC()
	current := now.Truncate(m.window)
	previous := current.Add(-m.window)
	resetAt := current.Add(m.window)

	m.mu.Lock()
	defer m.mu.Unlock()

	curr, prev, err := m.counter.Get(key, current, previous)
	if err != nil {
		return Decision{}, err
	}
	rate := slidingRate(curr, prev, now.Sub(current), m.window)
	if rate >= m.max {
		return Decision{Allowed: false, Limit: m.max, Remaining: 0, ResetAt: resetAt}, nil
	}
	if err := m.counter.Increment(key, current); err != nil {
		return Decision{}, err
	}
	m.seen[key] = current
	return Decision{Allowed: true, Limit: m.max, Remaining: m.max - rate - 1, ResetAt: resetAt}, nil
}

// Sweep forgets subjects whose counts no longer reach into the rolling window and
// returns how many remain.
func (m *MemoryLimiter) Sweep() int {
	previous := m.now().UTC().Truncate(m.window).Add(-m.window)
	m.mu.Lock()
	for key, last := range m.seen {
		if last.Before(previous) {
			delete(m.seen, key)
		}
	}
	n := len(m.seen)
	m.mu.Unlock()
	m.metrics.RateLimitTracked(n)
	return n
}

// Reset drops all counters.
func (m *MemoryLimiter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counter = httprate.NewLocalLimitCounter(m.window)
	m.seen = make(map[string]time.Time)
}

// Run sweeps on a fixed interval until ctx is cancelled.
func (m *MemoryLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(m.sweep)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				m.logger.Debug("rate limit sweep", slog.Int("tracked", n))
			}
		}
	}
}

var _ Limiter = (*MemoryLimiter)(nil)
