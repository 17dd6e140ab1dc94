package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-tenancy/internal/testing/guard"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", guard.JWTSecret)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.AppAddr)
	assert.Equal(t, 100, cfg.RateLimitMax)
	assert.Equal(t, time.Minute, cfg.RateLimitWindow)
	assert.Equal(t, BackendMemory, cfg.RateLimitBackend)
	assert.Equal(t, SinkDB, cfg.AuditSink)
	assert.Equal(t, 10*time.Second, cfg.TenantConnectTimeout)
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "missing secret", env: map[string]string{"JWT_SECRET": ""}},
		{name: "short secret", env: map[string]string{"JWT_SECRET": "short"}},
		{name: "zero limit", env: map[string]string{"JWT_SECRET": guard.JWTSecret, "RATE_LIMIT_MAX": "0"}},
		{name: "unknown backend", env: map[string]string{"JWT_SECRET": guard.JWTSecret, "RATE_LIMIT_BACKEND": "memcached"}},
		{name: "unknown sink", env: map[string]string{"JWT_SECRET": guard.JWTSecret, "AUDIT_SINK": "kafka"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}
