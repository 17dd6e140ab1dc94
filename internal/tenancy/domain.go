// Package tenancy resolves tenant ids to live, cached database handles.
package tenancy

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Resolution failures.
var (
	ErrInvalidTenantID     = errors.New("tenancy: invalid tenant id")
	ErrTenantNotFound      = errors.New("tenancy: tenant not found")
	ErrTenantInactive      = errors.New("tenancy: tenant inactive")
	ErrTenantMisconfigured = errors.New("tenancy: tenant has no store configuration")
)

// StateActive is the only state admitting business access.
const StateActive = "active"

// Descriptor is the directory record of a tenant.
type Descriptor struct {
	ID        uuid.UUID
	Name      string
	State     string
	Platform  bool
	Store     *StoreConfig
	UpdatedAt time.Time
}

// Active reports whether the tenant admits business access.
func (d Descriptor) Active() bool {
	return d.State == StateActive
}

// StoreConfig locates a tenant's database. Secret is the credential password and is only
// populated when the secret-bearing projection is requested.
type StoreConfig struct {
	URI    string
	Secret string
}

// Configured reports whether the config names a store.
func (s *StoreConfig) Configured() bool {
	return s != nil && strings.TrimSpace(s.URI) != ""
}

func (s StoreConfig) fingerprint() string {
	sum := sha256.Sum256([]byte(s.URI + "\x00" + s.Secret))
	return hex.EncodeToString(sum[:8])
}

// LogValue renders the store without credentials.
func (s StoreConfig) LogValue() slog.Value {
	u, err := url.Parse(s.URI)
	if err != nil {
		return slog.StringValue("[unparseable]")
	}
	u.User = nil
	u.RawQuery = ""
	return slog.StringValue(u.String())
}

// NormalizeID parses a tenant id into its canonical form.
func NormalizeID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil || id == uuid.Nil {
		return uuid.Nil, ErrInvalidTenantID
	}
	return id, nil
}
