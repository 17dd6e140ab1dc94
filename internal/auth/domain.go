package auth

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound indicates no account matches the email.
	ErrNotFound = errors.New("auth: account not found")
	// ErrInvalidCredentials indicates login failure. Unknown email, wrong password and
	// inactive account all map to it.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
)

// User represents an authenticated user account as seen by the login flow.
type User struct {
	ID           uuid.UUID
	TenantID     uuid.UUID
	Email        string
	PasswordHash string
	Role         string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
