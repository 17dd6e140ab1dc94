package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
)

// Verification failures.
var (
	ErrInvalidSignature = errors.New("auth: invalid token signature")
	ErrExpired          = errors.New("auth: token expired")
	ErrMalformed        = errors.New("auth: malformed token")
)

// Claims carried by a bearer credential. The subject id lives in RegisteredClaims.Subject.
type Claims struct {
	TenantID string `json:"tid"`
	Role     string `json:"role"`
	Email    string `json:"email"`
	jwt.RegisteredClaims
}

type requiredClaims struct {
	Subject  string `validate:"required,uuid"`
	TenantID string `validate:"required,uuid"`
	Role     string `validate:"required,max=64"`
	Email    string `validate:"required,email"`
}

// JWTManager issues and verifies HS256 bearer credentials.
type JWTManager struct {
	secret   []byte
	ttl      time.Duration
	issuer   string
	now      func() time.Time
	validate *validator.Validate
}

// NewJWTManager constructs a manager. The secret must be at least 32 bytes.
func NewJWTManager(secret string, ttl time.Duration, issuer string) (*JWTManager, error) {
	if len(secret) < 32 {
		return nil, errors.New("auth: jwt secret must be at least 32 characters")
	}
	if ttl <= 0 {
		ttl = 8 * time.Hour
	}
	return &JWTManager{
		secret:   []byte(secret),
		ttl:      ttl,
		issuer:   issuer,
		now:      time.Now,
		validate: validator.New(),
	}, nil
}

// Issue signs a credential for the principal.
func (m *JWTManager) Issue(subject, tenantID, role, email string) (string, time.Time, error) {
	now := m.now()
	expires := now.Add(m.ttl)
	claims := &Claims{
		TenantID: tenantID,
		Role:     role,
		Email:    email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, expires, nil
}

// Verify validates the signature, expiry and required claims of a credential.
func (m *JWTManager) Verify(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, classify(err)
	}
	if err := m.validate.Struct(requiredClaims{
		Subject:  claims.Subject,
		TenantID: claims.TenantID,
		Role:     claims.Role,
		Email:    claims.Email,
	}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return claims, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %w", ErrExpired, err)
	case errors.Is(err, jwt.ErrTokenMalformed), errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	default:
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	}
}
