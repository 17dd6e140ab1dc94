package users

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Principal management failures.
var (
	ErrNotFound = errors.New("users: principal not found")
)

// SelfServiceFields lists the profile fields a principal may change on its own record.
var SelfServiceFields = []string{"firstName", "lastName", "phone", "avatarUrl", "password"}

// Principal is the minimal durable record checked on every request.
type Principal struct {
	ID        uuid.UUID `json:"id"`
	TenantID  uuid.UUID `json:"tenantId"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	IsActive  bool      `json:"isActive"`
}

var titleCaser = cases.Title(language.Spanish)

// DisplayName joins the name parts in title case, falling back to the email.
func (p Principal) DisplayName() string {
	name := strings.Join(strings.Fields(p.FirstName+" "+p.LastName), " ")
	if name == "" {
		return p.Email
	}
	return titleCaser.String(strings.ToLower(name))
}

// Profile is the full principal record.
type Profile struct {
	Principal
	Phone     string    `json:"phone,omitempty"`
	AvatarURL string    `json:"avatarUrl,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ProfilePatch is a partial update. Nil fields are left unchanged.
type ProfilePatch struct {
	FirstName *string `json:"firstName" validate:"omitempty,max=80"`
	LastName  *string `json:"lastName" validate:"omitempty,max=80"`
	Phone     *string `json:"phone" validate:"omitempty,max=32"`
	AvatarURL *string `json:"avatarUrl" validate:"omitempty,url,max=512"`
	Password  *string `json:"password" validate:"omitempty,min=8,max=72"`
	Email     *string `json:"email" validate:"omitempty,email"`
	IsActive  *bool   `json:"isActive"`
}

// Empty reports whether the patch changes nothing.
func (p ProfilePatch) Empty() bool {
	return p.FirstName == nil && p.LastName == nil && p.Phone == nil && p.AvatarURL == nil &&
		p.Password == nil && p.Email == nil && p.IsActive == nil
}
