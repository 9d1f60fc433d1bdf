package models

import (
	"strings"
	"time"

	id "gatehouse/pkg/domain"
	dErrors "gatehouse/pkg/domain-errors"
)

// Role is the closed set of user roles.
type Role string

const (
	RoleAdmin     Role = "ADMIN"
	RoleModerator Role = "MODERATOR"
	RoleUser      Role = "USER"
)

func (r Role) String() string { return string(r) }

func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleModerator, RoleUser:
		return true
	}
	return false
}

// ParseRole accepts exactly the enum values; anything else is a
// validation error.
func ParseRole(s string) (Role, error) {
	r := Role(strings.TrimSpace(s))
	if !r.IsValid() {
		return "", dErrors.New(dErrors.CodeValidation, "invalid role")
	}
	return r, nil
}

// ClaimSource records which authority vouched for a caller.
type ClaimSource string

const (
	SourceLegacy  ClaimSource = "legacy"
	SourceSession ClaimSource = "session"
)

// User is a stored account. An empty PasswordHash marks a federated
// account that cannot use credential sign-in.
type User struct {
	ID           id.UserID
	Email        string
	Name         string
	Image        string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (u *User) IsFederated() bool {
	return u.PasswordHash == ""
}

func (u *User) Identity() *Identity {
	return &Identity{ID: u.ID, Email: u.Email, Name: u.Name, Image: u.Image, Role: u.Role}
}

// Identity is the minimal view of a user returned by sign-in.
type Identity struct {
	ID    id.UserID `json:"id"`
	Email string    `json:"email"`
	Name  string    `json:"name"`
	Image string    `json:"image,omitempty"`
	Role  Role      `json:"role"`
}

// Claims is the caller identity established for one request.
type Claims struct {
	UserID    id.UserID   `json:"id"`
	Email     string      `json:"email"`
	Name      string      `json:"name"`
	Image     string      `json:"image,omitempty"`
	Role      Role        `json:"role"`
	ExpiresAt time.Time   `json:"expires"`
	Source    ClaimSource `json:"-"`
}

func (c *Claims) HasRole(roles ...Role) bool {
	for _, r := range roles {
		if c.Role == r {
			return true
		}
	}
	return false
}

// Session is a provider session. The role and user id are copied in when
// the session starts so resolving it needs no user lookup.
type Session struct {
	ID        string
	UserID    id.UserID
	Email     string
	Name      string
	Image     string
	Role      Role
	Provider  string
	Device    string
	CreatedAt time.Time
	ExpiresAt time.Time
}

func (s *Session) IsExpired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

func (s *Session) Claims() *Claims {
	return &Claims{
		UserID:    s.UserID,
		Email:     s.Email,
		Name:      s.Name,
		Image:     s.Image,
		Role:      s.Role,
		ExpiresAt: s.ExpiresAt,
		Source:    SourceSession,
	}
}

// FederatedProfile is what an external provider tells us about a user.
type FederatedProfile struct {
	Subject string
	Email   string
	Name    string
	Image   string
}

// UserQuery filters and pages the user directory.
type UserQuery struct {
	Search    string
	Role      Role
	SortBy    string
	SortOrder string
	Offset    int
	Limit     int
}

// User directory sort keys.
const (
	SortByCreatedAt = "createdAt"
	SortByName      = "name"
	SortByEmail     = "email"
	SortByRole      = "role"
)
