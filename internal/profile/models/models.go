package models

import (
	"time"

	authmodels "gatehouse/internal/auth/models"
	id "gatehouse/pkg/domain"
	strutil "gatehouse/pkg/string"
	"gatehouse/pkg/validation"
)

// Profile is the public view of a user. It never carries the password
// hash.
type Profile struct {
	ID        id.UserID       `json:"id"`
	Email     string          `json:"email"`
	Name      string          `json:"name"`
	Image     string          `json:"image,omitempty"`
	Role      authmodels.Role `json:"role"`
	Federated bool            `json:"federated"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

func FromUser(u *authmodels.User) *Profile {
	return &Profile{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Image:     u.Image,
		Role:      u.Role,
		Federated: u.IsFederated(),
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func FromUsers(users []*authmodels.User) []*Profile {
	out := make([]*Profile, 0, len(users))
	for _, u := range users {
		out = append(out, FromUser(u))
	}
	return out
}

// UpdateRequest changes a profile. Nil fields are left alone; Role is
// honored only for administrators.
type UpdateRequest struct {
	Name  *string `json:"name" validate:"omitempty,min=2,max=50"`
	Image *string `json:"image" validate:"omitempty,url,max=500"`
	Role  *string `json:"role" validate:"omitempty,oneof=ADMIN MODERATOR USER"`
}

func (r *UpdateRequest) Sanitize() {
	if r.Name != nil {
		name := strutil.SanitizeInput(*r.Name)
		r.Name = &name
	}
	if r.Image != nil {
		strutil.TrimStrings(r.Image)
	}
	if r.Role != nil {
		strutil.TrimStrings(r.Role)
	}
}

func (r *UpdateRequest) Validate() error {
	return validation.Validate(r)
}

type ProfileResponse struct {
	Success   bool      `json:"success"`
	Data      *Profile  `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

type UpdateResponse struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	Data      *Profile  `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

type DeleteResponse struct {
	Success       bool      `json:"success"`
	Message       string    `json:"message"`
	DeletedUserID id.UserID `json:"deletedUserId"`
	Timestamp     time.Time `json:"timestamp"`
}

type DirectoryPagination struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	Total      int  `json:"total"`
	TotalPages int  `json:"totalPages"`
	HasNext    bool `json:"hasNext"`
	HasPrev    bool `json:"hasPrev"`
}

type DirectoryFilters struct {
	Search    string `json:"search"`
	Role      string `json:"role"`
	SortBy    string `json:"sortBy"`
	SortOrder string `json:"sortOrder"`
}

type DirectoryResponse struct {
	Success    bool                `json:"success"`
	Data       []*Profile          `json:"data"`
	Pagination DirectoryPagination `json:"pagination"`
	Filters    DirectoryFilters    `json:"filters"`
	Timestamp  time.Time           `json:"timestamp"`
}
