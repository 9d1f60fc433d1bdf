package models

import (
	"strings"

	strutil "gatehouse/pkg/string"
	"gatehouse/pkg/validation"
)

// LoginRequest is the credential sign-in body shared by the legacy login
// and the session sign-in endpoints.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email,max=100"`
	Password string `json:"password" validate:"required,max=256"`
}

func (r *LoginRequest) Sanitize() {
	strutil.TrimStrings(&r.Email)
	r.Email = strings.ToLower(r.Email)
}

func (r *LoginRequest) Validate() error {
	return validation.Validate(r)
}
