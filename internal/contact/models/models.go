package models

import (
	"time"

	id "gatehouse/pkg/domain"
	strutil "gatehouse/pkg/string"
	"gatehouse/pkg/validation"
)

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusResolved   Status = "RESOLVED"
	StatusClosed     Status = "CLOSED"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusResolved, StatusClosed:
		return true
	}
	return false
}

// Contact is a stored contact-form submission. UserID is set when the
// sender was signed in.
type Contact struct {
	ID        id.ContactID `json:"id"`
	Name      string       `json:"name"`
	Email     string       `json:"email"`
	Phone     string       `json:"phone,omitempty"`
	Company   string       `json:"company,omitempty"`
	Subject   string       `json:"subject"`
	Message   string       `json:"message"`
	UserID    *id.UserID   `json:"userId,omitempty"`
	Status    Status       `json:"status"`
	IsRead    bool         `json:"isRead"`
	CreatedAt time.Time    `json:"createdAt"`
}

// Query filters and pages the admin listing. An empty Status matches all.
type Query struct {
	Status Status
	Offset int
	Limit  int
}

type SubmitRequest struct {
	Name    string `json:"name" validate:"required,min=2,max=50,personname"`
	Email   string `json:"email" validate:"required,email,max=100"`
	Phone   string `json:"phone" validate:"omitempty,phone"`
	Company string `json:"company" validate:"max=100"`
	Subject string `json:"subject" validate:"required,min=5,max=100"`
	Message string `json:"message" validate:"required,min=10,max=2000"`
}

// Sanitize strips markup and script vectors from every field.
func (r *SubmitRequest) Sanitize() {
	for _, field := range []*string{&r.Name, &r.Email, &r.Phone, &r.Company, &r.Subject, &r.Message} {
		*field = strutil.SanitizeInput(*field)
	}
}

// ValidateFields returns per-field messages alongside the validation error.
func (r *SubmitRequest) ValidateFields() (map[string][]string, error) {
	return validation.ValidateFields(r)
}

type SubmitData struct {
	ID        id.ContactID `json:"id"`
	CreatedAt time.Time    `json:"createdAt"`
}

type SubmitResponse struct {
	Success bool                `json:"success"`
	Message string              `json:"message"`
	Data    *SubmitData         `json:"data,omitempty"`
	Errors  map[string][]string `json:"errors,omitempty"`
}

type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

type ListResponse struct {
	Success    bool       `json:"success"`
	Data       []*Contact `json:"data"`
	Pagination Pagination `json:"pagination"`
}
