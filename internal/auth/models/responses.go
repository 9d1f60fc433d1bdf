package models

import "time"

// LoginData is the data member of a successful legacy login.
type LoginData struct {
	User  *Identity `json:"user"`
	Token string    `json:"token"`
}

type LoginResponse struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	Data      LoginData `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

type LoginStatusResponse struct {
	Authenticated bool    `json:"authenticated"`
	User          *Claims `json:"user"`
}

type LogoutResponse struct {
	Success bool `json:"success"`
}

type LogoutStatusResponse struct {
	WasAuthenticated bool `json:"wasAuthenticated"`
}

// SessionResponse mirrors the provider session endpoint: empty when there
// is no session.
type SessionResponse struct {
	User    *Claims    `json:"user,omitempty"`
	Expires *time.Time `json:"expires,omitempty"`
}

type SignInResponse struct {
	Success bool      `json:"success"`
	User    *Identity `json:"user"`
}

type ProviderInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	SignInURL   string `json:"signinUrl"`
	CallbackURL string `json:"callbackUrl"`
}
