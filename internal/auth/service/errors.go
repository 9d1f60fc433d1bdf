package service

import "errors"

// Credential sign-in failures. They stay distinct here so logs and metrics
// can tell them apart; handlers collapse them into one response.
var (
	ErrMissingCredentials = errors.New("email and password are required")
	ErrUserNotFound       = errors.New("user not found")
	ErrNoPasswordSet      = errors.New("account has no password set")
	ErrPasswordMismatch   = errors.New("password does not match")
)

// Federated sign-in failures.
var (
	ErrUnknownProvider     = errors.New("unknown sign-in provider")
	ErrInvalidState        = errors.New("invalid or expired oauth state")
	ErrProfileIncomplete   = errors.New("provider profile has no email")
	ErrProviderUnavailable = errors.New("sign-in provider unavailable")
)

// IsCredentialFailure reports whether err is a caller-side credential
// failure rather than an infrastructure error.
func IsCredentialFailure(err error) bool {
	return errors.Is(err, ErrMissingCredentials) ||
		errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrNoPasswordSet) ||
		errors.Is(err, ErrPasswordMismatch)
}

func signInOutcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrMissingCredentials):
		return "missing_credentials"
	case errors.Is(err, ErrUserNotFound):
		return "user_not_found"
	case errors.Is(err, ErrNoPasswordSet):
		return "no_password"
	case errors.Is(err, ErrPasswordMismatch):
		return "password_mismatch"
	default:
		return "error"
	}
}
