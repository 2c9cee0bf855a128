package auth

import "errors"

// AuthError is an expected rejection of an authentication request.  Its
// Code is the stable machine-readable value returned to clients.
// Storage and crypto faults are never AuthErrors.
type AuthError struct {
	Code string
}

func (e *AuthError) Error() string { return "auth: " + e.Code }

var (
	ErrInvalidCredentials  = &AuthError{Code: "invalid_credentials"}
	ErrNoRefresh           = &AuthError{Code: "no_refresh"}
	ErrInvalidRefresh      = &AuthError{Code: "invalid_refresh"}
	ErrRefreshRevoked      = &AuthError{Code: "refresh_revoked"}
	ErrRefreshExpired      = &AuthError{Code: "refresh_expired"}
	ErrInvalidUser         = &AuthError{Code: "invalid_user"}
	ErrInvalidGoogleToken  = &AuthError{Code: "invalid_google_token"}
	ErrGoogleEmailRequired = &AuthError{Code: "google_email_required"}
	ErrEmailTaken          = &AuthError{Code: "email_taken"}
	ErrInvalidInput        = &AuthError{Code: "invalid_body"}
)

// Code returns the rejection code carried by err, or "" when err is not
// an AuthError.
func Code(err error) string {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}
