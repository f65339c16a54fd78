package errors

import (
	"errors"
	"net/http"
)

var (
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrTokenMalformed       = errors.New("token malformed")
	ErrTokenExpired         = errors.New("token expired")
	ErrTokenRevoked         = errors.New("token revoked")
	ErrTokenWrongPurpose    = errors.New("token used for wrong purpose")
	ErrAccountDeactivated   = errors.New("account deactivated")
	ErrAccountNotFound      = errors.New("account not found")
	ErrForbidden            = errors.New("insufficient permissions")
	ErrTooManyLoginAttempts = errors.New("too many failed login attempts")
	ErrEmailAlreadyInUse    = errors.New("email already in use")
	ErrGoogleIDInUse        = errors.New("google account already linked to another account")
	ErrExternalAuthFailed   = errors.New("external authentication failed")
	ErrInvalidRole          = errors.New("invalid role")
)

// Machine-readable codes returned to clients.
const (
	CodeInvalidCredentials = "invalid_credentials"
	CodeTokenInvalid       = "token_invalid"
	CodeTokenExpired       = "token_expired"
	CodeForbidden          = "forbidden"
	CodeTooManyAttempts    = "too_many_attempts"
	CodeRateLimited        = "rate_limited"
	CodeValidationFailed   = "validation_failed"
	CodeEmailInUse         = "email_in_use"
	CodeIdentityInUse      = "identity_in_use"
	CodeNotFound           = "not_found"
	CodeInternal           = "internal_error"
)

const (
	MessageAuthenticationFailed = "authentication failed"
	MessageTokenExpired         = "access token expired"
	MessageForbidden            = "forbidden"
	MessageInternal             = "internal server error"
)

// Code maps err to the code exposed to clients. Token failures other than
// expiry collapse into a single code so the response does not reveal which
// check rejected the request.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrExternalAuthFailed):
		return CodeInvalidCredentials
	case errors.Is(err, ErrTokenExpired):
		return CodeTokenExpired
	case errors.Is(err, ErrTokenMalformed),
		errors.Is(err, ErrTokenRevoked),
		errors.Is(err, ErrTokenWrongPurpose),
		errors.Is(err, ErrAccountDeactivated):
		return CodeTokenInvalid
	case errors.Is(err, ErrForbidden):
		return CodeForbidden
	case errors.Is(err, ErrTooManyLoginAttempts):
		return CodeTooManyAttempts
	case errors.Is(err, ErrEmailAlreadyInUse):
		return CodeEmailInUse
	case errors.Is(err, ErrGoogleIDInUse):
		return CodeIdentityInUse
	case errors.Is(err, ErrAccountNotFound):
		return CodeNotFound
	case errors.Is(err, ErrInvalidRole):
		return CodeValidationFailed
	default:
		return CodeInternal
	}
}

// Status maps err to an HTTP status code.
func Status(err error) int {
	switch Code(err) {
	case CodeInvalidCredentials, CodeTokenExpired, CodeTokenInvalid:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeTooManyAttempts, CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeEmailInUse, CodeIdentityInUse:
		return http.StatusConflict
	case CodeNotFound:
		return http.StatusNotFound
	case CodeValidationFailed:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the human-readable text sent with err.
func Message(err error) string {
	switch Code(err) {
	case CodeTokenExpired:
		return MessageTokenExpired
	case CodeInvalidCredentials, CodeTokenInvalid:
		return MessageAuthenticationFailed
	case CodeForbidden:
		return MessageForbidden
	case CodeIdentityInUse:
		return ErrGoogleIDInUse.Error()
	case CodeInternal:
		return MessageInternal
	default:
		return err.Error()
	}
}

// IsInternal reports whether err is not part of the known taxonomy.
func IsInternal(err error) bool {
	return Code(err) == CodeInternal
}
