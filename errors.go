package gate

import (
	"errors"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeUsernameTaken     = "username_taken"
	TextCodeEmailTaken        = "email_taken"
	TextCodeInvalidUsername   = "invalid_username"
	TextCodeBootstrapNotFound = "bootstrap_token_not_found"
	TextCodeBootstrapExpired  = "bootstrap_token_expired"
	TextCodeUnauthorized      = "authentication_required"
	TextCodeForbidden         = "insufficient_role"
	TextCodeGuestOnly         = "already_authenticated"
	TextCodeRateLimited       = "rate_limited"
	TextCodeTokenExpired      = "session_token_expired"
	TextCodeTokenMalformed    = "session_token_malformed"
)

// ErrUsernameTaken is returned when the authoritative claim loses the
// uniqueness race. The pending identity survives; the caller retries.
var ErrUsernameTaken = goerrors.New("username already claimed", goerrors.CategoryConflict).
	WithTextCode(TextCodeUsernameTaken).
	WithCode(goerrors.CodeConflict)

// ErrEmailTaken is returned when an account with the email already exists.
var ErrEmailTaken = goerrors.New("email already registered", goerrors.CategoryConflict).
	WithTextCode(TextCodeEmailTaken).
	WithCode(goerrors.CodeConflict)

// ErrInvalidUsername is returned for malformed usernames (length, charset).
var ErrInvalidUsername = goerrors.New("invalid username", goerrors.CategoryValidation).
	WithTextCode(TextCodeInvalidUsername).
	WithCode(goerrors.CodeBadRequest)

// ErrBootstrapNotFound is returned when a bootstrap token resolves to no
// pending identity: consumed, replaced, or never issued.
var ErrBootstrapNotFound = goerrors.New("bootstrap token not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeBootstrapNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrBootstrapExpired is terminal for a bootstrap flow; the user restarts
// from the provider sign-in.
var ErrBootstrapExpired = goerrors.New("bootstrap token expired", goerrors.CategoryBadInput).
	WithTextCode(TextCodeBootstrapExpired).
	WithCode(goerrors.CodeBadRequest)

// ErrUnauthorized is the gateway-level "no credential where required".
var ErrUnauthorized = goerrors.New("authentication required", goerrors.CategoryAuth).
	WithTextCode(TextCodeUnauthorized).
	WithCode(goerrors.CodeUnauthorized)

// ErrForbidden is the gateway-level "credential present but insufficient role".
var ErrForbidden = goerrors.New("insufficient role", goerrors.CategoryAuthz).
	WithTextCode(TextCodeForbidden).
	WithCode(goerrors.CodeForbidden)

// ErrAlreadyAuthenticated guards guest-only surfaces against signed-in sessions.
var ErrAlreadyAuthenticated = goerrors.New("already authenticated", goerrors.CategoryAuthz).
	WithTextCode(TextCodeGuestOnly).
	WithCode(goerrors.CodeForbidden)

// ErrRateLimited is returned for every path once the limiter trips,
// including limiter outages (fail closed).
var ErrRateLimited = goerrors.New("rate limited", goerrors.CategoryRateLimit).
	WithTextCode(TextCodeRateLimited).
	WithCode(http.StatusTooManyRequests)

// ErrTokenExpired marks a session credential past its expiry; the gateway
// treats it the same as an absent credential.
var ErrTokenExpired = goerrors.New("session token expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenMalformed marks an unparseable session credential.
var ErrTokenMalformed = goerrors.New("session token malformed", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(goerrors.CodeUnauthorized)

// ErrNoEmptyString guards the bcrypt helpers
var ErrNoEmptyString = errors.New("password must not be empty")

// ErrMismatchedHashAndPassword wraps the bcrypt mismatch
var ErrMismatchedHashAndPassword = errors.New("password does not match")

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	if hasTextCode(err, TextCodeTokenExpired) {
		return true
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for malformed token errors
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	if hasTextCode(err, TextCodeTokenMalformed) {
		return true
	}
	return strings.Contains(err.Error(), "token is malformed")
}

// IsConflictError reports whether the claim failed on username uniqueness.
func IsConflictError(err error) bool {
	return hasTextCode(err, TextCodeUsernameTaken) || hasTextCode(err, TextCodeEmailTaken)
}

// IsBootstrapExpiredError reports a bootstrap token past its TTL.
func IsBootstrapExpiredError(err error) bool {
	return hasTextCode(err, TextCodeBootstrapExpired)
}

// IsBootstrapNotFoundError reports a consumed, replaced, or unknown token.
func IsBootstrapNotFoundError(err error) bool {
	return hasTextCode(err, TextCodeBootstrapNotFound)
}

func hasTextCode(err error, textCode string) bool {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == textCode
}
