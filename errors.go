package checkin

import (
	"github.com/goliatone/go-errors"
)

const (
	TextCodeInvalidCredentials = "INVALID_CREDENTIALS"
	TextCodeEmailInUse         = "EMAIL_IN_USE"
	TextCodeWeakPassword       = "WEAK_PASSWORD"
	TextCodeInvalidEmail       = "INVALID_EMAIL"
	TextCodeNoIdentity         = "NO_ACTIVE_IDENTITY"
	TextCodeRefreshFailed      = "TOKEN_REFRESH_FAILED"
	TextCodeProfileUnavailable = "PROFILE_UNAVAILABLE"
	TextCodeEmptyScanPayload   = "EMPTY_SCAN_PAYLOAD"
	TextCodeNoClassSelected    = "NO_CLASS_SELECTED"
	TextCodeClassNotAssigned   = "CLASS_NOT_ASSIGNED"
	TextCodeDecoderActive      = "DECODER_SESSION_ACTIVE"
	TextCodeDecoderMissing     = "DECODER_UNAVAILABLE"
	TextCodeInvalidTransition  = "INVALID_READINESS_TRANSITION"
)

// ErrInvalidCredentials is returned when the identity provider rejects an
// email/password pair.
var ErrInvalidCredentials = errors.New("invalid email or password", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(errors.CodeUnauthorized)

// ErrEmailInUse is returned when registration hits an existing account.
var ErrEmailInUse = errors.New("email already in use", errors.CategoryConflict).
	WithTextCode(TextCodeEmailInUse).
	WithCode(errors.CodeConflict)

// ErrWeakPassword is returned when the identity provider rejects a password.
var ErrWeakPassword = errors.New("password does not meet minimum strength", errors.CategoryValidation).
	WithTextCode(TextCodeWeakPassword).
	WithCode(errors.CodeBadRequest)

// ErrInvalidEmail is returned for malformed email addresses.
var ErrInvalidEmail = errors.New("invalid email address", errors.CategoryValidation).
	WithTextCode(TextCodeInvalidEmail).
	WithCode(errors.CodeBadRequest)

// ErrNoIdentity is returned by token operations when no user is signed in.
var ErrNoIdentity = errors.New("no active identity", errors.CategoryAuth).
	WithTextCode(TextCodeNoIdentity).
	WithCode(errors.CodeUnauthorized)

// ErrTokenRefreshFailed is terminal for the request batch that triggered the
// refresh; callers redirect to the login boundary.
var ErrTokenRefreshFailed = errors.New("token refresh failed", errors.CategoryAuth).
	WithTextCode(TextCodeRefreshFailed).
	WithCode(errors.CodeUnauthorized)

// ErrProfileUnavailable marks a failed profile fetch. It does not force a
// sign-out; the session degrades instead.
var ErrProfileUnavailable = errors.New("user profile unavailable", errors.CategoryOperation).
	WithTextCode(TextCodeProfileUnavailable).
	WithCode(errors.CodeInternal)

// ErrEmptyScanPayload rejects scan submissions with no QR payload.
var ErrEmptyScanPayload = errors.New("QR payload is required", errors.CategoryValidation).
	WithTextCode(TextCodeEmptyScanPayload).
	WithCode(errors.CodeBadRequest)

// ErrNoClassSelected rejects scan submissions without a class.
var ErrNoClassSelected = errors.New("no class selected", errors.CategoryValidation).
	WithTextCode(TextCodeNoClassSelected).
	WithCode(errors.CodeBadRequest)

// ErrClassNotAssigned is returned when selecting a class outside the caller's
// assigned set.
var ErrClassNotAssigned = errors.New("class is not assigned to the current user", errors.CategoryValidation).
	WithTextCode(TextCodeClassNotAssigned).
	WithCode(errors.CodeBadRequest)

// ErrDecoderActive is returned when a decode session is already open.
var ErrDecoderActive = errors.New("decoder session already active", errors.CategoryConflict).
	WithTextCode(TextCodeDecoderActive).
	WithCode(errors.CodeConflict)

// ErrDecoderUnavailable is returned when no QR decoder was configured.
var ErrDecoderUnavailable = errors.New("no QR decoder configured", errors.CategoryOperation).
	WithTextCode(TextCodeDecoderMissing).
	WithCode(errors.CodeInternal)

// ErrInvalidTransition is returned when a readiness change is not allowed.
var ErrInvalidTransition = errors.New("invalid readiness transition", errors.CategoryValidation).
	WithTextCode(TextCodeInvalidTransition).
	WithCode(errors.CodeBadRequest)

// IsCredentialError reports whether err is one of the credential failures
// surfaced verbatim to the initiating form.
func IsCredentialError(err error) bool {
	return errors.Is(err, ErrInvalidCredentials) ||
		errors.Is(err, ErrEmailInUse) ||
		errors.Is(err, ErrWeakPassword) ||
		errors.Is(err, ErrInvalidEmail)
}

// IsValidationError reports whether err was raised locally before any network
// call was made.
func IsValidationError(err error) bool {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		return false
	}
	return richErr.Category == errors.CategoryValidation
}

// IsTokenRefreshError reports whether err came from a failed single-flight
// refresh.
func IsTokenRefreshError(err error) bool {
	return errors.Is(err, ErrTokenRefreshFailed)
}
