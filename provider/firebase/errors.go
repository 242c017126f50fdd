package firebase

import (
	"strings"

	"github.com/classtrack/go-checkin"
	"github.com/goliatone/go-errors"
)

// normalizeAuthError maps Firebase REST error codes onto the checkin
// credential sentinels so forms can surface them verbatim.
func normalizeAuthError(code string, status int) error {
	base := strings.SplitN(code, " ", 2)[0]
	base = strings.TrimSuffix(base, ":")

	var sentinel *errors.Error
	switch base {
	case "EMAIL_EXISTS":
		sentinel = checkin.ErrEmailInUse
	case "INVALID_PASSWORD", "EMAIL_NOT_FOUND", "INVALID_LOGIN_CREDENTIALS", "USER_NOT_FOUND", "USER_DISABLED":
		sentinel = checkin.ErrInvalidCredentials
	case "WEAK_PASSWORD":
		sentinel = checkin.ErrWeakPassword
	case "INVALID_EMAIL", "MISSING_EMAIL":
		sentinel = checkin.ErrInvalidEmail
	default:
		return errors.New("identity provider request failed", errors.CategoryAuth).
			WithCode(status).
			WithMetadata(map[string]any{"code": code, "status": status})
	}

	clone := sentinel.Clone()
	if clone == nil {
		return sentinel
	}
	// The sentinel goes in Source so errors.Is reaches it through Unwrap.
	clone.Source = sentinel
	return clone.WithMetadata(map[string]any{"provider": "firebase", "code": code})
}
