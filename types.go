package checkin

import (
	"context"
	"fmt"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Identity holds the attributes of a signed-in identity-provider account.
type Identity interface {
	ID() string
	Email() string
	DisplayName() string
}

// AuthStateListener receives identity changes. A nil identity means the
// provider reports no signed-in user.
type AuthStateListener func(identity Identity)

// IdentityProvider is the external service issuing sign-in sessions and
// bearer tokens. Implementations wrap Firebase Auth or a compatible service.
type IdentityProvider interface {
	SignIn(ctx context.Context, email, password string) (Identity, error)
	SignUp(ctx context.Context, email, password string) (Identity, error)
	UpdateDisplayName(ctx context.Context, identity Identity, name string) error
	SignOut(ctx context.Context) error
	SendPasswordReset(ctx context.Context, email string) error

	// Subscribe registers a listener for auth-state changes and returns an
	// unsubscribe function. Implementations invoke the listener with the
	// current identity on registration.
	Subscribe(listener AuthStateListener) (unsubscribe func())

	TokenSource
}

// TokenSource mints a bearer token for the current identity. forceRefresh
// requests a fresh token instead of a cached one. Returns ErrNoIdentity when
// no user is signed in.
type TokenSource interface {
	Token(ctx context.Context, forceRefresh bool) (string, error)
}

// ProfileService maps identity-provider accounts to application profiles.
// The REST Client implements it against the attendance backend.
type ProfileService interface {
	ProfileByIdentity(ctx context.Context, identityID string) (*UserProfile, error)
	CreateProfile(ctx context.Context, in CreateProfileInput) (*UserProfile, error)
}

// AttendanceAPI is the backend surface the scan coordinator consumes.
type AttendanceAPI interface {
	MyClasses(ctx context.Context) ([]Class, error)
	SubmitScan(ctx context.Context, sub ScanSubmission) (*ScanResult, error)
	ClassQRCode(ctx context.Context, classID string) (*ClassQR, error)
}

// QRDecoder opens camera-backed decode sessions. The decoder is an external
// collaborator; only its lifecycle is modeled here.
type QRDecoder interface {
	// Open starts a decode session. onDecode is invoked for each decoded
	// string; the caller decides when to Close the session.
	Open(ctx context.Context, onDecode func(payload string)) (DecoderSession, error)
}

// DecoderSession is a live camera decode session scoped to one scan modal.
type DecoderSession interface {
	Close() error
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] CHECKIN "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] CHECKIN "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] CHECKIN "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] CHECKIN "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
