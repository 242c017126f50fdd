package firebase

import (
	"net/http"
	"time"
)

const (
	defaultIdentityEndpoint = "https://identitytoolkit.googleapis.com/v1"
	defaultTokenEndpoint    = "https://securetoken.googleapis.com/v1"
	defaultTokenLeeway      = 30 * time.Second
	defaultTimeout          = 30 * time.Second
)

// Config holds Firebase Auth REST configuration.
type Config struct {
	// APIKey is the web API key of the Firebase project.
	APIKey string

	// IdentityEndpoint overrides the identitytoolkit base URL (optional;
	// used by tests and emulators).
	IdentityEndpoint string

	// TokenEndpoint overrides the securetoken base URL (optional).
	TokenEndpoint string

	// TokenLeeway is the remaining validity below which a cached token is
	// treated as expired. Default: 30 seconds.
	TokenLeeway time.Duration

	// HTTPClient overrides the client used for provider calls (optional).
	HTTPClient *http.Client
}

func (c Config) identityEndpoint() string {
	if c.IdentityEndpoint != "" {
		return c.IdentityEndpoint
	}
	return defaultIdentityEndpoint
}

func (c Config) tokenEndpoint() string {
	if c.TokenEndpoint != "" {
		return c.TokenEndpoint
	}
	return defaultTokenEndpoint
}

func (c Config) tokenLeeway() time.Duration {
	if c.TokenLeeway > 0 {
		return c.TokenLeeway
	}
	return defaultTokenLeeway
}

func (c Config) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: defaultTimeout}
}
