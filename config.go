package checkin

import (
	"time"

	"github.com/caarlos0/env/v11"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/goliatone/go-errors"
)

// Config holds client options. The backend base URL comes from a single
// environment variable per deployment.
type Config struct {
	APIBaseURL     string        `env:"API_BASE_URL" envDefault:"http://localhost:3001/api"`
	RequestTimeout time.Duration `env:"API_REQUEST_TIMEOUT" envDefault:"30s"`
	// AlwaysFreshToken forces a token refresh on every outgoing request.
	// Disabling it reuses cached tokens while they keep TokenLeeway of
	// validity.
	AlwaysFreshToken bool          `env:"TOKEN_ALWAYS_FRESH" envDefault:"true"`
	TokenLeeway      time.Duration `env:"TOKEN_LEEWAY" envDefault:"30s"`
	// LoginPath is the boundary the application redirects to when a token
	// refresh fails.
	LoginPath string `env:"LOGIN_PATH" envDefault:"/login"`
}

// NewConfigFromEnv loads configuration from environment variables.
func NewConfigFromEnv() (*Config, error) {
	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to parse config from environment")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate will run validation rules
func (c Config) Validate() *errors.Error {
	return errors.ValidateWithOzzo(func() error {
		return validation.ValidateStruct(&c,
			validation.Field(&c.APIBaseURL, validation.Required, is.URL),
			validation.Field(&c.LoginPath, validation.Required),
		)
	}, "Invalid client configuration")
}

// Policy maps the tunable onto a transport token policy.
func (c Config) Policy() TokenPolicy {
	if c.AlwaysFreshToken {
		return TokenPolicyAlwaysFresh
	}
	return TokenPolicyReuseFresh
}
