package config

import (
	"errors"
	"fmt"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"strings"
	"time"
)

const (
	// SessionPolicyWindow expires cached sessions after SessionLifetime
	SessionPolicyWindow = "window"

	// SessionPolicyInvalidate keeps cached sessions until the portal rejects them
	SessionPolicyInvalidate = "invalidate"
)

// Config represents the application configuration structure
type Config struct {
	Environment string `default:"prod"`
	LogLevel    string `split_words:"true"`

	ListenAddress  string   `split_words:"true" default:":5000"`
	AllowedOrigins []string `split_words:"true" default:"*"`

	EncryptionKey string `split_words:"true" default:"nic@impds#dedup05613"`

	PortalBaseURL   string        `split_words:"true" default:"https://impds.nic.in/impdsdeduplication"`
	PortalTimeout   time.Duration `split_words:"true" default:"30s"`
	PortalUserAgent string        `split_words:"true" default:"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36"`

	AcquirerInterpreter string        `split_words:"true" default:"python3"`
	AcquirerScript      string        `split_words:"true" default:"impds_auth.py"`
	AcquirerTimeout     time.Duration `split_words:"true" default:"30s"`

	SessionToken          string        `split_words:"true"`
	SessionPolicy         string        `split_words:"true" default:"window"`
	SessionLifetime       time.Duration `split_words:"true" default:"25m"`
	SessionWarmupRequired bool          `split_words:"true" default:"false"`

	ResultCacheTTL     time.Duration `envconfig:"RESULT_CACHE_TTL" default:"0"`
	RedisURL           string        `envconfig:"REDIS_URL"`
	PostgresDSN        string        `envconfig:"POSTGRES_DSN"`
	SearchLogRetention time.Duration `split_words:"true" default:"720h"`
	FingerprintKey     string        `split_words:"true"`

	OIDCIssuerURL string `envconfig:"OIDC_ISSUER_URL"`
	OIDCClientID  string `envconfig:"OIDC_CLIENT_ID"`
}

// LoadFromEnv loads a new configuration structure using environment variables and an optional .env file
func LoadFromEnv() (*Config, error) {
	// Load a .env file if it exists
	_ = godotenv.Overload()

	// Load a new configuration structure using environment variables
	config := new(Config)
	if err := envconfig.Process("impds", config); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks the configuration for contradicting or unusable values
func (config *Config) Validate() error {
	switch config.SessionPolicy {
	case SessionPolicyWindow:
		if config.SessionLifetime <= 0 {
			return errors.New("IMPDS_SESSION_LIFETIME must be positive for the 'window' session policy")
		}
	case SessionPolicyInvalidate:
	default:
		return fmt.Errorf("unknown session policy %q (expected %q or %q)", config.SessionPolicy, SessionPolicyWindow, SessionPolicyInvalidate)
	}
	if config.EncryptionKey == "" {
		return errors.New("IMPDS_ENCRYPTION_KEY must not be empty")
	}
	if config.AcquirerTimeout <= 0 {
		return errors.New("IMPDS_ACQUIRER_TIMEOUT must be positive")
	}
	if config.ResultCacheTTL < 0 {
		return errors.New("IMPDS_RESULT_CACHE_TTL must not be negative")
	}
	if config.OIDCIssuerURL != "" && config.OIDCClientID == "" {
		return errors.New("IMPDS_OIDC_CLIENT_ID is required if IMPDS_OIDC_ISSUER_URL is set")
	}
	return nil
}

// IsEnvProduction returns whether the application runs in a production environment
func (config *Config) IsEnvProduction() bool {
	return strings.ToLower(config.Environment) == "prod"
}

// EffectiveSessionLifetime returns the lifetime to apply to fresh sessions; zero means until invalidated
func (config *Config) EffectiveSessionLifetime() time.Duration {
	if config.SessionPolicy == SessionPolicyInvalidate {
		return 0
	}
	return config.SessionLifetime
}

// CacheEnabled returns whether successful search results should be cached
func (config *Config) CacheEnabled() bool {
	return config.ResultCacheTTL > 0
}
