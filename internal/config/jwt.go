package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	// MinJWTSecretLength is the shortest accepted HS256 secret, in bytes.
	MinJWTSecretLength = 32
	// DefaultJWTIssuer is stamped into operator tokens and required on validation.
	DefaultJWTIssuer = "jobstage"
	// DefaultJWTExpirationHours is the token lifetime when JWT_EXPIRATION_HOURS is unset.
	DefaultJWTExpirationHours = 24
	// MaxJWTLeeway bounds the clock skew tolerated between token issuer and server.
	MaxJWTLeeway = 5 * time.Minute
)

// JWTConfig holds the signing settings for operator bearer tokens.
type JWTConfig struct {
	Secret          string
	ExpirationHours int
	// Issuer is written on issue and enforced on validation. Empty means DefaultJWTIssuer.
	Issuer string
	// Leeway is the clock skew accepted on exp and nbf.
	Leeway time.Duration
}

// NewJWTConfig reads the JWT settings from the process environment.
func NewJWTConfig() (*JWTConfig, error) {
	return LoadJWTConfig(os.LookupEnv)
}

// LoadJWTConfig reads JWT_SECRET (required), JWT_EXPIRATION_HOURS (default 24),
// JWT_ISSUER (default "jobstage") and JWT_LEEWAY (a duration, default 0)
// through lookup.
func LoadJWTConfig(lookup func(string) (string, bool)) (*JWTConfig, error) {
	cfg := &JWTConfig{
		ExpirationHours: DefaultJWTExpirationHours,
		Issuer:          DefaultJWTIssuer,
	}

	if v, ok := lookup("JWT_SECRET"); ok {
		cfg.Secret = v
	}
	if cfg.Secret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required but not set")
	}

	if v, ok := lookup("JWT_EXPIRATION_HOURS"); ok && v != "" {
		hours, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid JWT_EXPIRATION_HOURS: %v", err)
		}
		cfg.ExpirationHours = hours
	}

	if v, ok := lookup("JWT_ISSUER"); ok && strings.TrimSpace(v) != "" {
		cfg.Issuer = strings.TrimSpace(v)
	}

	if v, ok := lookup("JWT_LEEWAY"); ok && v != "" {
		leeway, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid JWT_LEEWAY: %v", err)
		}
		cfg.Leeway = leeway
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings.
func (c *JWTConfig) Validate() error {
	if len(c.Secret) < MinJWTSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d bytes, got %d", MinJWTSecretLength, len(c.Secret))
	}
	if c.ExpirationHours < 1 {
		return fmt.Errorf("JWT_EXPIRATION_HOURS must be at least 1 hour, got: %d", c.ExpirationHours)
	}
	if c.Leeway < 0 || c.Leeway > MaxJWTLeeway {
		return fmt.Errorf("JWT_LEEWAY must be between 0 and %s, got: %s", MaxJWTLeeway, c.Leeway)
	}
	return nil
}

// TokenIssuer returns the configured issuer, or DefaultJWTIssuer.
func (c *JWTConfig) TokenIssuer() string {
	if c.Issuer == "" {
		return DefaultJWTIssuer
	}
	return c.Issuer
}

// Lifetime is the validity window of an issued token.
func (c *JWTConfig) Lifetime() time.Duration {
	return time.Duration(c.ExpirationHours) * time.Hour
}
