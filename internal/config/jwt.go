package config

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

// DefaultIssuer is the iss claim of tokens minted by the service.
const DefaultIssuer = "cadlift"

// JWTConfig signs and checks the bearer tokens that identify job owners.
type JWTConfig struct {
	Secret          string
	ExpirationHours int
	Issuer          string
}

// NewJWTConfig reads JWT_SECRET (required), JWT_EXPIRATION_HOURS (24) and
// JWT_ISSUER (cadlift) from the environment.
func NewJWTConfig() (*JWTConfig, error) {
	v := viper.New()
	v.SetDefault("JWT_EXPIRATION_HOURS", "24")
	v.SetDefault("JWT_ISSUER", DefaultIssuer)
	v.AutomaticEnv()

	secret := v.GetString("JWT_SECRET")
	if secret == "" {
		return nil, errors.New("JWT_SECRET is required but not set")
	}
	hours, err := strconv.Atoi(v.GetString("JWT_EXPIRATION_HOURS"))
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_EXPIRATION_HOURS: %w", err)
	}
	if hours < 1 {
		return nil, fmt.Errorf("JWT_EXPIRATION_HOURS must be at least 1 hour, got: %d", hours)
	}
	return &JWTConfig{Secret: secret, ExpirationHours: hours, Issuer: v.GetString("JWT_ISSUER")}, nil
}

func (c *JWTConfig) Expiration() time.Duration {
	return time.Duration(c.ExpirationHours) * time.Hour
}
