package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJWTConfig(t *testing.T) {
	tests := []struct {
		name       string
		secret     string
		expiration string
		wantHours  int
		errMsg     string
	}{
		{name: "defaults", secret: "test-secret-key", wantHours: 24},
		{name: "custom expiration", secret: "s", expiration: "48", wantHours: 48},
		{name: "missing secret", errMsg: "JWT_SECRET is required"},
		{name: "non-numeric expiration", secret: "s", expiration: "abc", errMsg: "invalid JWT_EXPIRATION_HOURS"},
		{name: "zero expiration", secret: "s", expiration: "0", errMsg: "at least 1 hour"},
		{name: "negative expiration", secret: "s", expiration: "-5", errMsg: "at least 1 hour"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("JWT_SECRET", tt.secret)
			t.Setenv("JWT_EXPIRATION_HOURS", tt.expiration)
			t.Setenv("JWT_ISSUER", "")

			cfg, err := NewJWTConfig()
			if tt.errMsg != "" {
				assert.ErrorContains(t, err, tt.errMsg)
				assert.Nil(t, cfg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.secret, cfg.Secret)
			assert.Equal(t, tt.wantHours, cfg.ExpirationHours)
			assert.Equal(t, DefaultIssuer, cfg.Issuer)
			assert.Equal(t, time.Duration(tt.wantHours)*time.Hour, cfg.Expiration())
		})
	}
}

func TestNewJWTConfig_Issuer(t *testing.T) {
	t.Setenv("JWT_SECRET", "s")
	t.Setenv("JWT_ISSUER", "cadlift-staging")

	cfg, err := NewJWTConfig()
	require.NoError(t, err)
	assert.Equal(t, "cadlift-staging", cfg.Issuer)
}
