package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_LocalAuth(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/tradequest")
	t.Setenv("AUTH_PROVIDER", "local")
	t.Setenv("AUTH_JWT_SECRET", "0123456789abcdef0123")
	t.Setenv("RATE_LIMIT_BURST", "10")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost/tradequest", cfg.DatabaseURL)
	assert.Equal(t, "local", cfg.Auth.Provider)
	assert.Equal(t, 10, cfg.RateLimit.Burst)
	assert.Equal(t, 5.0, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, "3333", cfg.Port)
	assert.False(t, cfg.S3.Enabled())
}

func TestLoad_ClerkRequiresSecret(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/tradequest")
	t.Setenv("AUTH_PROVIDER", "clerk")
	t.Setenv("CLERK_SECRET_KEY", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CLERK_SECRET_KEY")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name:    "missing database",
			cfg:     Config{Auth: AuthConfig{Provider: "clerk", ClerkSecretKey: "sk"}, RateLimit: RateLimitConfig{1, 1}},
			wantErr: true,
		},
		{
			name:    "short jwt secret",
			cfg:     Config{DatabaseURL: "x", Auth: AuthConfig{Provider: "local", JWTSecret: "short"}, RateLimit: RateLimitConfig{1, 1}},
			wantErr: true,
		},
		{
			name:    "unknown provider",
			cfg:     Config{DatabaseURL: "x", Auth: AuthConfig{Provider: "saml"}, RateLimit: RateLimitConfig{1, 1}},
			wantErr: true,
		},
		{
			name: "valid clerk",
			cfg:  Config{DatabaseURL: "x", Auth: AuthConfig{Provider: "clerk", ClerkSecretKey: "sk"}, RateLimit: RateLimitConfig{1, 1}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
