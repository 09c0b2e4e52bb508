package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_ReadsEnvironment(t *testing.T) {
	t.Setenv("BACKEND_API_URL", "https://api.example.com/v1/")
	t.Setenv("SESSION_TTL", "2h")
	t.Setenv("SESSION_COOKIE_SECURE", "off")
	t.Setenv("REDIS_URL", "redis://cache:6379")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://admin.example.com, https://vendor.example.com,")
	t.Setenv("KYC_POLICY_FILE", "/etc/portal/kyc.yaml")

	cfg := Load()

	assert.Equal(t, "https://api.example.com/v1", cfg.Backend.BaseURL)
	assert.Equal(t, 2*time.Hour, cfg.Session.TTL)
	assert.False(t, cfg.Session.Secure)
	assert.Equal(t, "cache:6379", cfg.Redis.URL)
	assert.Equal(t, []string{"https://admin.example.com", "https://vendor.example.com"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, "/etc/portal/kyc.yaml", cfg.KYC.PolicyFile)
}

func TestLoad_InvalidValuesFallBackToDefaults(t *testing.T) {
	t.Setenv("SESSION_TTL", "soon")
	t.Setenv("LOGIN_RATE_LIMIT", "many")

	cfg := Load()

	assert.Equal(t, 12*time.Hour, cfg.Session.TTL)
	assert.Equal(t, 10, cfg.RateLimit.LoginLimit)
}

func TestValidateCore(t *testing.T) {
	t.Setenv("SESSION_SECRET", "")
	t.Setenv("BACKEND_API_URL", "not a url")

	err := Load().ValidateCore()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SESSION_SECRET")
	assert.Contains(t, err.Error(), "BACKEND_API_URL")

	t.Setenv("SESSION_SECRET", "a-real-secret")
	t.Setenv("BACKEND_API_URL", "https://api.example.com")
	assert.NoError(t, Load().ValidateCore())
}
