package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DB_CONNECTION_STRING", "postgres://localhost/meditation")
	t.Setenv("S3_URL", "http://localhost:9000")
	t.Setenv("S3_BUCKET", "media")
	t.Setenv("S3_ACCESS_KEY", "key")
	t.Setenv("S3_SECRET_KEY", "secret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "programs_changed", cfg.DBNotifyChannel)
	assert.Equal(t, int64(100), cfg.MaxVideoMB)
	assert.Equal(t, "http://localhost:9000/media", cfg.PublicObjectBaseURL())

	cfg.S3PublicURL = "https://cdn.example.com"
	assert.Equal(t, "https://cdn.example.com", cfg.PublicObjectBaseURL())
}

func TestValidateServer(t *testing.T) {
	cfg := &Config{}
	err := cfg.ValidateServer()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
	assert.Contains(t, err.Error(), "COOKIE_SECRET")

	cfg = &Config{
		JWTSecret:           "s",
		AdminEmail:          "admin@example.com",
		AdminPasswordSecret: "admin-hash",
		CookieSecret:        "0123456789abcdef0123456789abcdef",
	}
	assert.NoError(t, cfg.ValidateServer())
}
