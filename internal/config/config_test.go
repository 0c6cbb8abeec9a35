package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_ENV", "missing")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:3000", cfg.Addr())
	assert.Equal(t, time.Second, cfg.AckTimeout())
	assert.Equal(t, 5*time.Second, cfg.AuthTimeout)
	assert.False(t, cfg.AllowUnauth)
	assert.False(t, cfg.AuthEnabled())
	assert.False(t, cfg.AckEnabled())
	assert.Empty(t, cfg.Origins())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CONFIG_ENV", "missing")
	t.Setenv("DEBUG", "true")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example,,")
	t.Setenv("AUTH_ENDPOINT", "http://auth.local/verify")
	t.Setenv("AUTH_COOKIE", "true")
	t.Setenv("ALLOW_UNAUTH", "true")
	t.Setenv("UNAUTH_FALLBACK", "true")
	t.Setenv("API_SECRET", "s3cret")
	t.Setenv("HOST", "0.0.0.0")
	t.Setenv("PORT", "8081")
	t.Setenv("ACK_ENDPOINT", "http://cb.local/acks")
	t.Setenv("ACK_TIMEOUT", "250")
	t.Setenv("AUTH_TIMEOUT", "2s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.Debug)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Origins())
	assert.Equal(t, "http://auth.local/verify", cfg.AuthEndpoint)
	assert.True(t, cfg.AuthCookie)
	assert.True(t, cfg.AllowUnauth)
	assert.True(t, cfg.UnauthFallback)
	assert.True(t, cfg.AuthEnabled())
	assert.True(t, cfg.AckEnabled())
	assert.Equal(t, "0.0.0.0:8081", cfg.Addr())
	assert.Equal(t, 250*time.Millisecond, cfg.AckTimeout())
	assert.Equal(t, 2*time.Second, cfg.AuthTimeout)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("CONFIG_ENV", "missing")
	t.Setenv("ACK_TIMEOUT", "0")

	_, err := Load()
	assert.Error(t, err)
}

func TestOriginAllowed(t *testing.T) {
	open := &Config{}
	assert.True(t, open.OriginAllowed("https://anything.example"))

	wildcard := &Config{CORSOrigins: "*"}
	assert.True(t, wildcard.OriginAllowed("https://anything.example"))

	listed := &Config{CORSOrigins: "https://a.example,https://b.example"}
	assert.True(t, listed.OriginAllowed("https://b.example"))
	assert.False(t, listed.OriginAllowed("https://c.example"))
	assert.False(t, listed.OriginAllowed(""))
}

func TestLoadShippedDevConfigKeepsAuthRequired(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir("../.."))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("CONFIG_ENV", "dev")
	t.Setenv("ALLOW_UNAUTH", "")
	t.Setenv("DEBUG", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.False(t, cfg.AllowUnauth)
	assert.False(t, cfg.Debug)
}
