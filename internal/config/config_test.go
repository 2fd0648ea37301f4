// File: internal/config/config_test.go
package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "https://business.comcast.com", cfg.Portal.BaseURL)
	assert.Equal(t, 2*time.Second, cfg.Portal.TypeSettle)
	assert.Equal(t, 10*time.Second, cfg.Portal.SubmitSettle)
	assert.Equal(t, 10*time.Second, cfg.Portal.AccountSettle)
	assert.Equal(t, 2*time.Second, cfg.Portal.ConsentTimeout)
	assert.Equal(t, 30*time.Second, cfg.Portal.BridgeTimeout)

	assert.Equal(t, "bills", cfg.Billing.OutputDir)
	assert.Equal(t, 3, cfg.Billing.MaxAttempts)
	assert.Equal(t, time.Second, cfg.Billing.RetryDelay)
	assert.InDelta(t, 2.0, cfg.Billing.RateLimit, 0.001)

	assert.True(t, cfg.Browser.Headless)
	assert.Empty(t, cfg.Proxy.Server)

	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty portal base url", func(c *Config) { c.Portal.BaseURL = "" }},
		{"empty billing base url", func(c *Config) { c.Billing.BaseURL = "" }},
		{"empty output dir", func(c *Config) { c.Billing.OutputDir = "" }},
		{"zero max attempts", func(c *Config) { c.Billing.MaxAttempts = 0 }},
		{"negative retry delay", func(c *Config) { c.Billing.RetryDelay = -time.Second }},
		{"negative rate limit", func(c *Config) { c.Billing.RateLimit = -1 }},
		{"zero bridge timeout", func(c *Config) { c.Portal.BridgeTimeout = 0 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestHasCredentials(t *testing.T) {
	cfg := NewDefaultConfig()
	assert.False(t, cfg.HasCredentials())

	cfg.Portal.Username = "user"
	assert.False(t, cfg.HasCredentials())

	cfg.Portal.Password = "pass"
	assert.True(t, cfg.HasCredentials())
}

func TestNewConfigFromViperBindsCredentialEnv(t *testing.T) {
	t.Setenv("BILLFETCH_PORTAL_USERNAME", "env-user")
	t.Setenv("BILLFETCH_PORTAL_PASSWORD", "env-pass")

	v := viper.New()
	SetDefaults(v)

	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)
	assert.Equal(t, "env-user", cfg.Portal.Username)
	assert.Equal(t, "env-pass", cfg.Portal.Password)
}

func TestNewConfigFromViperProxyEnv(t *testing.T) {
	t.Setenv("BILLFETCH_PROXY_SERVER", "proxy.example.com:8080")
	t.Setenv("BILLFETCH_PROXY_USERNAME", "puser")

	v := viper.New()
	SetDefaults(v)

	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)
	assert.Equal(t, "proxy.example.com:8080", cfg.Proxy.Server)
	assert.Equal(t, "puser", cfg.Proxy.Username)
}
