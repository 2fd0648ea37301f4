// File: cmd/root_test.go
package cmd

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
}

func TestInitializeConfigDefaults(t *testing.T) {
	resetViper(t)

	cfg, err := initializeConfig()
	require.NoError(t, err)

	assert.Equal(t, "https://business.comcast.com", cfg.Portal.BaseURL)
	assert.Equal(t, "https://business-self-service-prod.codebig2.net", cfg.Billing.BaseURL)
	assert.Equal(t, "bills", cfg.Billing.OutputDir)
	assert.Equal(t, 3, cfg.Billing.MaxAttempts)
	assert.True(t, cfg.Browser.Headless)
}

func TestInitializeConfigEnvOverrides(t *testing.T) {
	resetViper(t)
	t.Setenv("BILLFETCH_BILLING_OUTPUT_DIR", "/tmp/statements")
	t.Setenv("BILLFETCH_BROWSER_HEADLESS", "false")

	cfg, err := initializeConfig()
	require.NoError(t, err)

	assert.Equal(t, "/tmp/statements", cfg.Billing.OutputDir)
	assert.False(t, cfg.Browser.Headless)
}

func TestInitializeConfigCredentialFallbackEnv(t *testing.T) {
	resetViper(t)
	t.Setenv("COMCAST_USERNAME", "legacy-user")
	t.Setenv("COMCAST_PASSWORD", "legacy-pass")

	cfg, err := initializeConfig()
	require.NoError(t, err)

	assert.Equal(t, "legacy-user", cfg.Portal.Username)
	assert.Equal(t, "legacy-pass", cfg.Portal.Password)
	assert.True(t, cfg.HasCredentials())
}

func TestBuildComponents(t *testing.T) {
	resetViper(t)

	cfg, err := initializeConfig()
	require.NoError(t, err)

	c, err := buildComponents(cfg, zap.NewNop())
	require.NoError(t, err)
	assert.NotNil(t, c.orchestrator)
}

func TestBuildComponentsRejectsBadProxy(t *testing.T) {
	resetViper(t)
	t.Setenv("BILLFETCH_PROXY_SERVER", "socks5://proxy:1080")

	cfg, err := initializeConfig()
	require.NoError(t, err)

	_, err = buildComponents(cfg, zap.NewNop())
	require.Error(t, err)
}
