// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	Portal  PortalConfig  `mapstructure:"portal" yaml:"portal"`
	Browser BrowserConfig `mapstructure:"browser" yaml:"browser"`
	Proxy   ProxyConfig   `mapstructure:"proxy" yaml:"proxy"`
	Billing BillingConfig `mapstructure:"billing" yaml:"billing"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// PortalConfig describes the account-management portal and the credentials
// used to sign in to it. Credentials are never read from the config file;
// they are bound to environment variables only (see NewConfigFromViper).
type PortalConfig struct {
	BaseURL  string `mapstructure:"base_url" yaml:"base_url"`
	Username string `mapstructure:"username" yaml:"-"`
	Password string `mapstructure:"password" yaml:"-"`

	// Settle intervals for the interactive login flow. The portal gives no
	// completion signal for its intermediate steps, so fixed waits bound them.
	TypeSettle    time.Duration `mapstructure:"type_settle" yaml:"type_settle"`
	SubmitSettle  time.Duration `mapstructure:"submit_settle" yaml:"submit_settle"`
	AccountSettle time.Duration `mapstructure:"account_settle" yaml:"account_settle"`

	// ConsentTimeout bounds how long to wait for the optional cookie-consent
	// prompt before concluding it is absent.
	ConsentTimeout time.Duration `mapstructure:"consent_timeout" yaml:"consent_timeout"`

	// BridgeTimeout bounds how long the run waits for the intercepted
	// navigation response after login.
	BridgeTimeout time.Duration `mapstructure:"bridge_timeout" yaml:"bridge_timeout"`
}

// BrowserConfig holds settings for the headless browser instance.
type BrowserConfig struct {
	Headless        bool     `mapstructure:"headless" yaml:"headless"`
	IgnoreTLSErrors bool     `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	ExecPath        string   `mapstructure:"exec_path" yaml:"exec_path"`
	Args            []string `mapstructure:"args" yaml:"args"`
}

// ProxyConfig defines the optional outbound proxy shared by the browser and
// the billing API client. An empty Server disables proxying entirely.
type ProxyConfig struct {
	Server   string `mapstructure:"server" yaml:"server"`
	Username string `mapstructure:"username" yaml:"-"`
	Password string `mapstructure:"password" yaml:"-"`
}

// BillingConfig tunes the out-of-band billing API calls.
type BillingConfig struct {
	BaseURL         string        `mapstructure:"base_url" yaml:"base_url"`
	OutputDir       string        `mapstructure:"output_dir" yaml:"output_dir"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	MaxAttempts     int           `mapstructure:"max_attempts" yaml:"max_attempts"`
	RetryDelay      time.Duration `mapstructure:"retry_delay" yaml:"retry_delay"`
	RateLimit       float64       `mapstructure:"rate_limit" yaml:"rate_limit"`
	IgnoreTLSErrors bool          `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "billfetch-cli")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Portal --
	v.SetDefault("portal.base_url", "https://business.comcast.com")
	v.SetDefault("portal.type_settle", "2s")
	v.SetDefault("portal.submit_settle", "10s")
	v.SetDefault("portal.account_settle", "10s")
	v.SetDefault("portal.consent_timeout", "2s")
	v.SetDefault("portal.bridge_timeout", "30s")

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.ignore_tls_errors", false)

	// -- Billing --
	v.SetDefault("billing.base_url", "https://business-self-service-prod.codebig2.net")
	v.SetDefault("billing.output_dir", "bills")
	v.SetDefault("billing.request_timeout", "30s")
	v.SetDefault("billing.max_attempts", 3)
	v.SetDefault("billing.retry_delay", "1s")
	v.SetDefault("billing.rate_limit", 2.0)
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	// Bind sensitive values to environment variables only. The secondary
	// names keep compatibility with deployments that predate the prefix.
	v.BindEnv("portal.username", "BILLFETCH_PORTAL_USERNAME", "COMCAST_USERNAME")
	v.BindEnv("portal.password", "BILLFETCH_PORTAL_PASSWORD", "COMCAST_PASSWORD")
	v.BindEnv("proxy.server", "BILLFETCH_PROXY_SERVER", "PROXY_SERVER")
	v.BindEnv("proxy.username", "BILLFETCH_PROXY_USERNAME", "PROXY_USERNAME")
	v.BindEnv("proxy.password", "BILLFETCH_PROXY_PASSWORD", "PROXY_PASSWORD")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// NewDefaultConfig creates a configuration struct populated with defaults.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Cannot happen with the defaults above.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// Validate checks the configuration for sane values. Credential presence is
// deliberately not checked here; the orchestrator reports it as a run-level
// configuration error so that commands like `version` still work.
func (c *Config) Validate() error {
	if c.Portal.BaseURL == "" {
		return fmt.Errorf("portal.base_url is a required configuration field")
	}
	if c.Billing.BaseURL == "" {
		return fmt.Errorf("billing.base_url is a required configuration field")
	}
	if c.Billing.OutputDir == "" {
		return fmt.Errorf("billing.output_dir is a required configuration field")
	}
	if c.Billing.MaxAttempts <= 0 {
		return fmt.Errorf("billing.max_attempts must be a positive integer")
	}
	if c.Billing.RetryDelay < 0 {
		return fmt.Errorf("billing.retry_delay must not be negative")
	}
	if c.Billing.RateLimit < 0 {
		return fmt.Errorf("billing.rate_limit must not be negative")
	}
	if c.Portal.BridgeTimeout <= 0 {
		return fmt.Errorf("portal.bridge_timeout must be a positive duration")
	}
	return nil
}

// HasCredentials reports whether both portal credentials are configured.
func (c *Config) HasCredentials() bool {
	return c.Portal.Username != "" && c.Portal.Password != ""
}
