// File: internal/config/config.go
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. JAMFMCP_MCP_ADDRESS.
const EnvPrefix = "JAMFMCP"

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Database() DatabaseConfig
	Jamf() JamfConfig
	Feed() FeedConfig
	MCP() MCPConfig

	SetMCPAddress(addr string)
	SetJamfURL(u string)
}

// Config holds the entire application configuration. Sections are reached
// through the Interface getters.
type Config struct {
	LoggerCfg   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	DatabaseCfg DatabaseConfig `mapstructure:"database" yaml:"database"`
	JamfCfg     JamfConfig     `mapstructure:"jamf" yaml:"jamf"`
	FeedCfg     FeedConfig     `mapstructure:"feed" yaml:"feed"`
	MCPCfg      MCPConfig      `mapstructure:"mcp" yaml:"mcp"`
}

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig     { return c.LoggerCfg }
func (c *Config) Database() DatabaseConfig { return c.DatabaseCfg }
func (c *Config) Jamf() JamfConfig         { return c.JamfCfg }
func (c *Config) Feed() FeedConfig         { return c.FeedCfg }
func (c *Config) MCP() MCPConfig           { return c.MCPCfg }

// --- Interface Method Implementations (Setters) ---

func (c *Config) SetMCPAddress(addr string) { c.MCPCfg.Address = addr }
func (c *Config) SetJamfURL(u string)       { c.JamfCfg.URL = u }

// LoggerConfig configures the zap logger and its optional rotating file sink.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig maps log levels to terminal color names.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// DatabaseConfig points at the optional scorecard history store. An empty URL
// disables persistence.
type DatabaseConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// Enabled reports whether a database URL is configured.
func (d DatabaseConfig) Enabled() bool { return strings.TrimSpace(d.URL) != "" }

// JamfConfig holds the Jamf Pro tenant and its API credentials.
type JamfConfig struct {
	URL               string  `mapstructure:"url" yaml:"url"`
	AuthType          string  `mapstructure:"auth_type" yaml:"auth_type"`
	Username          string  `mapstructure:"username" yaml:"username"`
	Password          string  `mapstructure:"password" yaml:"password"`
	ClientID          string  `mapstructure:"client_id" yaml:"client_id"`
	ClientSecret      string  `mapstructure:"client_secret" yaml:"client_secret"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second" yaml:"requests_per_second"`
}

// FeedConfig controls where the SOFA feed comes from and how long it is kept.
type FeedConfig struct {
	URL               string        `mapstructure:"url" yaml:"url"`
	CacheTTL          time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"`
	MaxStale          time.Duration `mapstructure:"max_stale" yaml:"max_stale"`
	Timeout           time.Duration `mapstructure:"timeout" yaml:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" yaml:"requests_per_second"`
}

// MCPConfig configures the tool server's HTTP listener.
type MCPConfig struct {
	Address        string        `mapstructure:"address" yaml:"address"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
}

// legacyEnv maps the environment variables used by existing client
// integrations onto config keys.
var legacyEnv = map[string]string{
	"jamf.url":           "JAMF_URL",
	"jamf.auth_type":     "JAMF_AUTH_TYPE",
	"jamf.username":      "JAMF_USERNAME",
	"jamf.password":      "JAMF_PASSWORD",
	"jamf.client_id":     "JAMF_CLIENT_ID",
	"jamf.client_secret": "JAMF_CLIENT_SECRET",
}

// NewDefaultConfig returns a Config populated only with defaults.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "jamf-mcp")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Jamf --
	v.SetDefault("jamf.auth_type", "basic")
	v.SetDefault("jamf.requests_per_second", 10.0)

	// -- Feed --
	v.SetDefault("feed.url", "https://sofafeed.macadmins.io/v1/macos_data_feed.json")
	v.SetDefault("feed.cache_ttl", "1h")
	v.SetDefault("feed.max_stale", "24h")
	v.SetDefault("feed.timeout", "30s")
	v.SetDefault("feed.requests_per_second", 1.0)

	// -- MCP --
	v.SetDefault("mcp.address", "127.0.0.1:8765")
	v.SetDefault("mcp.request_timeout", "60s")
}

// BindEnv wires the JAMFMCP_ prefix and the legacy JAMF_* variables into v.
func BindEnv(v *viper.Viper) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range legacyEnv {
		if err := v.BindEnv(key, EnvPrefix+"_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}
	return nil
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	if err := BindEnv(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	cfg.JamfCfg.AuthType = strings.ToLower(strings.TrimSpace(cfg.JamfCfg.AuthType))

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for sane values. Jamf credentials are
// checked separately by ValidateJamf because only commands that talk to Jamf
// Pro need them.
func (c *Config) Validate() error {
	var result *multierror.Error
	if c.FeedCfg.URL == "" {
		result = multierror.Append(result, fmt.Errorf("feed.url is required"))
	}
	if c.FeedCfg.CacheTTL <= 0 {
		result = multierror.Append(result, fmt.Errorf("feed.cache_ttl must be a positive duration"))
	}
	if c.FeedCfg.MaxStale < 0 {
		result = multierror.Append(result, fmt.Errorf("feed.max_stale must not be negative"))
	}
	if c.FeedCfg.Timeout <= 0 {
		result = multierror.Append(result, fmt.Errorf("feed.timeout must be a positive duration"))
	}
	if c.FeedCfg.RequestsPerSecond <= 0 {
		result = multierror.Append(result, fmt.Errorf("feed.requests_per_second must be positive"))
	}
	if c.JamfCfg.RequestsPerSecond <= 0 {
		result = multierror.Append(result, fmt.Errorf("jamf.requests_per_second must be positive"))
	}
	if c.MCPCfg.Address == "" {
		result = multierror.Append(result, fmt.Errorf("mcp.address is required"))
	}
	if c.MCPCfg.RequestTimeout <= 0 {
		result = multierror.Append(result, fmt.Errorf("mcp.request_timeout must be a positive duration"))
	}
	return result.ErrorOrNil()
}

// ValidateJamf checks the Jamf Pro URL and that the credentials required by
// the configured auth type are present.
func (j JamfConfig) ValidateJamf() error {
	var result *multierror.Error
	if j.URL == "" {
		result = multierror.Append(result, fmt.Errorf("jamf.url is required (or set JAMF_URL)"))
	} else if u, err := url.Parse(j.URL); err != nil || u.Host == "" || (u.Scheme != "https" && u.Scheme != "http") {
		result = multierror.Append(result, fmt.Errorf("jamf.url %q is not an http(s) URL", j.URL))
	}
	switch j.AuthType {
	case "basic":
		if j.Username == "" || j.Password == "" {
			result = multierror.Append(result, fmt.Errorf("jamf.username and jamf.password are required for basic auth"))
		}
	case "oauth":
		if j.ClientID == "" || j.ClientSecret == "" {
			result = multierror.Append(result, fmt.Errorf("jamf.client_id and jamf.client_secret are required for oauth"))
		}
	default:
		result = multierror.Append(result, fmt.Errorf("jamf.auth_type must be \"basic\" or \"oauth\", got %q", j.AuthType))
	}
	return result.ErrorOrNil()
}
