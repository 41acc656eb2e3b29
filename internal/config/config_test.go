// File: internal/config/config_test.go
package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -- Constructor and Defaults Tests --

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "info", cfg.Logger().Level)
	assert.Equal(t, "jamf-mcp", cfg.Logger().ServiceName)
	assert.Equal(t, "green", cfg.Logger().Colors.Info)
	assert.Equal(t, "basic", cfg.Jamf().AuthType)
	assert.Equal(t, 10.0, cfg.Jamf().RequestsPerSecond)
	assert.Equal(t, time.Hour, cfg.Feed().CacheTTL)
	assert.Equal(t, 24*time.Hour, cfg.Feed().MaxStale)
	assert.Equal(t, 30*time.Second, cfg.Feed().Timeout)
	assert.Equal(t, "127.0.0.1:8765", cfg.MCP().Address)
	assert.Equal(t, time.Minute, cfg.MCP().RequestTimeout)
	assert.False(t, cfg.Database().Enabled())

	assert.NoError(t, cfg.Validate(), "defaults must validate")
}

func TestSetters(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.SetMCPAddress(":9000")
	cfg.SetJamfURL("https://acme.jamfcloud.com")
	assert.Equal(t, ":9000", cfg.MCP().Address)
	assert.Equal(t, "https://acme.jamfcloud.com", cfg.Jamf().URL)
}

// -- Validation Logic Tests --

func TestConfigValidation(t *testing.T) {
	t.Run("accumulates every problem", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.FeedCfg.URL = ""
		cfg.FeedCfg.CacheTTL = 0
		cfg.MCPCfg.Address = ""

		err := cfg.Validate()
		require.Error(t, err)
		var merr *multierror.Error
		require.ErrorAs(t, err, &merr)
		assert.Len(t, merr.Errors, 3)
		assert.Contains(t, err.Error(), "feed.url is required")
		assert.Contains(t, err.Error(), "feed.cache_ttl must be a positive duration")
		assert.Contains(t, err.Error(), "mcp.address is required")
	})

	t.Run("rate limits must be positive", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.JamfCfg.RequestsPerSecond = 0
		cfg.FeedCfg.RequestsPerSecond = -1
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "jamf.requests_per_second must be positive")
		assert.Contains(t, err.Error(), "feed.requests_per_second must be positive")
	})
}

func TestValidateJamf(t *testing.T) {
	tests := []struct {
		name    string
		cfg     JamfConfig
		wantErr string
	}{
		{"basic ok", JamfConfig{URL: "https://acme.jamfcloud.com", AuthType: "basic", Username: "u", Password: "p"}, ""},
		{"oauth ok", JamfConfig{URL: "https://acme.jamfcloud.com", AuthType: "oauth", ClientID: "id", ClientSecret: "s"}, ""},
		{"missing url", JamfConfig{AuthType: "basic", Username: "u", Password: "p"}, "jamf.url is required"},
		{"bad url", JamfConfig{URL: "acme.jamfcloud.com", AuthType: "basic", Username: "u", Password: "p"}, "is not an http(s) URL"},
		{"basic missing password", JamfConfig{URL: "https://acme.jamfcloud.com", AuthType: "basic", Username: "u"}, "jamf.username and jamf.password"},
		{"oauth missing secret", JamfConfig{URL: "https://acme.jamfcloud.com", AuthType: "oauth", ClientID: "id"}, "jamf.client_id and jamf.client_secret"},
		{"unknown auth", JamfConfig{URL: "https://acme.jamfcloud.com", AuthType: "kerberos"}, "jamf.auth_type must be"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.ValidateJamf()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

// -- Viper Integration Tests --

func TestNewConfigFromViper_YAML(t *testing.T) {
	yaml := []byte(`
logger:
  level: debug
jamf:
  url: https://acme.jamfcloud.com
  auth_type: " OAuth "
  client_id: abc
  client_secret: xyz
feed:
  cache_ttl: 15m
mcp:
  address: 0.0.0.0:9100
database:
  url: postgres://jamf:pw@localhost/jamf_mcp
`)
	v := viper.New()
	SetDefaults(v)
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(bytes.NewReader(yaml)))

	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logger().Level)
	assert.Equal(t, "oauth", cfg.Jamf().AuthType, "auth type is normalized")
	assert.Equal(t, "abc", cfg.Jamf().ClientID)
	assert.Equal(t, 15*time.Minute, cfg.Feed().CacheTTL)
	assert.Equal(t, 24*time.Hour, cfg.Feed().MaxStale, "unset keys keep their defaults")
	assert.Equal(t, "0.0.0.0:9100", cfg.MCP().Address)
	assert.True(t, cfg.Database().Enabled())
	assert.NoError(t, cfg.Jamf().ValidateJamf())
}

func TestNewConfigFromViper_LegacyEnv(t *testing.T) {
	t.Setenv("JAMF_URL", "https://legacy.jamfcloud.com")
	t.Setenv("JAMF_AUTH_TYPE", "basic")
	t.Setenv("JAMF_USERNAME", "api-user")
	t.Setenv("JAMF_PASSWORD", "s3cret")

	v := viper.New()
	SetDefaults(v)
	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)
	assert.Equal(t, "https://legacy.jamfcloud.com", cfg.Jamf().URL)
	assert.Equal(t, "api-user", cfg.Jamf().Username)
	assert.Equal(t, "s3cret", cfg.Jamf().Password)
}

func TestNewConfigFromViper_PrefixedEnvWins(t *testing.T) {
	t.Setenv("JAMF_URL", "https://legacy.jamfcloud.com")
	t.Setenv("JAMFMCP_JAMF_URL", "https://prefixed.jamfcloud.com")
	t.Setenv("JAMFMCP_MCP_ADDRESS", ":7000")

	v := viper.New()
	SetDefaults(v)
	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)
	assert.Equal(t, "https://prefixed.jamfcloud.com", cfg.Jamf().URL)
	assert.Equal(t, ":7000", cfg.MCP().Address)
}

func TestNewConfigFromViper_Invalid(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("feed.cache_ttl", "0s")
	_, err := NewConfigFromViper(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}
