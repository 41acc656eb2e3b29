package cmd

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/jamf-mcp/internal/config"
	"github.com/xkilldash9x/jamf-mcp/internal/jamf"
	"github.com/xkilldash9x/jamf-mcp/internal/mcp"
	"github.com/xkilldash9x/jamf-mcp/internal/network"
	"github.com/xkilldash9x/jamf-mcp/internal/sofa"
	"github.com/xkilldash9x/jamf-mcp/internal/store"
)

// toolComponents holds everything a command needs to run tools.
type toolComponents struct {
	Jamf  *jamf.Client
	Feed  *sofa.Loader
	Store *store.Store
	Tools *mcp.ToolService

	closeStore func()
}

// Shutdown releases the database pool, if any.
func (tc *toolComponents) Shutdown() {
	if tc.closeStore != nil {
		tc.closeStore()
	}
}

// initializeToolComponents wires the Jamf Pro client, the feed loader and the
// optional scorecard store into a ToolService. An unreachable database disables
// scorecard history instead of failing the command.
func initializeToolComponents(ctx context.Context, cfg config.Interface, logger *zap.Logger) (*toolComponents, error) {
	jamfCfg := cfg.Jamf()
	if err := jamfCfg.ValidateJamf(); err != nil {
		return nil, fmt.Errorf("jamf configuration: %w", err)
	}

	httpClient := network.NewClient(nil)
	userAgent := "jamf-mcp/" + Version

	client, err := jamf.NewClient(jamf.Config{
		URL: jamfCfg.URL,
		Credentials: jamf.Credentials{
			AuthType:     jamf.AuthType(jamfCfg.AuthType),
			Username:     jamfCfg.Username,
			Password:     jamfCfg.Password,
			ClientID:     jamfCfg.ClientID,
			ClientSecret: jamfCfg.ClientSecret,
		},
		RequestsPerSecond: jamfCfg.RequestsPerSecond,
		UserAgent:         userAgent,
	}, httpClient, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create Jamf Pro client: %w", err)
	}

	feedCfg := cfg.Feed()
	loader := sofa.NewLoader(sofa.Config{
		URL:               feedCfg.URL,
		Timeout:           feedCfg.Timeout,
		CacheTTL:          feedCfg.CacheTTL,
		MaxStale:          feedCfg.MaxStale,
		RequestsPerSecond: feedCfg.RequestsPerSecond,
		UserAgent:         userAgent,
	}, httpClient, logger)

	tc := &toolComponents{Jamf: client, Feed: loader}

	var opts []mcp.ServiceOption
	if db := cfg.Database(); db.Enabled() {
		st, closeFn, err := store.Open(ctx, db.URL, logger)
		if err != nil {
			logger.Warn("Scorecard history disabled, database unavailable.", zap.Error(err))
		} else {
			tc.Store = st
			tc.closeStore = closeFn
			opts = append(opts, mcp.WithStore(st))
		}
	}

	tc.Tools = mcp.NewToolService(client, loader, logger, opts...)
	return tc, nil
}
