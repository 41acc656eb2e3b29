package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/jamf-mcp/internal/config"
	"github.com/xkilldash9x/jamf-mcp/internal/mcp"
	"github.com/xkilldash9x/jamf-mcp/internal/observability"
)

func newServeCmd() *cobra.Command {
	var address string

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the tool server",
		Long: `Serves the tools over HTTP (POST /api/v1/command) and a websocket stream
(/ws/v1/tools) until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := getConfigFromContext(cmd.Context())
			if err != nil {
				return err
			}
			if address != "" {
				cfg.SetMCPAddress(address)
			}
			return Serve(cmd.Context(), cfg, observability.GetLogger())
		},
	}

	serveCmd.Flags().StringVarP(&address, "address", "a", "", "listen address, overrides mcp.address")
	return serveCmd
}

// Serve builds the tool service from cfg and serves it until ctx is done.
func Serve(ctx context.Context, cfg config.Interface, logger *zap.Logger) error {
	components, err := initializeToolComponents(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer components.Shutdown()

	// Prime the feed cache in the background.
	go func() {
		if _, err := components.Feed.Load(ctx); err != nil {
			logger.Warn("Initial vulnerability feed load failed.", zap.Error(err))
		}
	}()

	server := mcp.NewServer(cfg, components.Tools, logger)
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("server stopped: %w", err)
	}
	return nil
}
