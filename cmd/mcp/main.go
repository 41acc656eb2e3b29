// File: cmd/mcp/main.go
// This is the main entrypoint for the standalone tool server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/viper"

	"github.com/xkilldash9x/jamf-mcp/cmd"
	"github.com/xkilldash9x/jamf-mcp/internal/config"
	"github.com/xkilldash9x/jamf-mcp/internal/observability"
)

func main() {
	// Default to localhost (127.0.0.1), as this is intended as a local bridge.
	host := flag.String("host", "127.0.0.1", "Host address for the server to listen on (use 0.0.0.0 for all interfaces)")
	port := flag.Int("port", 8765, "Port for the server to listen on")
	cfgFile := flag.String("config", "", "Optional YAML config file")
	flag.Parse()

	v := viper.New()
	config.SetDefaults(v)
	if *cfgFile != "" {
		v.SetConfigFile(*cfgFile)
		if err := v.ReadInConfig(); err != nil {
			log.Fatalf("Failed to read config file: %v", err)
		}
	}
	cfg, err := config.NewConfigFromViper(v)
	if err != nil {
		// The structured logger is not ready yet.
		log.Fatalf("Failed to load configuration: %v", err)
	}
	cfg.SetMCPAddress(fmt.Sprintf("%s:%d", *host, *port))

	observability.InitializeLogger(cfg.Logger())
	logger := observability.GetLogger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cmd.Serve(ctx, cfg, logger); err != nil {
		log.Printf("Server exited: %v", err)
		log.Println("Ensure JAMF_URL and the Jamf Pro credentials are set (JAMF_USERNAME/JAMF_PASSWORD or JAMF_CLIENT_ID/JAMF_CLIENT_SECRET).")
		stop()
		os.Exit(1)
	}
}
