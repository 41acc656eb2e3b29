package cmd

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/jamf-mcp/internal/observability"
	"github.com/xkilldash9x/jamf-mcp/internal/setup"
)

// osExecutable is swapped in tests.
var osExecutable = os.Executable

func newSetupCmd() *cobra.Command {
	var (
		platform string
		opts     setup.Options
		dryRun   bool
	)

	setupCmd := &cobra.Command{
		Use:   "setup",
		Short: "Register the server with an AI client application",
		Long: `Writes a jamfmcp entry into the client's MCP configuration, merging with any
servers already configured. Jamf Pro settings default to the loaded configuration
(JAMF_URL, JAMF_AUTH_TYPE and the credential variables).`,
		Example: `  jamf-mcp setup --platform claude-desktop --url https://example.jamfcloud.com --username api --password ...
  jamf-mcp setup --platform cursor --auth-type oauth --client-id ... --client-secret ...
  jamf-mcp setup --platform mcp-json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := setup.ParsePlatform(platform)
			if err != nil {
				return err
			}
			cfg, err := getConfigFromContext(cmd.Context())
			if err != nil {
				return err
			}

			jamfCfg := cfg.Jamf()
			flags := cmd.Flags()
			if !flags.Changed("url") {
				opts.URL = jamfCfg.URL
			}
			if !flags.Changed("auth-type") {
				opts.AuthType = jamfCfg.AuthType
			}
			if !flags.Changed("username") {
				opts.Username = jamfCfg.Username
			}
			if !flags.Changed("password") {
				opts.Password = jamfCfg.Password
			}
			if !flags.Changed("client-id") {
				opts.ClientID = jamfCfg.ClientID
			}
			if !flags.Changed("client-secret") {
				opts.ClientSecret = jamfCfg.ClientSecret
			}
			if opts.Command == "" {
				if opts.Command, err = osExecutable(); err != nil {
					return fmt.Errorf("failed to locate the jamf-mcp binary: %w", err)
				}
			}
			opts.Args = []string{"serve"}

			if err := opts.Normalize(); err != nil {
				return err
			}

			w := &setup.Writer{
				Out:    cmd.OutOrStdout(),
				Logger: observability.GetLogger(),
				GOOS:   runtime.GOOS,
				DryRun: dryRun,
			}
			if _, err := w.Install(p, setup.NewEntry(opts)); err != nil {
				return err
			}
			if p != setup.MCPJSON && !dryRun {
				fmt.Fprintln(cmd.OutOrStdout(), "Restart the client application to load the jamfmcp tools.")
				fmt.Fprintln(cmd.ErrOrStderr(), "Warning: credentials are stored in plain text in the client configuration.")
			}
			return nil
		},
	}

	flags := setupCmd.Flags()
	flags.StringVarP(&platform, "platform", "p", "", "client application: "+strings.Join(setup.Platforms(), ", ")+" (required)")
	flags.StringVar(&opts.URL, "url", "", "Jamf Pro URL")
	flags.StringVar(&opts.AuthType, "auth-type", "", `"basic" or "oauth"`)
	flags.StringVar(&opts.Username, "username", "", "Jamf Pro username (basic auth)")
	flags.StringVar(&opts.Password, "password", "", "Jamf Pro password (basic auth)")
	flags.StringVar(&opts.ClientID, "client-id", "", "API client id (oauth)")
	flags.StringVar(&opts.ClientSecret, "client-secret", "", "API client secret (oauth)")
	flags.StringVar(&opts.Command, "command", "", "server binary to launch (default: this executable)")
	flags.BoolVar(&dryRun, "dry-run", false, "print the configuration instead of writing it")
	_ = setupCmd.MarkFlagRequired("platform")
	return setupCmd
}

func newValidateCmd() *cobra.Command {
	var platform string

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the jamfmcp entry of an AI client application",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := setup.ParsePlatform(platform)
			if err != nil {
				return err
			}
			if p == setup.MCPJSON {
				return errors.New("mcp-json has no configuration file to validate")
			}
			path, err := setup.ConfigPath(p, runtime.GOOS)
			if err != nil {
				return err
			}
			entry, err := setup.ReadEntry(path)
			if err != nil {
				return err
			}
			if err := entry.JamfConfig().ValidateJamf(); err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			if _, err := os.Stat(entry.Command); err != nil {
				return fmt.Errorf("%s: server command %q: %w", path, entry.Command, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: jamfmcp entry is valid (%s)\n", path, entry.Env["JAMF_URL"])
			return nil
		},
	}

	validateCmd.Flags().StringVarP(&platform, "platform", "p", "", "client application (required)")
	_ = validateCmd.MarkFlagRequired("platform")
	return validateCmd
}
