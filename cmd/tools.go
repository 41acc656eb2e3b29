package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/xkilldash9x/jamf-mcp/api/schemas"
	"github.com/xkilldash9x/jamf-mcp/internal/observability"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// errToolFailed marks a tool that ran but returned an error payload. The payload
// itself has already been printed.
var errToolFailed = errors.New("tool returned an error")

// toolRunner lets tests replace the Jamf Pro backed service.
type toolRunner interface {
	Call(ctx context.Context, name string, params map[string]interface{}) (interface{}, error)
}

// newToolRunner builds the runner for one-shot commands. The cleanup releases
// the database pool.
var newToolRunner = func(cmd *cobra.Command) (toolRunner, func(), error) {
	cfg, err := getConfigFromContext(cmd.Context())
	if err != nil {
		return nil, nil, err
	}
	components, err := initializeToolComponents(cmd.Context(), cfg, observability.GetLogger())
	if err != nil {
		return nil, nil, err
	}
	return components.Tools, components.Shutdown, nil
}

// runTool calls one tool and prints its result as indented JSON.
func runTool(cmd *cobra.Command, name string, params map[string]interface{}) error {
	runner, cleanup, err := newToolRunner(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := runner.Call(cmd.Context(), name, params)
	if err != nil {
		return err
	}
	if err := printJSON(cmd.OutOrStdout(), result); err != nil {
		return err
	}
	if payload, ok := result.(*schemas.ErrorPayload); ok {
		return fmt.Errorf("%w: %s", errToolFailed, payload.Kind)
	}
	return nil
}

func printJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func newScorecardCmd() *cobra.Command {
	var serial, email string

	scorecardCmd := &cobra.Command{
		Use:   "scorecard",
		Short: "Print the health scorecard of a computer",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if serial == "" && email == "" {
				return errors.New("one of --serial or --email is required")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			params := map[string]interface{}{"serial": serial}
			if email != "" {
				params["email_address"] = email
			}
			return runTool(cmd, "get_health_scorecard", params)
		},
	}

	scorecardCmd.Flags().StringVarP(&serial, "serial", "s", "", "computer serial number")
	scorecardCmd.Flags().StringVarP(&email, "email", "e", "", "find the computer by its assigned user's email address")
	scorecardCmd.MarkFlagsMutuallyExclusive("serial", "email")
	return scorecardCmd
}

func newDiagnosticsCmd() *cobra.Command {
	var serial string

	diagnosticsCmd := &cobra.Command{
		Use:   "diagnostics",
		Short: "Print the security, storage and management diagnostics of a computer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTool(cmd, "get_basic_diagnostics", map[string]interface{}{"serial": serial})
		},
	}

	diagnosticsCmd.Flags().StringVarP(&serial, "serial", "s", "", "computer serial number (required)")
	_ = diagnosticsCmd.MarkFlagRequired("serial")
	return diagnosticsCmd
}

func newCVEsCmd() *cobra.Command {
	var (
		serial  string
		details bool
	)

	cvesCmd := &cobra.Command{
		Use:   "cves",
		Short: "Print the CVE exposure of a computer's macOS version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTool(cmd, "get_cves", map[string]interface{}{
				"serial":               serial,
				"include_descriptions": details,
			})
		},
	}

	cvesCmd.Flags().StringVarP(&serial, "serial", "s", "", "computer serial number (required)")
	cvesCmd.Flags().BoolVar(&details, "details", false, "list individual CVE identifiers")
	_ = cvesCmd.MarkFlagRequired("serial")
	return cvesCmd
}

func newCallCmd() *cobra.Command {
	var rawParams string

	callCmd := &cobra.Command{
		Use:   "call <tool>",
		Short: "Call any tool by name with JSON parameters",
		Example: `  jamf-mcp call get_computer_history --params '{"computer_id": 42}'
  jamf-mcp call get_policies`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params := map[string]interface{}{}
			if strings.TrimSpace(rawParams) != "" {
				if err := json.Unmarshal([]byte(rawParams), &params); err != nil {
					return fmt.Errorf("--params must be a JSON object: %w", err)
				}
			}
			return runTool(cmd, args[0], params)
		},
	}

	callCmd.Flags().StringVarP(&rawParams, "params", "p", "", "tool parameters as a JSON object")
	return callCmd
}
