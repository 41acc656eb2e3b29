// Package setup writes the client-integration entry that lets an assistant
// application launch the tool server.
package setup

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/mitchellh/go-homedir"
	"go.uber.org/zap"

	"github.com/xkilldash9x/jamf-mcp/internal/config"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ServerName is the key of our entry under mcpServers.
const ServerName = "jamfmcp"

// Platform names a supported client application.
type Platform string

const (
	ClaudeDesktop Platform = "claude-desktop"
	Cursor        Platform = "cursor"
	// MCPJSON prints the entry instead of writing a file.
	MCPJSON Platform = "mcp-json"
)

var (
	ErrUnsupportedPlatform = errors.New("unsupported platform")
	// ErrNotConfigured means the client config has no entry for ServerName.
	ErrNotConfigured = errors.New("server is not configured")
)

// platformPaths maps a platform to its config file per GOOS. The "*" key
// applies to every GOOS.
var platformPaths = map[Platform]map[string]string{
	ClaudeDesktop: {
		"darwin": "~/Library/Application Support/Claude/claude_desktop_config.json",
		"linux":  "~/.config/Claude/claude_desktop_config.json",
	},
	Cursor: {"*": "~/.cursor/mcp.json"},
}

// Platforms returns the supported platform names, sorted.
func Platforms() []string {
	names := []string{string(MCPJSON)}
	for p := range platformPaths {
		names = append(names, string(p))
	}
	sort.Strings(names)
	return names
}

// ParsePlatform validates a platform name.
func ParsePlatform(name string) (Platform, error) {
	p := Platform(strings.ToLower(strings.TrimSpace(name)))
	if p == MCPJSON {
		return p, nil
	}
	if _, ok := platformPaths[p]; ok {
		return p, nil
	}
	return "", fmt.Errorf("%w %q (supported: %s)", ErrUnsupportedPlatform, name, strings.Join(Platforms(), ", "))
}

// ConfigPath returns the expanded config file of p on goos. MCPJSON has no file
// and returns "".
func ConfigPath(p Platform, goos string) (string, error) {
	if p == MCPJSON {
		return "", nil
	}
	paths, ok := platformPaths[p]
	if !ok {
		return "", fmt.Errorf("%w %q", ErrUnsupportedPlatform, p)
	}
	raw, ok := paths[goos]
	if !ok {
		if raw, ok = paths["*"]; !ok {
			return "", fmt.Errorf("%w: %s is not available on %s", ErrUnsupportedPlatform, p, goos)
		}
	}
	return homedir.Expand(raw)
}

// Options are the inputs of a generated entry.
type Options struct {
	// Command and Args launch the server.
	Command string
	Args    []string

	URL          string
	AuthType     string
	Username     string
	Password     string
	ClientID     string
	ClientSecret string
}

// Normalize trims the inputs, defaults the scheme to https and validates the
// credentials for the auth type.
func (o *Options) Normalize() error {
	o.URL = strings.TrimRight(strings.TrimSpace(o.URL), "/")
	if o.URL != "" && !strings.HasPrefix(o.URL, "http://") && !strings.HasPrefix(o.URL, "https://") {
		o.URL = "https://" + o.URL
	}
	o.AuthType = strings.ToLower(strings.TrimSpace(o.AuthType))
	if o.AuthType == "" {
		o.AuthType = "basic"
	}
	if o.Command == "" {
		return errors.New("server command is required")
	}
	return o.jamf().ValidateJamf()
}

func (o Options) jamf() config.JamfConfig {
	return config.JamfConfig{
		URL:          o.URL,
		AuthType:     o.AuthType,
		Username:     o.Username,
		Password:     o.Password,
		ClientID:     o.ClientID,
		ClientSecret: o.ClientSecret,
	}
}

// ServerEntry is one mcpServers entry.
type ServerEntry struct {
	Command string            `json:"command"`
	Args    []string          `json:"args"`
	Env     map[string]string `json:"env"`
}

// JamfConfig reads the Jamf Pro settings back out of the entry's environment.
func (e ServerEntry) JamfConfig() config.JamfConfig {
	authType := e.Env["JAMF_AUTH_TYPE"]
	if authType == "" {
		authType = "basic"
	}
	return config.JamfConfig{
		URL:          e.Env["JAMF_URL"],
		AuthType:     authType,
		Username:     e.Env["JAMF_USERNAME"],
		Password:     e.Env["JAMF_PASSWORD"],
		ClientID:     e.Env["JAMF_CLIENT_ID"],
		ClientSecret: e.Env["JAMF_CLIENT_SECRET"],
	}
}

// NewEntry builds the entry for normalized options. Only the credentials of the
// chosen auth type are written.
func NewEntry(o Options) ServerEntry {
	env := map[string]string{
		"JAMF_URL":       o.URL,
		"JAMF_AUTH_TYPE": o.AuthType,
	}
	if o.AuthType == "oauth" {
		env["JAMF_CLIENT_ID"] = o.ClientID
		env["JAMF_CLIENT_SECRET"] = o.ClientSecret
	} else {
		env["JAMF_USERNAME"] = o.Username
		env["JAMF_PASSWORD"] = o.Password
	}
	args := o.Args
	if args == nil {
		args = []string{}
	}
	return ServerEntry{Command: o.Command, Args: args, Env: env}
}

// Document wraps entry in a complete client config.
func Document(entry ServerEntry) map[string]interface{} {
	return map[string]interface{}{
		"mcpServers": map[string]interface{}{ServerName: entry},
	}
}

// Merge adds entry to an existing client config, keeping every other key and
// server. Empty or invalid input starts a new document; replaced reports that
// existing content was discarded.
func Merge(existing []byte, entry ServerEntry) (out []byte, replaced bool, err error) {
	doc := map[string]interface{}{}
	if len(strings.TrimSpace(string(existing))) > 0 {
		if err := json.Unmarshal(existing, &doc); err != nil || doc == nil {
			doc = map[string]interface{}{}
			replaced = true
		}
	}

	servers, ok := doc["mcpServers"].(map[string]interface{})
	if !ok {
		servers = map[string]interface{}{}
	}
	servers[ServerName] = entry
	doc["mcpServers"] = servers

	out, err = json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, replaced, fmt.Errorf("failed to encode client config: %w", err)
	}
	return append(out, '\n'), replaced, nil
}

// ReadEntry loads our entry from a client config file.
func ReadEntry(path string) (ServerEntry, error) {
	var entry ServerEntry
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return entry, fmt.Errorf("%w: %s does not exist", ErrNotConfigured, path)
		}
		return entry, err
	}
	var doc struct {
		MCPServers map[string]ServerEntry `json:"mcpServers"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return entry, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	entry, ok := doc.MCPServers[ServerName]
	if !ok {
		return entry, fmt.Errorf("%w in %s", ErrNotConfigured, path)
	}
	return entry, nil
}

// Writer installs entries for a platform.
type Writer struct {
	// Out receives mcp-json output, dry-run previews and status lines.
	Out    io.Writer
	Logger *zap.Logger
	// GOOS selects the platform path, runtime.GOOS when empty.
	GOOS   string
	DryRun bool
}

// Install writes entry for p and returns the file written, or "" when nothing
// was written.
func (w *Writer) Install(p Platform, entry ServerEntry) (string, error) {
	log := w.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("setup")

	if p == MCPJSON {
		return "", w.print(entry)
	}
	goos := w.GOOS
	if goos == "" {
		goos = runtime.GOOS
	}
	path, err := ConfigPath(p, goos)
	if err != nil {
		return "", err
	}
	if w.DryRun {
		fmt.Fprintf(w.Out, "Would write %s:\n", path)
		return "", w.print(Document(entry))
	}

	existing, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	out, replaced, err := Merge(existing, entry)
	if err != nil {
		return "", err
	}
	if replaced {
		log.Warn("Existing client config is not valid JSON, replacing it.", zap.String("path", path))
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
	}
	// The entry holds credentials.
	if err := os.WriteFile(path, out, 0o600); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	log.Info("Client config written.", zap.String("platform", string(p)), zap.String("path", path))
	fmt.Fprintf(w.Out, "Configuration written to %s\n", path)
	return path, nil
}

func (w *Writer) print(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w.Out, string(data))
	return err
}
