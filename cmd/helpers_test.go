package cmd

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const (
	testSerial = "C02XK1JHJGH5"
	testEmail  = "ada@example.com"
)

const testInventory = `{
  "id": "42",
  "general": {
    "name": "Design-MBP-07",
    "lastContactTime": "%s",
    "remoteManagement": {"managed": true},
    "supervised": true,
    "userApprovedMdm": true
  },
  "hardware": {"serialNumber": "C02XK1JHJGH5"},
  "operatingSystem": {"name": "macOS", "version": "14.2.1", "build": "23C71", "fileVault2Status": "ALL_ENCRYPTED"},
  "security": {"sipStatus": "ENABLED", "gatekeeperStatus": "ENABLED", "firewallEnabled": true},
  "storage": {"disks": [{"partitions": [
    {"name": "Macintosh HD", "partitionType": "BOOT", "sizeMegabytes": 500000, "availableMegabytes": 250000}
  ]}]}
}`

const testHistoryXML = `<?xml version="1.0" encoding="UTF-8"?>
<computer_history>
  <general><id>42</id><serial_number>C02XK1JHJGH5</serial_number></general>
  <policy_logs>
    <policy_log><policy_id>1</policy_id><status>Completed</status></policy_log>
    <policy_log><policy_id>2</policy_id><status>Failed</status></policy_log>
  </policy_logs>
</computer_history>`

// newFakeTenant serves the Jamf Pro endpoints the tools use, accepting the
// basic credentials api-user/s3cret.
func newFakeTenant(t *testing.T) *httptest.Server {
	t.Helper()
	inventory := strings.Replace(testInventory, "%s", time.Now().UTC().Add(-2*time.Hour).Format(time.RFC3339), 1)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/auth/token", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "api-user" || pass != "s3cret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		expires := time.Now().Add(20 * time.Minute).UTC().Format(time.RFC3339)
		_, _ = w.Write([]byte(`{"token": "tok", "expires": "` + expires + `"}`))
	})
	mux.HandleFunc("/api/v1/computers-inventory", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.Query().Get("filter") {
		case `hardware.serialNumber=="` + testSerial + `"`:
			_, _ = w.Write([]byte(`{"totalCount": 1, "results": [` + inventory + `]}`))
		case `userAndLocation.email=="` + testEmail + `"`:
			_, _ = w.Write([]byte(`{"totalCount": 1, "results": [{"id": "42", "hardware": {"serialNumber": "` + testSerial + `"}}]}`))
		default:
			_, _ = w.Write([]byte(`{"totalCount": 0, "results": []}`))
		}
	})
	mux.HandleFunc("/JSSResource/computerhistory/id/42", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		_, _ = w.Write([]byte(testHistoryXML))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newFakeFeed(t *testing.T) *httptest.Server {
	t.Helper()
	data, err := os.ReadFile("../internal/sofa/testdata/macos_data_feed.json")
	require.NoError(t, err)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(data)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// withFakeBackends points the configuration at fake Jamf Pro and feed servers
// through the environment.
func withFakeBackends(t *testing.T) {
	t.Helper()
	tenant := newFakeTenant(t)
	feed := newFakeFeed(t)

	t.Chdir(t.TempDir())
	t.Setenv("JAMF_URL", tenant.URL)
	t.Setenv("JAMF_AUTH_TYPE", "basic")
	t.Setenv("JAMF_USERNAME", "api-user")
	t.Setenv("JAMF_PASSWORD", "s3cret")
	t.Setenv("JAMFMCP_FEED_URL", feed.URL)
	t.Setenv("JAMFMCP_LOGGER_LEVEL", "error")
	t.Setenv("JAMFMCP_DATABASE_URL", "")
}

// executeCommand runs a fresh root command and captures stdout and stderr.
func executeCommand(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	root := NewRootCommand()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err = root.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}
