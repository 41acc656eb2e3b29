package jamf

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/jamf-mcp/api/schemas"
)

const historyXML = `<?xml version="1.0" encoding="UTF-8"?>
<computer_history>
  <general>
    <id>42</id>
    <name>Design-MBP-07</name>
    <serial_number>C02XK1JHJGH5</serial_number>
  </general>
  <computer_usage_logs>
    <usage_log>
      <event>login</event>
      <username>ada</username>
      <date_time>2024/03/31 at 9:02 AM</date_time>
    </usage_log>
  </computer_usage_logs>
  <audits/>
  <policy_logs>
    <policy_log>
      <policy_id>12</policy_id>
      <policy_name>Install Chrome</policy_name>
      <status>Completed</status>
    </policy_log>
    <policy_log>
      <policy_id>19</policy_id>
      <policy_name>Patch Zoom</policy_name>
      <status>Failed</status>
    </policy_log>
  </policy_logs>
  <commands>
    <completed>
      <command>
        <name>InstallProfile</name>
        <completed>2024/03/30 at 4:11 PM</completed>
      </command>
    </completed>
    <pending/>
    <failed>
      <size>1</size>
      <command>
        <name>DeviceLock</name>
        <status>Failed</status>
      </command>
    </failed>
  </commands>
</computer_history>`

func TestDecodeHistoryXML(t *testing.T) {
	rec, err := DecodeHistoryXML([]byte(historyXML))
	require.NoError(t, err)
	h := schemas.NewHistory(rec)

	name, _ := h.String("general", "serialNumber")
	assert.Equal(t, "C02XK1JHJGH5", name)

	logs := h.PolicyLogs()
	require.Len(t, logs, 2)
	status, _ := logs[1].String("status")
	assert.Equal(t, "Failed", status)
	id, _ := logs[0].Int("policyId")
	assert.Equal(t, 12, id)

	require.Len(t, h.UsageLogs(), 1, "a single usage log is still a list")
	user, _ := h.UsageLogs()[0].String("username")
	assert.Equal(t, "ada", user)

	require.Len(t, h.CompletedCommands(), 1)
	cmd, _ := h.CompletedCommands()[0].String("name")
	assert.Equal(t, "InstallProfile", cmd)
	require.Len(t, h.FailedCommands(), 1, "the size counter is not a record")
	assert.Empty(t, h.PendingCommands())
	assert.Empty(t, h.AuditLogs())
}

func TestDecodeHistoryXML_Errors(t *testing.T) {
	_, err := DecodeHistoryXML([]byte(`plain text, no elements`))
	assert.Error(t, err)

	_, err = DecodeHistoryXML([]byte(``))
	assert.Error(t, err)

	rec, err := DecodeHistoryXML([]byte(`<computer_history/>`))
	require.NoError(t, err)
	assert.True(t, schemas.NewHistory(rec).Empty())
}

func TestCamelKey(t *testing.T) {
	assert.Equal(t, "policyLogs", camelKey("policy_logs"))
	assert.Equal(t, "computerUsageLogs", camelKey("computer_usage_logs"))
	assert.Equal(t, "auditLogs", camelKey("audits"))
	assert.Equal(t, "general", camelKey("general"))
	assert.Equal(t, "dateTimeUtc", camelKey("date_time_utc"))
}

func TestComputerHistory(t *testing.T) {
	f := newFakeJamf(t)
	f.handlers[historyPath+"42"] = func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/xml", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "application/xml")
		_, _ = w.Write([]byte(historyXML))
	}
	c := f.client(t, basicCreds)

	h, err := c.ComputerHistory(context.Background(), 42)
	require.NoError(t, err)
	assert.Len(t, h.PolicyLogs(), 2)

	_, err = c.ComputerHistory(context.Background(), 7)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = c.ComputerHistory(context.Background(), 0)
	assert.Error(t, err)
}
