package health

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/jamf-mcp/api/schemas"
	"github.com/xkilldash9x/jamf-mcp/internal/sofa"
)

var testNow = time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC)

// testFeedJSON is a small Sonoma track: 14.4 is current, 14.2 carries three
// actively exploited CVEs, and 14.1 has an exploited list that disagrees with its
// CVE map.
const testFeedJSON = `{
  "UpdateHash": "test",
  "OSVersions": [
    {
      "OSVersion": "Sonoma 14",
      "Latest": {
        "ProductVersion": "14.4",
        "Build": "23E214",
        "ReleaseDate": "2024-03-07T18:00:00Z",
        "CVEs": {},
        "ActivelyExploitedCVEs": [],
        "UniqueCVEsCount": 0
      },
      "SecurityReleases": [
        {
          "UpdateName": "macOS Sonoma 14.3",
          "ProductVersion": "14.3",
          "ReleaseDate": "2024-01-22T18:00:00Z",
          "CVEs": {"CVE-2024-23222": true, "CVE-2024-23203": false},
          "ActivelyExploitedCVEs": ["CVE-2024-23222"],
          "UniqueCVEsCount": 2
        },
        {
          "UpdateName": "macOS Sonoma 14.2",
          "ProductVersion": "14.2",
          "ReleaseDate": "2023-12-11T18:00:00Z",
          "CVEs": {
            "CVE-2023-42917": true,
            "CVE-2023-42916": true,
            "CVE-2023-42940": true,
            "CVE-2023-42890": false,
            "CVE-2023-42891": false
          },
          "ActivelyExploitedCVEs": ["CVE-2023-42917", "CVE-2023-42916", "CVE-2023-42940"],
          "UniqueCVEsCount": 5
        },
        {
          "UpdateName": "macOS Sonoma 14.1",
          "ProductVersion": "14.1",
          "ReleaseDate": "2023-10-25T17:00:00Z",
          "CVEs": {"CVE-2023-41974": true, "CVE-2023-41975": true, "CVE-2023-41976": false},
          "ActivelyExploitedCVEs": ["CVE-2023-41974"],
          "UniqueCVEsCount": 3
        }
      ]
    }
  ]
}`

func parseTestFeed() (*sofa.Feed, error) {
	return sofa.Parse([]byte(testFeedJSON))
}

func testFeed(t *testing.T) *sofa.Feed {
	t.Helper()
	feed, err := parseTestFeed()
	require.NoError(t, err)
	return feed
}

func decodeInventory(t *testing.T, doc string) schemas.Inventory {
	t.Helper()
	rec, err := schemas.DecodeRecord([]byte(doc))
	require.NoError(t, err)
	return schemas.NewInventory(rec)
}

// healthyInventoryJSON is a fully compliant device on the current release.
const healthyInventoryJSON = `{
  "id": "42",
  "general": {
    "name": "Design-MBP-07",
    "lastContactTime": "2024-04-01T08:30:00.000Z",
    "reportDate": "2024-03-31T08:30:00.000Z",
    "remoteManagement": {"managed": true},
    "supervised": true,
    "userApprovedMdm": true
  },
  "hardware": {
    "serialNumber": "C02XK1JHJGH5",
    "model": "MacBook Pro (14-inch, 2023)",
    "processorType": "Apple M3 Pro",
    "appleSilicon": true,
    "totalRamMegabytes": 36864,
    "batteryCapacityPercent": 97
  },
  "operatingSystem": {
    "name": "macOS",
    "version": "14.4",
    "build": "23E214",
    "fileVault2Status": "ALL_ENCRYPTED"
  },
  "security": {
    "sipStatus": "ENABLED",
    "gatekeeperStatus": "APP_STORE_AND_IDENTIFIED_DEVELOPERS",
    "firewallEnabled": true
  },
  "storage": {
    "disks": [
      {
        "device": "disk0",
        "partitions": [
          {"name": "Preboot", "partitionType": "OTHER", "sizeMegabytes": 500, "availableMegabytes": 100},
          {"name": "Macintosh HD", "partitionType": "BOOT", "sizeMegabytes": 1000000, "availableMegabytes": 800000, "fileVault2State": "VALID"}
        ]
      }
    ]
  }
}`

// unhealthyInventoryJSON has the firewall and FileVault off, 4% free disk and runs
// 14.2, two releases behind.
const unhealthyInventoryJSON = `{
  "id": "77",
  "general": {
    "name": "Sales-MBA-12",
    "lastContactTime": "2024-03-31T22:00:00Z",
    "remoteManagement": {"managed": true},
    "supervised": true,
    "userApprovedMdm": true
  },
  "hardware": {"serialNumber": "FVFXC2ABCDEF"},
  "operatingSystem": {
    "name": "macOS",
    "version": "14.2",
    "build": "23C64",
    "fileVault2Status": "NOT_ENCRYPTED"
  },
  "security": {
    "sipStatus": "ENABLED",
    "gatekeeperStatus": "ENABLED",
    "firewallEnabled": false
  },
  "storage": {
    "disks": [
      {"partitions": [{"name": "Macintosh HD", "partitionType": "BOOT", "sizeMegabytes": 250000, "availableMegabytes": 10000}]}
    ]
  }
}`

func float64Ptr(v float64) *float64 { return &v }

func intPtr(v int) *int { return &v }
