package health

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/jamf-mcp/api/schemas"
	"github.com/xkilldash9x/jamf-mcp/internal/sofa"
)

func TestAnalyzeCVEs_AbsentVersion(t *testing.T) {
	feed := testFeed(t)
	for _, v := range []string{"14.5", "14", "14.2.0", "13.6.4", "", "Sonoma"} {
		assert.Nil(t, AnalyzeCVEs(feed, v, "", true, nil), v)
	}
	assert.Nil(t, AnalyzeCVEs(nil, "14.2", "", false, nil), "nil feed")
}

func TestAnalyzeCVEs_CountsMatchFeedVerbatim(t *testing.T) {
	data, err := os.ReadFile("../sofa/testdata/macos_data_feed.json")
	require.NoError(t, err)
	feed, err := sofa.Parse(data)
	require.NoError(t, err)

	for _, v := range feed.Versions() {
		rel, ok := feed.Release(v)
		require.True(t, ok)

		got := AnalyzeCVEs(feed, v, "", false, nil)
		require.NotNil(t, got, "every catalog key must analyze: %s", v)
		assert.Equal(t, rel.UniqueCVEsCount, got.TotalCVEs, v)
		assert.Equal(t, len(rel.ActivelyExploitedCVEs), got.ExploitedCount, v)
	}
}

func TestAnalyzeCVEs_Details(t *testing.T) {
	feed := testFeed(t)

	summary := AnalyzeCVEs(feed, "14.2", "23C64", false, nil)
	require.NotNil(t, summary)
	assert.Nil(t, summary.CVEs)
	assert.Nil(t, summary.ExploitedCVEs)

	detailed := AnalyzeCVEs(feed, "14.2", "23C64", true, nil)
	require.NotNil(t, detailed)
	assert.Equal(t, 5, detailed.TotalCVEs)
	assert.Equal(t, 3, detailed.ExploitedCount)
	assert.True(t, detailed.Consistent)
	assert.Empty(t, detailed.Warnings)
	assert.Equal(t, "2023-12-11", detailed.ReleaseDate)
	assert.Equal(t, []string{"CVE-2023-42917", "CVE-2023-42916", "CVE-2023-42940"}, detailed.ExploitedCVEs)
	assert.Equal(t, []schemas.CVEEntry{
		{ID: "CVE-2023-42890"},
		{ID: "CVE-2023-42891"},
		{ID: "CVE-2023-42916", ActivelyExploited: true},
		{ID: "CVE-2023-42917", ActivelyExploited: true},
		{ID: "CVE-2023-42940", ActivelyExploited: true},
	}, detailed.CVEs)
}

func TestAnalyzeCVEs_Freshness(t *testing.T) {
	feed := testFeed(t)

	behind := AnalyzeCVEs(feed, "14.2", "23C64", false, nil)
	assert.False(t, behind.IsLatest)
	assert.Equal(t, "14.4", behind.LatestVersion)

	current := AnalyzeCVEs(feed, "14.4", "23E214", false, nil)
	assert.True(t, current.IsLatest)
	assert.Equal(t, "23E214", current.ReleaseBuild)

	noBuild := AnalyzeCVEs(feed, "14.4", "", false, nil)
	assert.True(t, noBuild.IsLatest)

	// Same marketing version, different build: a rapid security response or a
	// forked build is not the published release.
	otherBuild := AnalyzeCVEs(feed, "14.4", "23E224", false, nil)
	assert.False(t, otherBuild.IsLatest)
}

func TestAnalyzeCVEs_InconsistentFeedEntry(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	got := AnalyzeCVEs(testFeed(t), "14.1", "", false, zap.New(core))
	require.NotNil(t, got)

	// The exploited list wins over the per-CVE flags.
	assert.Equal(t, 1, got.ExploitedCount)
	assert.Equal(t, 3, got.TotalCVEs)
	assert.False(t, got.Consistent)
	require.Len(t, got.Warnings, 1)
	assert.Contains(t, got.Warnings[0], "14.1")

	entries := logs.FilterMessage("Inconsistent vulnerability feed entry.").All()
	require.Len(t, entries, 1)
	assert.Equal(t, int64(1), entries[0].ContextMap()["listed"])
	assert.Equal(t, int64(2), entries[0].ContextMap()["flagged"])
}

func TestAnalyzeCVEs_EmptyCVEMapSkipsCrossCheck(t *testing.T) {
	feed, err := sofa.Parse([]byte(`{"OSVersions": [{"Latest": {
		"ProductVersion": "15.0", "CVEs": {}, "ActivelyExploitedCVEs": ["CVE-2024-0001"], "UniqueCVEsCount": 1}}]}`))
	require.NoError(t, err)

	got := AnalyzeCVEs(feed, "15.0", "", true, nil)
	require.NotNil(t, got)
	assert.True(t, got.Consistent)
	assert.Equal(t, 1, got.ExploitedCount)
	assert.Empty(t, got.CVEs)
}
