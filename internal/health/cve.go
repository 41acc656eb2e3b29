package health

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/xkilldash9x/jamf-mcp/api/schemas"
	"github.com/xkilldash9x/jamf-mcp/internal/sofa"
)

// AnalyzeCVEs matches an OS version against the feed. It returns nil when the feed
// is nil or has no entry for exactly osVersion; callers that need to tell those
// apart check the feed themselves.
//
// The feed's aggregate counts are reported verbatim. When the per-CVE flags
// disagree with the exploited list, the disagreement is logged and flagged on the
// result but the aggregate counts still win.
func AnalyzeCVEs(feed *sofa.Feed, osVersion, osBuild string, includeDetails bool, log *zap.Logger) *schemas.CVEAnalysis {
	rel, ok := feed.Release(osVersion)
	if !ok {
		return nil
	}
	if log == nil {
		log = zap.NewNop()
	}

	out := &schemas.CVEAnalysis{
		OSVersion:      osVersion,
		OSBuild:        osBuild,
		ReleaseBuild:   rel.Build,
		TotalCVEs:      rel.UniqueCVEsCount,
		ExploitedCount: len(rel.ActivelyExploitedCVEs),
		Consistent:     true,
	}
	if !rel.ReleaseDate.IsZero() {
		out.ReleaseDate = rel.ReleaseDate.Format("2006-01-02")
	}

	if len(rel.CVEs) > 0 {
		flagged := 0
		for _, exploited := range rel.CVEs {
			if exploited {
				flagged++
			}
		}
		if flagged != out.ExploitedCount {
			msg := fmt.Sprintf("feed lists %d actively exploited CVEs for %s but flags %d in its CVE map",
				out.ExploitedCount, osVersion, flagged)
			log.Warn("Inconsistent vulnerability feed entry.",
				zap.String("os_version", osVersion),
				zap.Int("listed", out.ExploitedCount),
				zap.Int("flagged", flagged))
			out.Consistent = false
			out.Warnings = append(out.Warnings, msg)
		}
	}

	if includeDetails {
		out.ExploitedCVEs = append([]string{}, rel.ActivelyExploitedCVEs...)
		out.CVEs = make([]schemas.CVEEntry, 0, len(rel.CVEs))
		for id, exploited := range rel.CVEs {
			out.CVEs = append(out.CVEs, schemas.CVEEntry{ID: id, ActivelyExploited: exploited})
		}
		sort.Slice(out.CVEs, func(i, j int) bool { return out.CVEs[i].ID < out.CVEs[j].ID })
	}

	latest, behind, _ := feed.Position(osVersion)
	out.LatestVersion = latest.Version
	out.IsLatest = behind == 0 && (osBuild == "" || rel.Build == "" || osBuild == rel.Build)
	return out
}
