// Package sofa loads the SOFA macOS vulnerability feed and indexes it by OS
// product version.
package sofa

import (
	"fmt"
	"sort"
	"time"

	"github.com/hashicorp/go-version"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// -- Wire Shapes --

// rawFeed mirrors the published macos_data_feed.json document.
type rawFeed struct {
	UpdateHash string         `json:"UpdateHash"`
	OSVersions []rawOSVersion `json:"OSVersions"`
}

type rawOSVersion struct {
	OSVersion        string       `json:"OSVersion"`
	Latest           *rawRelease  `json:"Latest"`
	SecurityReleases []rawRelease `json:"SecurityReleases"`
}

type rawRelease struct {
	UpdateName            string          `json:"UpdateName"`
	ProductVersion        string          `json:"ProductVersion"`
	Build                 string          `json:"Build"`
	ReleaseDate           string          `json:"ReleaseDate"`
	ExpirationDate        string          `json:"ExpirationDate"`
	SecurityInfo          string          `json:"SecurityInfo"`
	SupportedDevices      []string        `json:"SupportedDevices"`
	CVEs                  map[string]bool `json:"CVEs"`
	ActivelyExploitedCVEs []string        `json:"ActivelyExploitedCVEs"`
	UniqueCVEsCount       int             `json:"UniqueCVEsCount"`
}

// -- Catalog --

// Release is one OS release in the catalog.
type Release struct {
	Version          string
	Build            string
	Name             string
	Track            string
	ReleaseDate      time.Time
	SecurityInfo     string
	SupportedDevices []string

	// CVEs maps a CVE id to its actively-exploited flag.
	CVEs                  map[string]bool
	ActivelyExploitedCVEs []string
	UniqueCVEsCount       int

	parsed *version.Version
}

// Feed is an immutable snapshot of the vulnerability catalog. A reload replaces the
// whole snapshot.
type Feed struct {
	UpdateHash string
	FetchedAt  time.Time

	releases map[string]Release
	// tracks holds each major track's releases, newest first.
	tracks map[string][]Release
}

// Parse decodes a feed document. Only syntax is checked; the feed's own aggregate
// counts are trusted.
func Parse(data []byte) (*Feed, error) {
	var raw rawFeed
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode feed: %w", err)
	}
	if raw.OSVersions == nil {
		return nil, fmt.Errorf("failed to decode feed: missing OSVersions")
	}

	f := &Feed{
		UpdateHash: raw.UpdateHash,
		releases:   make(map[string]Release),
		tracks:     make(map[string][]Release),
	}
	for _, osv := range raw.OSVersions {
		if osv.Latest != nil {
			f.add(*osv.Latest)
		}
		for _, rel := range osv.SecurityReleases {
			f.add(rel)
		}
	}
	for track := range f.tracks {
		rels := f.tracks[track]
		sort.SliceStable(rels, func(i, j int) bool {
			return rels[i].parsed.GreaterThan(rels[j].parsed)
		})
	}
	return f, nil
}

// add indexes a release. The first occurrence of a product version wins, so an
// OS entry's Latest block (which carries the build) shadows its duplicate in
// SecurityReleases.
func (f *Feed) add(raw rawRelease) {
	if raw.ProductVersion == "" {
		return
	}
	if _, exists := f.releases[raw.ProductVersion]; exists {
		return
	}
	rel := Release{
		Version:               raw.ProductVersion,
		Build:                 raw.Build,
		Name:                  raw.UpdateName,
		SecurityInfo:          raw.SecurityInfo,
		SupportedDevices:      raw.SupportedDevices,
		CVEs:                  raw.CVEs,
		ActivelyExploitedCVEs: raw.ActivelyExploitedCVEs,
		UniqueCVEsCount:       raw.UniqueCVEsCount,
	}
	if rel.CVEs == nil {
		rel.CVEs = map[string]bool{}
	}
	if ts, err := time.Parse(time.RFC3339, raw.ReleaseDate); err == nil {
		rel.ReleaseDate = ts
	}
	if v, err := version.NewVersion(raw.ProductVersion); err == nil {
		rel.parsed = v
		rel.Track = TrackOf(v)
		f.tracks[rel.Track] = append(f.tracks[rel.Track], rel)
	}
	f.releases[rel.Version] = rel
}

// TrackOf returns the major-version track of v ("14.2.1" -> "14").
func TrackOf(v *version.Version) string {
	segs := v.Segments()
	if len(segs) == 0 {
		return ""
	}
	return fmt.Sprintf("%d", segs[0])
}

// Release returns the catalog entry for an exact product version.
func (f *Feed) Release(productVersion string) (Release, bool) {
	if f == nil {
		return Release{}, false
	}
	rel, ok := f.releases[productVersion]
	return rel, ok
}

// Versions returns every catalog key, sorted lexically.
func (f *Feed) Versions() []string {
	if f == nil {
		return nil
	}
	out := make([]string, 0, len(f.releases))
	for v := range f.releases {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of catalog entries.
func (f *Feed) Len() int {
	if f == nil {
		return 0
	}
	return len(f.releases)
}

// Position locates productVersion within its major track. It reports the newest
// release of the track and how many catalog releases in that track are newer than
// productVersion. The version does not need to be in the catalog itself; one newer
// than every release of its track is its own latest. ok is false when the version
// does not parse or the feed knows nothing of its track.
func (f *Feed) Position(productVersion string) (latest Release, behind int, ok bool) {
	if f == nil {
		return Release{}, 0, false
	}
	v, err := version.NewVersion(productVersion)
	if err != nil {
		return Release{}, 0, false
	}
	track := TrackOf(v)
	rels := f.tracks[track]
	if len(rels) == 0 {
		return Release{}, 0, false
	}
	if v.GreaterThan(rels[0].parsed) {
		return Release{Version: productVersion, Track: track, parsed: v}, 0, true
	}
	for _, rel := range rels {
		if rel.parsed.GreaterThan(v) {
			behind++
		}
	}
	return rels[0], behind, true
}
