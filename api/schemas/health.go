package schemas

import "time"

// -- Diagnostics --

// Toggle is the tri-state (plus progress) value of a boolean-ish device control.
type Toggle string

const (
	ToggleEnabled    Toggle = "enabled"
	ToggleDisabled   Toggle = "disabled"
	ToggleInProgress Toggle = "in_progress"
	ToggleUnknown    Toggle = "unknown"
)

// FreeSpaceStatus buckets the boot volume's free space.
type FreeSpaceStatus string

const (
	FreeSpaceOK       FreeSpaceStatus = "ok"
	FreeSpaceLow      FreeSpaceStatus = "low"
	FreeSpaceCritical FreeSpaceStatus = "critical"
	FreeSpaceUnknown  FreeSpaceStatus = "unknown"
)

// Diagnostics is the flat set of compliance-relevant indicators derived from one
// inventory record. Unknown states are explicit: Toggle values default to
// ToggleUnknown and optional numerics are nil.
type Diagnostics struct {
	ComputerID   string `json:"computer_id,omitempty"`
	ComputerName string `json:"computer_name,omitempty"`
	SerialNumber string `json:"serial_number,omitempty"`
	Model        string `json:"model,omitempty"`

	OSName    string `json:"os_name,omitempty"`
	OSVersion string `json:"os_version,omitempty"`
	OSBuild   string `json:"os_build,omitempty"`

	DiskEncryption Toggle `json:"disk_encryption"`
	FileVaultState string `json:"filevault_state,omitempty"`
	Firewall       Toggle `json:"firewall"`
	SIP            Toggle `json:"sip"`
	Gatekeeper     Toggle `json:"gatekeeper"`

	BootPartition      string          `json:"boot_partition,omitempty"`
	TotalMegabytes     *float64        `json:"total_megabytes,omitempty"`
	AvailableMegabytes *float64        `json:"available_megabytes,omitempty"`
	FreeSpacePercent   *float64        `json:"free_space_percent,omitempty"`
	FreeSpaceStatus    FreeSpaceStatus `json:"free_space_status"`

	Managed         Toggle `json:"managed"`
	Supervised      Toggle `json:"supervised"`
	UserApprovedMDM Toggle `json:"user_approved_mdm"`

	LastContact      *time.Time `json:"last_contact,omitempty"`
	DaysSinceContact *int       `json:"days_since_contact,omitempty"`

	LatestOSVersion  string `json:"latest_os_version,omitempty"`
	OSVersionsBehind *int   `json:"os_versions_behind,omitempty"`

	TotalRAMMegabytes      int    `json:"total_ram_megabytes,omitempty"`
	BatteryCapacityPercent *int   `json:"battery_capacity_percent,omitempty"`
	ProcessorType          string `json:"processor_type,omitempty"`
	AppleSilicon           Toggle `json:"apple_silicon"`
}

// -- CVE Analysis --

// CVEEntry is one CVE affecting a release.
type CVEEntry struct {
	ID                string `json:"id"`
	ActivelyExploited bool   `json:"actively_exploited"`
}

// CVEAnalysis is the result of matching one device's OS version against the feed.
type CVEAnalysis struct {
	OSVersion      string `json:"os_version"`
	OSBuild        string `json:"os_build,omitempty"`
	ReleaseBuild   string `json:"release_build,omitempty"`
	ReleaseDate    string `json:"release_date,omitempty"`
	TotalCVEs      int    `json:"total_cves_affecting"`
	ExploitedCount int    `json:"actively_exploited_cves_count"`

	// ExploitedCVEs and CVEs are only populated on request.
	ExploitedCVEs []string   `json:"actively_exploited_cves,omitempty"`
	CVEs          []CVEEntry `json:"cves,omitempty"`

	LatestVersion string   `json:"latest_version_in_track,omitempty"`
	IsLatest      bool     `json:"is_latest"`
	Consistent    bool     `json:"feed_consistent"`
	Warnings      []string `json:"warnings,omitempty"`
}

// -- Scorecard --

// Severity ranks a failed check. Higher rank sorts first.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Rank orders severities, critical highest.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	}
	return 0
}

// Category names a scorecard category.
type Category string

const (
	CategorySecurity      Category = "security"
	CategoryVulnerability Category = "vulnerability"
	CategoryCompliance    Category = "compliance"
	CategoryStorage       Category = "storage"
	CategoryCurrency      Category = "currency"
)

// CategoryStatus records whether a category contributed to the overall score.
type CategoryStatus string

const (
	StatusEvaluated   CategoryStatus = "evaluated"
	StatusUnavailable CategoryStatus = "unavailable"
)

// ScorecardStatus tells whether a scorecard carries a score.
type ScorecardStatus string

const (
	ScorecardScored           ScorecardStatus = "scored"
	ScorecardInsufficientData ScorecardStatus = "insufficient_data"
)

// Grade is the letter grade of a scorecard.
type Grade string

const (
	GradeA Grade = "A"
	GradeB Grade = "B"
	GradeC Grade = "C"
	GradeD Grade = "D"
	GradeF Grade = "F"
)

// Issue is one failed or penalised check.
type Issue struct {
	Check          string   `json:"check"`
	Category       Category `json:"category"`
	Severity       Severity `json:"severity"`
	Penalty        float64  `json:"penalty"`
	Recommendation string   `json:"recommendation"`
}

// CategoryScore is the result for one category. Score is nil when the category
// could not be evaluated.
type CategoryScore struct {
	Name   Category       `json:"name"`
	Weight float64        `json:"weight"`
	Status CategoryStatus `json:"status"`
	Score  *float64       `json:"score,omitempty"`
	Reason string         `json:"reason,omitempty"`
	Issues []Issue        `json:"issues,omitempty"`
}

// Scorecard is the composite health report for one device.
type Scorecard struct {
	SerialNumber string `json:"serial_number,omitempty"`
	ComputerName string `json:"computer_name,omitempty"`

	// With ScorecardInsufficientData no category was evaluated: OverallScore is
	// zero, Grade is empty and Reason says why.
	Status       ScorecardStatus `json:"status"`
	Reason       string          `json:"reason,omitempty"`
	OverallScore int             `json:"overall_score"`
	Grade        Grade           `json:"grade,omitempty"`

	Categories            []CategoryScore `json:"categories"`
	EvaluatedCategories   []Category      `json:"evaluated_categories"`
	UnavailableCategories []Category      `json:"unavailable_categories,omitempty"`

	Issues          []Issue  `json:"issues"`
	Recommendations []string `json:"recommendations"`

	Diagnostics Diagnostics  `json:"diagnostics"`
	CVEAnalysis *CVEAnalysis `json:"cve_analysis,omitempty"`

	GeneratedAt time.Time `json:"generated_at"`
}

// Category returns the named category result.
func (s Scorecard) Category(name Category) (CategoryScore, bool) {
	for _, c := range s.Categories {
		if c.Name == name {
			return c, true
		}
	}
	return CategoryScore{}, false
}
