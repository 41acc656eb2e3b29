package health

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/xkilldash9x/jamf-mcp/api/schemas"
)

// Category weights. They sum to 1.0; unavailable categories drop out and the
// remaining weights are re-normalised.
const (
	WeightSecurity      = 0.30
	WeightVulnerability = 0.20
	WeightCompliance    = 0.15
	WeightStorage       = 0.15
	WeightCurrency      = 0.20
)

// Security penalties.
const (
	PenaltyFirewallDisabled     = 30.0
	PenaltyEncryptionDisabled   = 35.0
	PenaltyEncryptionInProgress = 10.0
	PenaltySIPDisabled          = 20.0
	PenaltyGatekeeperDisabled   = 15.0
)

// Vulnerability penalties.
const (
	PenaltyPerExploitedCVE = 25.0
	PenaltyPerOtherCVE     = 1.0
	MaxOtherCVEPenalty     = 20.0
)

// Compliance penalties.
const (
	PenaltyUnmanaged         = 25.0
	PenaltyNoUserApprovedMDM = 20.0
	PenaltyUnsupervised      = 10.0
	PenaltyPerFailedPolicy   = 5.0
	MaxFailedPolicyPenalty   = 25.0
	PenaltyPerFailedCommand  = 5.0
	MaxFailedCommandPenalty  = 15.0
)

// Storage scoring. Between the two thresholds the score runs linearly from
// StorageLowFloorScore up to 100.
const StorageLowFloorScore = 50.0

// Currency penalties.
const (
	PenaltyPerVersionBehind    = 15.0
	MaxVersionsBehindPenalty   = 60.0
	HighSeverityVersionsBehind = 3

	StaleContactDays        = 7
	PenaltyStaleContact     = 10.0
	VeryStaleContactDays    = 30
	PenaltyVeryStaleContact = 30.0
)

// ReasonInsufficientData is the scorecard reason when no category could be
// evaluated.
const ReasonInsufficientData = "no category had enough data to score"

// Grade cutoffs over the overall score.
const (
	GradeACutoff = 90.0
	GradeBCutoff = 80.0
	GradeCCutoff = 70.0
	GradeDCutoff = 60.0
)

// Categories lists every category in declaration order, which is also the
// tie-break order for issues of equal severity.
var Categories = []schemas.Category{
	schemas.CategorySecurity,
	schemas.CategoryVulnerability,
	schemas.CategoryCompliance,
	schemas.CategoryStorage,
	schemas.CategoryCurrency,
}

// Weights maps each category to its weight.
var Weights = map[schemas.Category]float64{
	schemas.CategorySecurity:      WeightSecurity,
	schemas.CategoryVulnerability: WeightVulnerability,
	schemas.CategoryCompliance:    WeightCompliance,
	schemas.CategoryStorage:       WeightStorage,
	schemas.CategoryCurrency:      WeightCurrency,
}

// GradeFor maps a score onto a letter grade. The cutoffs are inclusive lower
// bounds, so 90 is an A and 89.9 a B.
func GradeFor(score float64) schemas.Grade {
	switch {
	case score >= GradeACutoff:
		return schemas.GradeA
	case score >= GradeBCutoff:
		return schemas.GradeB
	case score >= GradeCCutoff:
		return schemas.GradeC
	case score >= GradeDCutoff:
		return schemas.GradeD
	default:
		return schemas.GradeF
	}
}

// Score builds a scorecard from diagnostics, an optional CVE analysis and an
// optional history. GeneratedAt is left for the caller to stamp.
func Score(d schemas.Diagnostics, cve *schemas.CVEAnalysis, history *schemas.History) schemas.Scorecard {
	card := schemas.Scorecard{
		SerialNumber: d.SerialNumber,
		ComputerName: d.ComputerName,
		Diagnostics:  d,
		CVEAnalysis:  cve,
	}

	card.Categories = []schemas.CategoryScore{
		scoreSecurity(d),
		scoreVulnerability(cve),
		scoreCompliance(d, history),
		scoreStorage(d),
		scoreCurrency(d),
	}

	var weighted, weights float64
	for _, c := range card.Categories {
		if c.Status != schemas.StatusEvaluated {
			card.UnavailableCategories = append(card.UnavailableCategories, c.Name)
			continue
		}
		card.EvaluatedCategories = append(card.EvaluatedCategories, c.Name)
		weighted += *c.Score * c.Weight
		weights += c.Weight
		card.Issues = append(card.Issues, c.Issues...)
	}
	if weights > 0 {
		card.Status = schemas.ScorecardScored
		card.OverallScore = int(math.Round(weighted / weights))
		card.Grade = GradeFor(float64(card.OverallScore))
	} else {
		card.Status = schemas.ScorecardInsufficientData
		card.Reason = ReasonInsufficientData
	}

	// Issues were appended in category then check order, so a stable sort on
	// severity alone preserves both tie-breaks.
	sort.SliceStable(card.Issues, func(i, j int) bool {
		return card.Issues[i].Severity.Rank() > card.Issues[j].Severity.Rank()
	})
	if card.Issues == nil {
		card.Issues = []schemas.Issue{}
	}
	card.Recommendations = make([]string, 0, len(card.Issues))
	for _, issue := range card.Issues {
		card.Recommendations = append(card.Recommendations, issue.Recommendation)
	}
	return card
}

// tally accumulates penalties for one category.
type tally struct {
	name   schemas.Category
	score  float64
	issues []schemas.Issue
}

func newTally(name schemas.Category) *tally {
	return &tally{name: name, score: 100}
}

func (t *tally) penalize(check string, sev schemas.Severity, penalty float64, rec string) {
	if penalty <= 0 {
		return
	}
	t.score -= penalty
	t.issues = append(t.issues, schemas.Issue{
		Check:          check,
		Category:       t.name,
		Severity:       sev,
		Penalty:        penalty,
		Recommendation: rec,
	})
}

func (t *tally) result() schemas.CategoryScore {
	score := math.Max(0, math.Min(100, t.score))
	return schemas.CategoryScore{
		Name:   t.name,
		Weight: Weights[t.name],
		Status: schemas.StatusEvaluated,
		Score:  &score,
		Issues: t.issues,
	}
}

func unavailable(name schemas.Category, reason string) schemas.CategoryScore {
	return schemas.CategoryScore{
		Name:   name,
		Weight: Weights[name],
		Status: schemas.StatusUnavailable,
		Reason: reason,
	}
}

func scoreSecurity(d schemas.Diagnostics) schemas.CategoryScore {
	known := false
	for _, v := range []schemas.Toggle{d.Firewall, d.DiskEncryption, d.SIP, d.Gatekeeper} {
		if v != "" && v != schemas.ToggleUnknown {
			known = true
			break
		}
	}
	if !known {
		return unavailable(schemas.CategorySecurity, "firewall, encryption, SIP and Gatekeeper state unknown")
	}
	t := newTally(schemas.CategorySecurity)
	if d.Firewall == schemas.ToggleDisabled {
		t.penalize("firewall", schemas.SeverityHigh, PenaltyFirewallDisabled,
			"Enable the macOS application firewall.")
	}
	switch d.DiskEncryption {
	case schemas.ToggleDisabled:
		t.penalize("disk_encryption", schemas.SeverityCritical, PenaltyEncryptionDisabled,
			"Enable FileVault disk encryption and escrow the recovery key.")
	case schemas.ToggleInProgress:
		t.penalize("disk_encryption", schemas.SeverityLow, PenaltyEncryptionInProgress,
			"Let FileVault finish encrypting the boot volume.")
	}
	if d.SIP == schemas.ToggleDisabled {
		t.penalize("sip", schemas.SeverityCritical, PenaltySIPDisabled,
			"Re-enable System Integrity Protection from recovery mode.")
	}
	if d.Gatekeeper == schemas.ToggleDisabled {
		t.penalize("gatekeeper", schemas.SeverityHigh, PenaltyGatekeeperDisabled,
			"Enable Gatekeeper to block unsigned applications.")
	}
	return t.result()
}

func scoreVulnerability(cve *schemas.CVEAnalysis) schemas.CategoryScore {
	if cve == nil {
		return unavailable(schemas.CategoryVulnerability, "no CVE data for this device")
	}
	t := newTally(schemas.CategoryVulnerability)
	if cve.ExploitedCount > 0 {
		t.penalize("actively_exploited_cves", schemas.SeverityCritical,
			float64(cve.ExploitedCount)*PenaltyPerExploitedCVE,
			"Update macOS immediately to patch "+pluralize(cve.ExploitedCount, "actively exploited CVE")+".")
	}
	if other := cve.TotalCVEs - cve.ExploitedCount; other > 0 {
		t.penalize("known_cves", schemas.SeverityMedium,
			math.Min(float64(other)*PenaltyPerOtherCVE, MaxOtherCVEPenalty),
			"Schedule a macOS update to patch "+pluralize(other, "other known CVE")+".")
	}
	return t.result()
}

func scoreCompliance(d schemas.Diagnostics, history *schemas.History) schemas.CategoryScore {
	known := d.Managed != schemas.ToggleUnknown ||
		d.Supervised != schemas.ToggleUnknown ||
		d.UserApprovedMDM != schemas.ToggleUnknown
	if !known && history.Empty() {
		return unavailable(schemas.CategoryCompliance, "no management state or history")
	}

	t := newTally(schemas.CategoryCompliance)
	if d.Managed == schemas.ToggleDisabled {
		t.penalize("managed", schemas.SeverityHigh, PenaltyUnmanaged,
			"Re-enroll the computer so it is managed by Jamf Pro.")
	}
	if d.UserApprovedMDM == schemas.ToggleDisabled {
		t.penalize("user_approved_mdm", schemas.SeverityMedium, PenaltyNoUserApprovedMDM,
			"Have the user approve the MDM profile.")
	}
	if d.Supervised == schemas.ToggleDisabled {
		t.penalize("supervised", schemas.SeverityLow, PenaltyUnsupervised,
			"Enroll through Automated Device Enrollment to supervise the computer.")
	}

	if n := failedPolicies(history); n > 0 {
		t.penalize("failed_policies", schemas.SeverityMedium,
			math.Min(float64(n)*PenaltyPerFailedPolicy, MaxFailedPolicyPenalty),
			"Investigate "+pluralize(n, "failed policy run")+" in the policy logs.")
	}
	if n := len(history.FailedCommands()); n > 0 {
		t.penalize("failed_commands", schemas.SeverityLow,
			math.Min(float64(n)*PenaltyPerFailedCommand, MaxFailedCommandPenalty),
			"Review "+pluralize(n, "failed MDM command")+" and resend them.")
	}
	return t.result()
}

func failedPolicies(history *schemas.History) int {
	n := 0
	for _, log := range history.PolicyLogs() {
		if status, _ := log.String("status"); strings.EqualFold(status, "failed") {
			n++
		}
	}
	return n
}

func scoreStorage(d schemas.Diagnostics) schemas.CategoryScore {
	if d.FreeSpacePercent == nil {
		return unavailable(schemas.CategoryStorage, "boot volume size unknown")
	}
	pct := *d.FreeSpacePercent
	t := newTally(schemas.CategoryStorage)
	switch {
	case pct < CriticalFreeSpacePercent:
		t.penalize("free_space", schemas.SeverityHigh, 100,
			"Free up disk space; the boot volume is nearly full.")
	case pct < LowFreeSpacePercent:
		span := LowFreeSpacePercent - CriticalFreeSpacePercent
		score := StorageLowFloorScore + (pct-CriticalFreeSpacePercent)/span*(100-StorageLowFloorScore)
		t.penalize("free_space", schemas.SeverityMedium, 100-score,
			"Free up disk space; the boot volume is running low.")
	}
	return t.result()
}

func scoreCurrency(d schemas.Diagnostics) schemas.CategoryScore {
	if d.OSVersionsBehind == nil && d.DaysSinceContact == nil {
		return unavailable(schemas.CategoryCurrency, "OS position and last contact unknown")
	}
	t := newTally(schemas.CategoryCurrency)
	if d.OSVersionsBehind != nil && *d.OSVersionsBehind > 0 {
		behind := *d.OSVersionsBehind
		sev := schemas.SeverityMedium
		if behind >= HighSeverityVersionsBehind {
			sev = schemas.SeverityHigh
		}
		rec := "Update macOS; the device is " + pluralize(behind, "release") + " behind"
		if d.LatestOSVersion != "" {
			rec += " " + d.LatestOSVersion
		}
		t.penalize("os_version", sev,
			math.Min(float64(behind)*PenaltyPerVersionBehind, MaxVersionsBehindPenalty), rec+".")
	}
	if d.DaysSinceContact != nil {
		switch days := *d.DaysSinceContact; {
		case days > VeryStaleContactDays:
			t.penalize("last_contact", schemas.SeverityMedium, PenaltyVeryStaleContact,
				"The computer has not checked in for over a month; verify it is online and enrolled.")
		case days > StaleContactDays:
			t.penalize("last_contact", schemas.SeverityLow, PenaltyStaleContact,
				"The computer has not checked in for over a week.")
		}
	}
	return t.result()
}

func pluralize(n int, noun string) string {
	s := strconv.Itoa(n) + " " + noun
	if n != 1 {
		s += "s"
	}
	return s
}
