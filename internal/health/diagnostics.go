// Package health derives compliance diagnostics, CVE exposure and a weighted
// health scorecard from a single device's inventory, history and the SOFA feed.
//
// Everything in this package is pure: the same inputs always produce the same
// output, and no function performs I/O or mutates its arguments.
package health

import (
	"strings"
	"time"

	"github.com/xkilldash9x/jamf-mcp/api/schemas"
	"github.com/xkilldash9x/jamf-mcp/internal/sofa"
)

// Free-space buckets, as a percentage of the boot volume.
const (
	CriticalFreeSpacePercent = 10.0
	LowFreeSpacePercent      = 25.0
)

// bootVolumeName is the default name of the macOS system volume.
const bootVolumeName = "Macintosh HD"

// encryptionStates maps both the inventory-level fileVault2Status vocabulary and
// the per-partition fileVault2State vocabulary onto a Toggle.
var encryptionStates = map[string]schemas.Toggle{
	"ALL_ENCRYPTED":  schemas.ToggleEnabled,
	"BOOT_ENCRYPTED": schemas.ToggleEnabled,
	"VALID":          schemas.ToggleEnabled,
	"ENCRYPTED":      schemas.ToggleEnabled,

	"NOT_ENCRYPTED": schemas.ToggleDisabled,
	"NOT_VALID":     schemas.ToggleDisabled,
	"UNENCRYPTED":   schemas.ToggleDisabled,
	"DECRYPTED":     schemas.ToggleDisabled,

	// Decrypting or ineligible volumes end up unprotected.
	"DECRYPTING":        schemas.ToggleDisabled,
	"DECRYPTING_PAUSED": schemas.ToggleDisabled,
	"INELIGIBLE":        schemas.ToggleDisabled,

	"ENCRYPTING":        schemas.ToggleInProgress,
	"ENCRYPTING_PAUSED": schemas.ToggleInProgress,
	"SOME_ENCRYPTED":    schemas.ToggleInProgress,
	"RESTART_NEEDED":    schemas.ToggleInProgress,
	"OPTIMIZING":        schemas.ToggleInProgress,
}

var gatekeeperStates = map[string]schemas.Toggle{
	"ENABLED":                             schemas.ToggleEnabled,
	"APP_STORE_AND_IDENTIFIED_DEVELOPERS": schemas.ToggleEnabled,
	"APP_STORE":                           schemas.ToggleEnabled,
	"DISABLED":                            schemas.ToggleDisabled,
}

var sipStates = map[string]schemas.Toggle{
	"ENABLED":  schemas.ToggleEnabled,
	"DISABLED": schemas.ToggleDisabled,
}

// ExtractDiagnostics reads the compliance-relevant indicators out of an inventory
// record. Missing sections produce documented defaults (ToggleUnknown, nil
// numerics, empty strings) rather than errors. feed is optional and only used to
// place the OS version within its release track; now anchors the contact age.
func ExtractDiagnostics(inv schemas.Inventory, feed *sofa.Feed, now time.Time) schemas.Diagnostics {
	d := schemas.Diagnostics{
		SerialNumber: inv.SerialNumber(),
		ComputerName: inv.Name(),
		OSVersion:    inv.OSVersion(),
		OSBuild:      inv.OSBuild(),

		DiskEncryption:  schemas.ToggleUnknown,
		Firewall:        schemas.ToggleUnknown,
		SIP:             schemas.ToggleUnknown,
		Gatekeeper:      schemas.ToggleUnknown,
		FreeSpaceStatus: schemas.FreeSpaceUnknown,
		Managed:         schemas.ToggleUnknown,
		Supervised:      schemas.ToggleUnknown,
		UserApprovedMDM: schemas.ToggleUnknown,
		AppleSilicon:    schemas.ToggleUnknown,
	}
	d.ComputerID, _ = inv.ID()
	d.Model, _ = inv.String("hardware", "model")
	d.OSName, _ = inv.String("operatingSystem", "name")

	extractSecurity(inv, &d)
	extractStorage(inv, &d)
	extractManagement(inv, &d, now)
	extractHardware(inv, &d)

	if feed != nil && d.OSVersion != "" {
		if latest, behind, ok := feed.Position(d.OSVersion); ok {
			d.LatestOSVersion = latest.Version
			d.OSVersionsBehind = &behind
		}
	}
	return d
}

func extractSecurity(inv schemas.Inventory, d *schemas.Diagnostics) {
	if status, ok := inv.String("operatingSystem", "fileVault2Status"); ok {
		d.FileVaultState = status
		d.DiskEncryption = lookupToggle(encryptionStates, status)
	}
	d.Firewall = boolToggle(inv.Bool("security", "firewallEnabled"))
	if s, ok := inv.String("security", "sipStatus"); ok {
		d.SIP = lookupToggle(sipStates, s)
	}
	if s, ok := inv.String("security", "gatekeeperStatus"); ok {
		d.Gatekeeper = lookupToggle(gatekeeperStates, s)
	}
}

func extractStorage(inv schemas.Inventory, d *schemas.Diagnostics) {
	boot, ok := bootPartition(inv)
	if !ok {
		return
	}
	d.BootPartition, _ = boot.String("name")

	if d.DiskEncryption == schemas.ToggleUnknown {
		if state, ok := boot.String("fileVault2State"); ok {
			d.FileVaultState = state
			d.DiskEncryption = lookupToggle(encryptionStates, state)
		}
	}

	size, hasSize := boot.Float("sizeMegabytes")
	avail, hasAvail := boot.Float("availableMegabytes")
	if hasSize {
		d.TotalMegabytes = &size
	}
	if hasAvail {
		d.AvailableMegabytes = &avail
	}
	// A zero or negative size means the agent did not report the volume.
	if !hasSize || !hasAvail || size <= 0 || avail < 0 {
		return
	}

	pct := avail * 100 / size
	if pct > 100 {
		pct = 100
	}
	d.FreeSpacePercent = &pct
	switch {
	case pct < CriticalFreeSpacePercent:
		d.FreeSpaceStatus = schemas.FreeSpaceCritical
	case pct < LowFreeSpacePercent:
		d.FreeSpaceStatus = schemas.FreeSpaceLow
	default:
		d.FreeSpaceStatus = schemas.FreeSpaceOK
	}
}

// bootPartition picks the partition marked BOOT, then the one named like the
// default system volume, then the first partition of any disk.
func bootPartition(inv schemas.Inventory) (schemas.Record, bool) {
	var named, first schemas.Record
	for _, disk := range inv.Records("storage", "disks") {
		for _, part := range disk.Records("partitions") {
			if first == nil {
				first = part
			}
			if t, _ := part.String("partitionType"); strings.EqualFold(t, "BOOT") {
				return part, true
			}
			if n, _ := part.String("name"); named == nil && n == bootVolumeName {
				named = part
			}
		}
	}
	if named != nil {
		return named, true
	}
	return first, first != nil
}

func extractManagement(inv schemas.Inventory, d *schemas.Diagnostics, now time.Time) {
	d.Managed = boolToggle(inv.Bool("general", "remoteManagement", "managed"))
	d.Supervised = boolToggle(inv.Bool("general", "supervised"))
	d.UserApprovedMDM = boolToggle(inv.Bool("general", "userApprovedMdm"))

	contact, ok := inv.Time("general", "lastContactTime")
	if !ok {
		contact, ok = inv.Time("general", "reportDate")
	}
	if !ok {
		return
	}
	d.LastContact = &contact
	days := int(now.Sub(contact).Hours() / 24)
	if days < 0 {
		days = 0
	}
	d.DaysSinceContact = &days
}

func extractHardware(inv schemas.Inventory, d *schemas.Diagnostics) {
	d.TotalRAMMegabytes, _ = inv.Int("hardware", "totalRamMegabytes")
	d.ProcessorType, _ = inv.String("hardware", "processorType")
	if pct, ok := inv.Int("hardware", "batteryCapacityPercent"); ok {
		d.BatteryCapacityPercent = &pct
	}
	d.AppleSilicon = boolToggle(inv.Bool("hardware", "appleSilicon"))
}

func boolToggle(v, ok bool) schemas.Toggle {
	switch {
	case !ok:
		return schemas.ToggleUnknown
	case v:
		return schemas.ToggleEnabled
	default:
		return schemas.ToggleDisabled
	}
}

func lookupToggle(states map[string]schemas.Toggle, raw string) schemas.Toggle {
	if t, ok := states[strings.ToUpper(strings.TrimSpace(raw))]; ok {
		return t
	}
	return schemas.ToggleUnknown
}
