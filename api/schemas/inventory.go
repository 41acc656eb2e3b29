package schemas

// -- Device Resources --

// Inventory is one computer-inventory document from the Jamf Pro API
// (`/api/v1/computers-inventory`). Every section is optional.
type Inventory struct {
	Record
}

// NewInventory wraps a decoded record.
func NewInventory(r Record) Inventory { return Inventory{Record: r} }

// ID returns the Jamf (JSS) id of the computer.
func (i Inventory) ID() (string, bool) {
	id, ok := i.String("id")
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

func (i Inventory) Name() string {
	s, _ := i.String("general", "name")
	return s
}

func (i Inventory) SerialNumber() string {
	s, _ := i.String("hardware", "serialNumber")
	return s
}

func (i Inventory) OSVersion() string {
	s, _ := i.String("operatingSystem", "version")
	return s
}

func (i Inventory) OSBuild() string {
	s, _ := i.String("operatingSystem", "build")
	return s
}

// Empty reports whether the inventory carries no data at all.
func (i Inventory) Empty() bool { return len(i.Record) == 0 }

// History is one computer-history document. The Classic API returns it as XML;
// the jamf client normalises it to camelCase keys before wrapping it here.
type History struct {
	Record
}

// NewHistory wraps a decoded record.
func NewHistory(r Record) *History { return &History{Record: r} }

// Empty reports whether h is nil or carries no data.
func (h *History) Empty() bool { return h == nil || len(h.Record) == 0 }

func (h *History) PolicyLogs() []Record {
	if h == nil {
		return nil
	}
	return h.Records("policyLogs")
}

func (h *History) CompletedCommands() []Record {
	if h == nil {
		return nil
	}
	return h.Records("commands", "completed")
}

func (h *History) PendingCommands() []Record {
	if h == nil {
		return nil
	}
	return h.Records("commands", "pending")
}

func (h *History) FailedCommands() []Record {
	if h == nil {
		return nil
	}
	return h.Records("commands", "failed")
}

func (h *History) UsageLogs() []Record {
	if h == nil {
		return nil
	}
	return h.Records("computerUsageLogs")
}

func (h *History) AuditLogs() []Record {
	if h == nil {
		return nil
	}
	return h.Records("auditLogs")
}
