// File: internal/mcp/types.go
package mcp

import (
	"context"

	"github.com/xkilldash9x/jamf-mcp/api/schemas"
	"github.com/xkilldash9x/jamf-mcp/internal/sofa"
	"github.com/xkilldash9x/jamf-mcp/internal/store"
)

// CommandRequest is a tool invocation sent by an assistant.
type CommandRequest struct {
	Command string                 `json:"command"`
	Params  map[string]interface{} `json:"params"`
	// RequestID is optional on HTTP (the server assigns one) and echoed on the
	// websocket stream so callers can match replies.
	RequestID string `json:"request_id,omitempty"`
}

// CommandResponse is the envelope returned for every command.
type CommandResponse struct {
	Status    string      `json:"status"` // "success" or "error"
	RequestID string      `json:"request_id,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
}

// ScorecardParams are the parameters of get_health_scorecard.
type ScorecardParams struct {
	Serial string `json:"serial"`
	// EmailAddress, when set, resolves the serial from the assigned user.
	EmailAddress string `json:"email_address,omitempty"`
}

// SerialParams are the parameters of get_basic_diagnostics.
type SerialParams struct {
	Serial string `json:"serial"`
}

// CVEParams are the parameters of get_cves.
type CVEParams struct {
	Serial              string `json:"serial"`
	IncludeDescriptions bool   `json:"include_descriptions,omitempty"`
}

// InventoryParams are the parameters of get_computer_inventory.
type InventoryParams struct {
	Serial   string   `json:"serial"`
	Sections []string `json:"sections,omitempty"`
}

// SearchParams are the parameters of search_computers. PageSize is passed through
// parseID because clients send it as a string or a number.
type SearchParams struct {
	Identifier string   `json:"identifier,omitempty"`
	Sections   []string `json:"sections,omitempty"`
}

// HistoryParams are the parameters of get_scorecard_history.
type HistoryParams struct {
	Serial string `json:"serial"`
	Limit  int    `json:"limit,omitempty"`
}

// JamfAPI is the Jamf Pro surface the tools need (satisfied by *jamf.Client).
type JamfAPI interface {
	ComputerInventory(ctx context.Context, serial string, sections []string) (schemas.Inventory, error)
	ComputerHistory(ctx context.Context, id int) (*schemas.History, error)
	SerialForUser(ctx context.Context, email string) (string, error)
	SearchComputers(ctx context.Context, identifier string, sections []string, pageSize int) ([]schemas.Record, error)
	ListResource(ctx context.Context, name string) (schemas.Record, error)
	GetResource(ctx context.Context, name string, id int) (schemas.Record, error)
}

// FeedSource provides the vulnerability feed, or nil when it is unavailable
// (satisfied by *sofa.Loader).
type FeedSource interface {
	LoadFeed(ctx context.Context) *sofa.Feed
}

// ScorecardStore persists generated scorecards (satisfied by *store.Store).
type ScorecardStore interface {
	SaveScorecard(ctx context.Context, sc *schemas.Scorecard) (string, error)
	ScorecardHistory(ctx context.Context, serial string, limit int) ([]store.Entry, error)
}
