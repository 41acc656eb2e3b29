// File: internal/mcp/tools.go
package mcp

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/jamf-mcp/api/schemas"
	"github.com/xkilldash9x/jamf-mcp/internal/health"
	"github.com/xkilldash9x/jamf-mcp/internal/jamf"
	"github.com/xkilldash9x/jamf-mcp/internal/observability"
	"github.com/xkilldash9x/jamf-mcp/internal/sofa"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Error kinds reported in ErrorPayload.error.
const (
	kindInvalidSerial     = "Invalid serial"
	kindInvalidComputerID = "Invalid computer_id"
	kindInvalidPageSize   = "Invalid page_size"
	kindNoSerial          = "No serial found"
	kindInventoryFailed   = "Failed to retrieve inventory"
	kindHistoryFailed     = "Failed to retrieve history"
	kindSearchFailed      = "Failed to search computers"
	kindInvalidData       = "Received invalid data"
	kindFeedError         = "SOFA Feed Error"
	kindVersionNotFound   = "Version not found"
	kindHealthFailed      = "Health analysis failed"
	kindDiagnosticsFailed = "Diagnostics failed"
	kindCVEFailed         = "CVE analysis failed"
	kindStoreUnavailable  = "Store unavailable"
)

const defaultSearchPageSize = 100

// gradeNone labels scorecards that carry no grade.
const gradeNone = "none"

var (
	// ErrUnknownTool is returned by Call for a name that is not registered.
	ErrUnknownTool = errors.New("unknown tool")
	// ErrInvalidParams is returned when params cannot be decoded into the tool's
	// parameter struct.
	ErrInvalidParams = errors.New("invalid parameters")
)

// ParamSpec describes one tool parameter for the tool listing.
type ParamSpec struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Required    bool   `json:"required,omitempty"`
	Description string `json:"description,omitempty"`
}

// ToolFunc runs a tool. Expected failures are returned as an *schemas.ErrorPayload
// result; a non-nil error means the request itself was malformed.
type ToolFunc func(ctx context.Context, params map[string]interface{}) (interface{}, error)

// Tool is a callable tool and its description.
type Tool struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Params      []ParamSpec `json:"params,omitempty"`
	run         ToolFunc
}

// CVEResult is the get_cves result: the analysis plus the serial it was run for.
type CVEResult struct {
	Serial string `json:"serial"`
	*schemas.CVEAnalysis
}

// ToolService implements the tools on top of Jamf Pro, the vulnerability feed
// and the optional scorecard store.
type ToolService struct {
	jamf   JamfAPI
	feed   FeedSource
	store  ScorecardStore
	logger *zap.Logger
	now    func() time.Time
	tools  map[string]Tool
}

// ServiceOption configures a ToolService.
type ServiceOption func(*ToolService)

// WithStore enables scorecard persistence and get_scorecard_history.
func WithStore(st ScorecardStore) ServiceOption {
	return func(s *ToolService) { s.store = st }
}

// WithClock overrides the time source passed to the analyzer.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *ToolService) {
		if now != nil {
			s.now = now
		}
	}
}

type noFeed struct{}

func (noFeed) LoadFeed(context.Context) *sofa.Feed { return nil }

// NewToolService creates the service and registers every tool. A nil feed
// source behaves as a permanently unavailable feed.
func NewToolService(jamfAPI JamfAPI, feed FeedSource, logger *zap.Logger, opts ...ServiceOption) *ToolService {
	if feed == nil {
		feed = noFeed{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &ToolService{
		jamf:   jamfAPI,
		feed:   feed,
		logger: logger.Named("tools"),
		now:    time.Now,
		tools:  make(map[string]Tool),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	return s
}

func (s *ToolService) register(t Tool) { s.tools[t.Name] = t }

func (s *ToolService) registerTools() {
	serial := ParamSpec{Name: "serial", Type: "string", Required: true, Description: "Computer serial number"}

	s.register(Tool{
		Name:        "get_health_scorecard",
		Description: "Generate a health scorecard (scores, grade, issues, recommendations) for a computer.",
		Params: []ParamSpec{
			{Name: "serial", Type: "string", Description: "Computer serial number"},
			{Name: "email_address", Type: "string", Description: "Look up the serial from the assigned user instead"},
		},
		run: s.healthScorecard,
	})
	s.register(Tool{
		Name:        "get_basic_diagnostics",
		Description: "Get security, storage, management and hardware diagnostics for a computer.",
		Params:      []ParamSpec{serial},
		run:         s.basicDiagnostics,
	})
	s.register(Tool{
		Name:        "get_cves",
		Description: "Get CVE exposure of a computer's macOS version from the SOFA feed.",
		Params: []ParamSpec{
			serial,
			{Name: "include_descriptions", Type: "boolean", Description: "Include per-CVE identifiers and exploited flags"},
		},
		run: s.cves,
	})
	s.register(Tool{
		Name:        "get_computer_inventory",
		Description: "Get the Jamf Pro inventory record of a computer.",
		Params: []ParamSpec{
			serial,
			{Name: "sections", Type: "array", Description: "Inventory sections, default ALL"},
		},
		run: s.computerInventory,
	})
	s.register(Tool{
		Name:        "get_computer_history",
		Description: "Get policy logs, MDM commands and usage history of a computer.",
		Params:      []ParamSpec{{Name: "computer_id", Type: "integer|string", Required: true, Description: "Jamf Pro computer id"}},
		run:         s.computerHistory,
	})
	s.register(Tool{
		Name:        "search_computers",
		Description: "Search computers by name or serial number.",
		Params: []ParamSpec{
			{Name: "identifier", Type: "string", Description: "Computer name or serial number; empty lists computers"},
			{Name: "page_size", Type: "integer|string", Description: "Results per page, default 100"},
			{Name: "sections", Type: "array", Description: "Inventory sections, default GENERAL and HARDWARE"},
		},
		run: s.searchComputers,
	})
	s.register(Tool{
		Name:        "get_scorecard_history",
		Description: "List previously generated scorecards for a computer, newest first.",
		Params: []ParamSpec{
			serial,
			{Name: "limit", Type: "integer", Description: "Maximum entries, default 10"},
		},
		run: s.scorecardHistory,
	})
	s.register(Tool{
		Name:        "ping",
		Description: "Check that the server is responsive.",
		run: func(context.Context, map[string]interface{}) (interface{}, error) {
			return map[string]string{"message": "pong", "status": "ok"}, nil
		},
	})

	for _, name := range jamf.ResourceNames() {
		res := jamf.Resources[name]
		plural := strings.ReplaceAll(name, "_", " ")
		singular := strings.ReplaceAll(res.Singular, "_", " ")
		idKey := res.Singular + "_id"

		s.register(Tool{
			Name:        "get_" + name,
			Description: fmt.Sprintf("List %s.", plural),
			run:         s.listResource(name, plural),
		})
		s.register(Tool{
			Name:        "get_" + res.Singular + "_details",
			Description: fmt.Sprintf("Get one %s by id.", singular),
			Params:      []ParamSpec{{Name: idKey, Type: "integer|string", Required: true}},
			run:         s.resourceDetails(name, singular, idKey),
		})
	}
}

// Tools returns every registered tool sorted by name.
func (s *ToolService) Tools() []Tool {
	out := make([]Tool, 0, len(s.tools))
	for _, t := range s.tools {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Call runs the named tool.
func (s *ToolService) Call(ctx context.Context, name string, params map[string]interface{}) (interface{}, error) {
	tool, ok := s.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}

	start := time.Now()
	result, err := tool.run(ctx, params)
	observability.ToolDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())

	status := "success"
	if err != nil {
		status = "rejected"
	} else if _, isPayload := result.(*schemas.ErrorPayload); isPayload {
		status = "error"
	}
	observability.ToolCalls.WithLabelValues(name, status).Inc()
	return result, err
}

func (s *ToolService) healthScorecard(ctx context.Context, params map[string]interface{}) (result interface{}, err error) {
	p, err := decodeParams[ScorecardParams](params)
	if err != nil {
		return nil, err
	}
	serial := strings.TrimSpace(p.Serial)
	defer func() { s.recoverAs(recover(), &result, kindHealthFailed, "serial", serial) }()

	if email := strings.TrimSpace(p.EmailAddress); email != "" {
		found, err := s.jamf.SerialForUser(ctx, email)
		if err != nil {
			return schemas.NewErrorPayload(kindNoSerial,
				fmt.Sprintf("Serial was not found for user %s: %v", email, err), "email_address", email), nil
		}
		serial = found
	}
	if payload := checkSerial(serial); payload != nil {
		return payload, nil
	}

	inv, payload := s.inventory(ctx, serial, nil)
	if payload != nil {
		return payload, nil
	}
	id, payload := computerID(inv, serial)
	if payload != nil {
		return payload, nil
	}

	var (
		history *schemas.History
		feed    *sofa.Feed
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		h, err := s.jamf.ComputerHistory(gctx, id)
		if err != nil {
			return err
		}
		history = h
		return nil
	})
	g.Go(func() error {
		// The feed fails open; it never fails the group.
		feed = s.feed.LoadFeed(gctx)
		return nil
	})
	if err := g.Wait(); err != nil {
		s.logger.Error("Failed to retrieve history.", zap.String("serial", serial), zap.Int("computer_id", id), zap.Error(err))
		return schemas.NewErrorPayload(kindHistoryFailed, err.Error(), "serial", serial), nil
	}
	if feed == nil {
		s.logger.Warn("Scoring without vulnerability data.", zap.String("serial", serial))
	}

	card := health.NewAnalyzer(inv,
		health.WithHistory(history),
		health.WithFeed(feed),
		health.WithClock(s.now),
		health.WithLogger(s.logger),
	).GenerateHealthScorecard()
	grade := string(card.Grade)
	if grade == "" {
		grade = gradeNone
	}
	observability.ScorecardGrades.WithLabelValues(grade).Inc()

	if s.store != nil {
		if _, err := s.store.SaveScorecard(ctx, &card); err != nil {
			s.logger.Warn("Failed to store scorecard.", zap.String("serial", serial), zap.Error(err))
		}
	}
	return &card, nil
}

func (s *ToolService) basicDiagnostics(ctx context.Context, params map[string]interface{}) (result interface{}, err error) {
	p, err := decodeParams[SerialParams](params)
	if err != nil {
		return nil, err
	}
	serial := strings.TrimSpace(p.Serial)
	defer func() { s.recoverAs(recover(), &result, kindDiagnosticsFailed, "serial", serial) }()

	if payload := checkSerial(serial); payload != nil {
		return payload, nil
	}
	inv, payload := s.inventory(ctx, serial, nil)
	if payload != nil {
		return payload, nil
	}
	d := health.NewAnalyzer(inv,
		health.WithFeed(s.feed.LoadFeed(ctx)),
		health.WithClock(s.now),
		health.WithLogger(s.logger),
	).ParseDiagnostics()
	return &d, nil
}

func (s *ToolService) cves(ctx context.Context, params map[string]interface{}) (result interface{}, err error) {
	p, err := decodeParams[CVEParams](params)
	if err != nil {
		return nil, err
	}
	serial := strings.TrimSpace(p.Serial)
	defer func() { s.recoverAs(recover(), &result, kindCVEFailed, "serial", serial) }()

	if payload := checkSerial(serial); payload != nil {
		return payload, nil
	}
	inv, payload := s.inventory(ctx, serial, nil)
	if payload != nil {
		return payload, nil
	}
	feed := s.feed.LoadFeed(ctx)
	if feed == nil {
		return schemas.NewErrorPayload(kindFeedError,
			"Unable to retrieve security vulnerability data from SOFA feed", "serial", serial), nil
	}

	analysis, err := health.NewAnalyzer(inv,
		health.WithFeed(feed),
		health.WithClock(s.now),
		health.WithLogger(s.logger),
	).CVEAnalysis(p.IncludeDescriptions)
	switch {
	case errors.Is(err, health.ErrVersionNotFound):
		return schemas.NewErrorPayload(kindVersionNotFound,
			fmt.Sprintf("OS version %q not found in vulnerability feed", inv.OSVersion()), "serial", serial), nil
	case err != nil:
		return schemas.NewErrorPayload(kindCVEFailed, err.Error(), "serial", serial), nil
	}

	s.logger.Info("CVE analysis complete.",
		zap.String("serial", serial),
		zap.Int("total", analysis.TotalCVEs),
		zap.Int("exploited", analysis.ExploitedCount))
	return &CVEResult{Serial: serial, CVEAnalysis: analysis}, nil
}

func (s *ToolService) computerInventory(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	p, err := decodeParams[InventoryParams](params)
	if err != nil {
		return nil, err
	}
	serial := strings.TrimSpace(p.Serial)
	if payload := checkSerial(serial); payload != nil {
		return payload, nil
	}
	inv, payload := s.inventory(ctx, serial, p.Sections)
	if payload != nil {
		return payload, nil
	}
	return inv.Record, nil
}

func (s *ToolService) computerHistory(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	raw := params["computer_id"]
	id, ok := parseID(raw)
	if !ok {
		return schemas.NewErrorPayload(kindInvalidComputerID,
			fmt.Sprintf("computer_id must be a valid integer, got: %v", raw), "computer_id", raw), nil
	}
	h, err := s.jamf.ComputerHistory(ctx, id)
	if err != nil {
		s.logger.Error("Failed to retrieve history.", zap.Int("computer_id", id), zap.Error(err))
		return schemas.NewErrorPayload(kindHistoryFailed, err.Error(), "computer_id", raw), nil
	}
	return h.Record, nil
}

func (s *ToolService) searchComputers(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	p, err := decodeParams[SearchParams](params)
	if err != nil {
		return nil, err
	}
	pageSize := defaultSearchPageSize
	if raw, ok := params["page_size"]; ok && raw != nil && raw != "" {
		if pageSize, ok = parseID(raw); !ok {
			return schemas.NewErrorPayload(kindInvalidPageSize,
				fmt.Sprintf("page_size must be a positive integer, got: %v", raw), "page_size", raw), nil
		}
	}

	identifier := strings.TrimSpace(p.Identifier)
	results, err := s.jamf.SearchComputers(ctx, identifier, p.Sections, pageSize)
	if err != nil {
		s.logger.Error("Failed to search computers.", zap.String("identifier", identifier), zap.Error(err))
		return schemas.NewErrorPayload(kindSearchFailed, err.Error(), "identifier", identifier), nil
	}
	if results == nil {
		results = []schemas.Record{}
	}
	return results, nil
}

func (s *ToolService) scorecardHistory(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	p, err := decodeParams[HistoryParams](params)
	if err != nil {
		return nil, err
	}
	serial := strings.TrimSpace(p.Serial)
	if payload := checkSerial(serial); payload != nil {
		return payload, nil
	}
	if s.store == nil {
		return schemas.NewErrorPayload(kindStoreUnavailable,
			"scorecard history requires a configured database (database.url)", "serial", serial), nil
	}
	entries, err := s.store.ScorecardHistory(ctx, serial, p.Limit)
	if err != nil {
		s.logger.Error("Failed to read scorecard history.", zap.String("serial", serial), zap.Error(err))
		return schemas.NewErrorPayload(kindStoreUnavailable, err.Error(), "serial", serial), nil
	}
	return map[string]interface{}{
		"serial":     serial,
		"count":      len(entries),
		"scorecards": entries,
	}, nil
}

func (s *ToolService) listResource(name, label string) ToolFunc {
	return func(ctx context.Context, _ map[string]interface{}) (interface{}, error) {
		rec, err := s.jamf.ListResource(ctx, name)
		if err != nil {
			s.logger.Error("Failed to list resource.", zap.String("resource", name), zap.Error(err))
			return schemas.NewErrorPayload("Failed to retrieve "+label, err.Error(), "", nil), nil
		}
		return rec, nil
	}
}

func (s *ToolService) resourceDetails(name, label, idKey string) ToolFunc {
	return func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
		raw := params[idKey]
		id, ok := parseID(raw)
		if !ok {
			return schemas.NewErrorPayload("Invalid "+idKey,
				fmt.Sprintf("%s must be a valid integer, got: %v", idKey, raw), idKey, raw), nil
		}
		rec, err := s.jamf.GetResource(ctx, name, id)
		if err != nil {
			s.logger.Error("Failed to get resource.", zap.String("resource", name), zap.Int("id", id), zap.Error(err))
			return schemas.NewErrorPayload("Failed to retrieve "+label+" details", err.Error(), idKey, raw), nil
		}
		return rec, nil
	}
}

func (s *ToolService) inventory(ctx context.Context, serial string, sections []string) (schemas.Inventory, *schemas.ErrorPayload) {
	inv, err := s.jamf.ComputerInventory(ctx, serial, sections)
	if err != nil {
		s.logger.Error("Failed to retrieve inventory.", zap.String("serial", serial), zap.Error(err))
		return inv, schemas.NewErrorPayload(kindInventoryFailed, err.Error(), "serial", serial)
	}
	return inv, nil
}

// recoverAs turns a panic in a tool into the tool's failure payload.
func (s *ToolService) recoverAs(r interface{}, result *interface{}, kind, key string, value interface{}) {
	if r == nil {
		return
	}
	s.logger.Error("Tool panicked.", zap.String("kind", kind), zap.Any("panic", r), zap.Stack("stack"))
	*result = schemas.NewErrorPayload(kind, fmt.Sprint(r), key, value)
}

func checkSerial(serial string) *schemas.ErrorPayload {
	if jamf.ValidSerial(serial) {
		return nil
	}
	return schemas.NewErrorPayload(kindInvalidSerial,
		fmt.Sprintf("serial must be 1-32 letters or digits, got: %q", serial), "serial", serial)
}

func computerID(inv schemas.Inventory, serial string) (int, *schemas.ErrorPayload) {
	if raw, ok := inv.ID(); ok {
		if id, err := strconv.Atoi(raw); err == nil && id > 0 {
			return id, nil
		}
	}
	return 0, schemas.NewErrorPayload(kindInvalidData, "Computer ID not found in inventory data", "serial", serial)
}

// parseID accepts a positive integer sent as a JSON number or a string.
func parseID(v interface{}) (int, bool) {
	switch n := v.(type) {
	case float64:
		if n > 0 && n == math.Trunc(n) && n <= math.MaxInt32 {
			return int(n), true
		}
	case int:
		return n, n > 0
	case int64:
		if n > 0 && n <= math.MaxInt32 {
			return int(n), true
		}
	case string:
		if id, err := strconv.Atoi(strings.TrimSpace(n)); err == nil && id > 0 {
			return id, true
		}
	}
	return 0, false
}

// decodeParams converts the generic params map into a parameter struct.
func decodeParams[T any](m map[string]interface{}) (T, error) {
	var result T
	if m == nil {
		return result, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return result, fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return result, fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	return result, nil
}
