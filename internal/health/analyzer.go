package health

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/jamf-mcp/api/schemas"
	"github.com/xkilldash9x/jamf-mcp/internal/sofa"
)

var (
	// ErrFeedUnavailable means no vulnerability feed was bound to the analyzer.
	ErrFeedUnavailable = errors.New("vulnerability feed unavailable")
	// ErrVersionNotFound means the feed has no entry for the device's OS version.
	ErrVersionNotFound = errors.New("OS version not found in vulnerability feed")
)

// Analyzer binds one device's inputs. Each method recomputes from those inputs,
// so a caller asking only for diagnostics never pays for scoring.
type Analyzer struct {
	inv     schemas.Inventory
	history *schemas.History
	feed    *sofa.Feed
	now     func() time.Time
	logger  *zap.Logger
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithHistory binds the device's event history. nil is allowed.
func WithHistory(h *schemas.History) Option {
	return func(a *Analyzer) { a.history = h }
}

// WithFeed binds the vulnerability feed. nil is allowed and marks CVE data as
// unavailable.
func WithFeed(f *sofa.Feed) Option {
	return func(a *Analyzer) { a.feed = f }
}

// WithClock overrides the time source used for contact age and GeneratedAt.
func WithClock(now func() time.Time) Option {
	return func(a *Analyzer) {
		if now != nil {
			a.now = now
		}
	}
}

// WithLogger sets the logger for CVE analysis warnings and scorecard debug output.
func WithLogger(l *zap.Logger) Option {
	return func(a *Analyzer) {
		if l != nil {
			a.logger = l
		}
	}
}

// NewAnalyzer creates an Analyzer for one inventory record.
func NewAnalyzer(inv schemas.Inventory, opts ...Option) *Analyzer {
	a := &Analyzer{
		inv:    inv,
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.Named("health")
	return a
}

// ParseDiagnostics extracts the device diagnostics.
func (a *Analyzer) ParseDiagnostics() schemas.Diagnostics {
	return ExtractDiagnostics(a.inv, a.feed, a.now())
}

// CVEAnalysis reports the CVE exposure of the device's OS version.
func (a *Analyzer) CVEAnalysis(includeDetails bool) (*schemas.CVEAnalysis, error) {
	if a.feed == nil {
		return nil, ErrFeedUnavailable
	}
	res := AnalyzeCVEs(a.feed, a.inv.OSVersion(), a.inv.OSBuild(), includeDetails, a.logger)
	if res == nil {
		return nil, ErrVersionNotFound
	}
	return res, nil
}

// GenerateHealthScorecard runs the full pipeline. A missing feed or history
// degrades the affected categories instead of failing.
func (a *Analyzer) GenerateHealthScorecard() schemas.Scorecard {
	now := a.now()
	d := ExtractDiagnostics(a.inv, a.feed, now)

	cve, err := a.CVEAnalysis(false)
	card := Score(d, cve, a.history)
	card.GeneratedAt = now.UTC()

	if err != nil {
		for i := range card.Categories {
			if card.Categories[i].Name == schemas.CategoryVulnerability {
				card.Categories[i].Reason = err.Error()
			}
		}
	}

	a.logger.Debug("Generated health scorecard.",
		zap.String("serial", card.SerialNumber),
		zap.Int("score", card.OverallScore),
		zap.String("status", string(card.Status)),
		zap.String("grade", string(card.Grade)),
		zap.Int("issues", len(card.Issues)))
	return card
}
