package sofa

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/jamf-mcp/internal/network"
	"github.com/xkilldash9x/jamf-mcp/internal/observability"
)

// DefaultFeedURL is the public SOFA macOS feed.
const DefaultFeedURL = "https://sofafeed.macadmins.io/v1/macos_data_feed.json"

// maxFeedBytes bounds the response body read into memory.
const maxFeedBytes = 64 << 20

// Config controls fetching and caching of the feed.
type Config struct {
	URL string
	// Timeout bounds a single fetch, independently of the caller's context.
	Timeout time.Duration
	// CacheTTL is how long a fetched snapshot is served without refetching.
	CacheTTL time.Duration
	// MaxStale is how long a snapshot may still be served after a failed refresh.
	MaxStale time.Duration
	// RequestsPerSecond limits outbound fetches.
	RequestsPerSecond float64
	UserAgent         string
}

// SetDefaults fills zero values.
func (c *Config) SetDefaults() {
	if c.URL == "" {
		c.URL = DefaultFeedURL
	}
	if c.Timeout <= 0 {
		c.Timeout = 20 * time.Second
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = time.Hour
	}
	if c.MaxStale < c.CacheTTL {
		c.MaxStale = 24 * time.Hour
	}
	if c.RequestsPerSecond <= 0 {
		c.RequestsPerSecond = 1
	}
	if c.UserAgent == "" {
		c.UserAgent = "jamf-mcp"
	}
}

// Loader fetches the feed and keeps the last good snapshot for the process
// lifetime. The cache is an optimisation: every failure path ends in "no feed",
// never in a blocked caller.
type Loader struct {
	cfg     Config
	client  network.HTTPClient
	logger  *zap.Logger
	limiter *rate.Limiter
	group   singleflight.Group
	now     func() time.Time

	mu       sync.RWMutex
	cached   *Feed
	cachedAt time.Time
}

// NewLoader creates a Loader. A nil client uses the shared network client.
func NewLoader(cfg Config, client network.HTTPClient, logger *zap.Logger) *Loader {
	cfg.SetDefaults()
	if client == nil {
		client = network.NewClient(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{
		cfg:     cfg,
		client:  client,
		logger:  logger.Named("sofa"),
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		now:     time.Now,
	}
}

// LoadFeed returns the current feed, or nil when it cannot be obtained. Callers
// treat nil as "CVE analysis unavailable".
func (l *Loader) LoadFeed(ctx context.Context) *Feed {
	feed, err := l.Load(ctx)
	if err != nil {
		l.logger.Warn("Vulnerability feed unavailable; continuing without CVE data.", zap.Error(err))
		return nil
	}
	return feed
}

// Load returns a fresh cached snapshot or fetches a new one. Concurrent misses
// share a single fetch. If the fetch fails, a snapshot younger than MaxStale is
// returned instead.
func (l *Loader) Load(ctx context.Context) (*Feed, error) {
	if feed, age, ok := l.snapshot(); ok && age < l.cfg.CacheTTL {
		observability.FeedCacheHits.Inc()
		return feed, nil
	}

	ch := l.group.DoChan("feed", func() (interface{}, error) {
		// The shared fetch must not die with whichever caller started it.
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.cfg.Timeout)
		defer cancel()
		return l.fetch(fetchCtx)
	})

	select {
	case <-ctx.Done():
		return l.fallback(ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return l.fallback(res.Err)
		}
		return res.Val.(*Feed), nil
	}
}

// Cached returns the current snapshot without fetching.
func (l *Loader) Cached() *Feed {
	feed, _, _ := l.snapshot()
	return feed
}

func (l *Loader) snapshot() (*Feed, time.Duration, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.cached == nil {
		return nil, 0, false
	}
	return l.cached, l.now().Sub(l.cachedAt), true
}

func (l *Loader) fallback(err error) (*Feed, error) {
	if feed, age, ok := l.snapshot(); ok && age < l.cfg.MaxStale {
		l.logger.Warn("Feed refresh failed; serving previous snapshot.",
			zap.Error(err), zap.Duration("age", age))
		return feed, nil
	}
	return nil, err
}

func (l *Loader) fetch(ctx context.Context) (*Feed, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		observability.FeedFetches.WithLabelValues("throttled").Inc()
		return nil, fmt.Errorf("feed fetch throttled: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build feed request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", l.cfg.UserAgent)

	start := l.now()
	resp, err := l.client.Do(req)
	if err != nil {
		observability.FeedFetches.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		observability.FeedFetches.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to fetch feed: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		observability.FeedFetches.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to read feed body: %w", err)
	}

	feed, err := Parse(body)
	if err != nil {
		observability.FeedFetches.WithLabelValues("invalid").Inc()
		return nil, err
	}
	feed.FetchedAt = l.now().UTC()

	l.mu.Lock()
	l.cached = feed
	l.cachedAt = l.now()
	l.mu.Unlock()

	observability.FeedFetches.WithLabelValues("success").Inc()
	l.logger.Info("Vulnerability feed loaded.",
		zap.Int("releases", feed.Len()),
		zap.String("update_hash", feed.UpdateHash),
		zap.Duration("took", l.now().Sub(start)))
	return feed, nil
}
