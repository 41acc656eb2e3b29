// Package jamf is a small client for the parts of the Jamf Pro API the tool
// server needs: computer inventory and history, user lookups and the read-only
// Classic API resource listings.
package jamf

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/jamf-mcp/api/schemas"
	"github.com/xkilldash9x/jamf-mcp/internal/network"
	"github.com/xkilldash9x/jamf-mcp/internal/observability"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	inventoryPath = "/api/v1/computers-inventory"
	historyPath   = "/JSSResource/computerhistory/id/"

	maxResponseBytes = 32 << 20
)

// AllSections requests every inventory section.
const AllSections = "ALL"

// inventorySections are the sections of /api/v1/computers-inventory. "ALL" expands
// to this list because the endpoint has no wildcard of its own.
var inventorySections = []string{
	"GENERAL", "DISK_ENCRYPTION", "PURCHASING", "APPLICATIONS", "STORAGE",
	"USER_AND_LOCATION", "CONFIGURATION_PROFILES", "PRINTERS", "SERVICES",
	"HARDWARE", "LOCAL_USER_ACCOUNTS", "CERTIFICATES", "ATTACHMENTS", "PLUGINS",
	"PACKAGE_RECEIPTS", "FONTS", "SECURITY", "OPERATING_SYSTEM",
	"LICENSED_SOFTWARE", "IBEACONS", "SOFTWARE_UPDATES", "EXTENSION_ATTRIBUTES",
	"CONTENT_CACHING", "GROUP_MEMBERSHIPS",
}

// Config configures a Client.
type Config struct {
	// URL is the Jamf Pro tenant, e.g. https://example.jamfcloud.com.
	URL         string
	Credentials Credentials

	RequestsPerSecond float64
	Burst             int
	UserAgent         string
}

// Client talks to one Jamf Pro tenant. Safe for concurrent use.
type Client struct {
	cfg     Config
	base    *url.URL
	http    network.HTTPClient
	logger  *zap.Logger
	limiter *rate.Limiter
	now     func() time.Time

	tokenMu     sync.Mutex
	token       string
	tokenExpiry time.Time
}

// NewClient validates cfg and creates a Client. A nil httpClient uses the shared
// network client.
func NewClient(cfg Config, httpClient network.HTTPClient, logger *zap.Logger) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(strings.TrimSpace(cfg.URL), "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid Jamf Pro URL %q", cfg.URL)
	}
	if base.Scheme != "https" && base.Scheme != "http" {
		return nil, fmt.Errorf("invalid Jamf Pro URL scheme %q", base.Scheme)
	}
	if err := cfg.Credentials.Validate(); err != nil {
		return nil, err
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 10
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 5
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "jamf-mcp"
	}
	if httpClient == nil {
		httpClient = network.NewClient(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:     cfg,
		base:    base,
		http:    httpClient,
		logger:  logger.Named("jamf"),
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		now:     time.Now,
	}, nil
}

// ValidSerial reports whether s looks like a hardware serial number. It guards the
// inventory filter expression, so only letters and digits are accepted.
func ValidSerial(s string) bool {
	if s == "" || len(s) > 32 {
		return false
	}
	for _, r := range s {
		if !(r >= 'A' && r <= 'Z' || r >= 'a' && r <= 'z' || r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}

// ComputerInventory returns the inventory record for a serial number. Sections
// default to all of them.
func (c *Client) ComputerInventory(ctx context.Context, serial string, sections []string) (schemas.Inventory, error) {
	if !ValidSerial(serial) {
		return schemas.Inventory{}, fmt.Errorf("invalid serial number %q", serial)
	}
	results, err := c.searchInventory(ctx, fmt.Sprintf(`hardware.serialNumber=="%s"`, serial), sections, 1)
	if err != nil {
		return schemas.Inventory{}, err
	}
	if len(results) == 0 {
		return schemas.Inventory{}, fmt.Errorf("computer with serial %s: %w", serial, ErrNotFound)
	}
	return schemas.NewInventory(results[0]), nil
}

// SearchComputers finds computers whose name or serial equals identifier. An empty
// identifier lists the first page of computers.
func (c *Client) SearchComputers(ctx context.Context, identifier string, sections []string, pageSize int) ([]schemas.Record, error) {
	filter := ""
	if identifier != "" {
		quoted := strconv.Quote(identifier)
		filter = fmt.Sprintf("general.name==%s,hardware.serialNumber==%s", quoted, quoted)
	}
	if len(sections) == 0 {
		sections = []string{"GENERAL", "HARDWARE"}
	}
	return c.searchInventory(ctx, filter, sections, pageSize)
}

// SerialForUser returns the serial number of the first computer assigned to the
// user with the given email address.
func (c *Client) SerialForUser(ctx context.Context, email string) (string, error) {
	if !strings.Contains(email, "@") {
		return "", fmt.Errorf("invalid email address %q", email)
	}
	filter := "userAndLocation.email==" + strconv.Quote(email)
	results, err := c.searchInventory(ctx, filter, []string{"HARDWARE", "USER_AND_LOCATION"}, 1)
	if err != nil {
		return "", err
	}
	for _, r := range results {
		if serial, ok := r.String("hardware", "serialNumber"); ok && serial != "" {
			return serial, nil
		}
	}
	return "", fmt.Errorf("computer assigned to %s: %w", email, ErrNotFound)
}

func (c *Client) searchInventory(ctx context.Context, filter string, sections []string, pageSize int) ([]schemas.Record, error) {
	if pageSize <= 0 {
		pageSize = 100
	}
	q := url.Values{}
	q.Set("page", "0")
	q.Set("page-size", strconv.Itoa(pageSize))
	for _, s := range expandSections(sections) {
		q.Add("section", s)
	}
	if filter != "" {
		q.Set("filter", filter)
	}

	body, err := c.get(ctx, "computers-inventory", inventoryPath, q, "application/json")
	if err != nil {
		return nil, err
	}
	page, err := schemas.DecodeRecord(body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode inventory response: %w", err)
	}
	return page.Records("results"), nil
}

func expandSections(sections []string) []string {
	if len(sections) == 0 {
		return inventorySections
	}
	out := make([]string, 0, len(sections))
	for _, s := range sections {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == AllSections {
			return inventorySections
		}
		if s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return inventorySections
	}
	return out
}

// get performs an authenticated GET. A 401 drops the cached token and retries
// once with a fresh one.
func (c *Client) get(ctx context.Context, label, path string, query url.Values, accept string) ([]byte, error) {
	body, err := c.send(ctx, label, path, query, accept)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized {
		c.invalidateToken()
		body, err = c.send(ctx, label, path, query, accept)
	}
	return body, err
}

func (c *Client) send(ctx context.Context, label, path string, query url.Values, accept string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("jamf request throttled: %w", err)
	}
	token, err := c.bearerToken(ctx)
	if err != nil {
		observability.JamfRequests.WithLabelValues("auth", "error").Inc()
		return nil, fmt.Errorf("failed to authenticate: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(path, query), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", accept)
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	start := c.now()
	resp, err := c.http.Do(req)
	if err != nil {
		observability.JamfRequests.WithLabelValues(label, "error").Inc()
		return nil, fmt.Errorf("jamf request to %s failed: %w", label, err)
	}
	defer resp.Body.Close()
	observability.JamfRequests.WithLabelValues(label, strconv.Itoa(resp.StatusCode)).Inc()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", label, err)
	}
	c.logger.Debug("Jamf request complete.",
		zap.String("endpoint", label),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", c.now().Sub(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{Endpoint: label, StatusCode: resp.StatusCode, Body: truncate(body)}
	}
	return body, nil
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.base
	u.Path = strings.TrimRight(c.base.Path, "/") + path
	if query != nil {
		u.RawQuery = query.Encode()
	}
	return u.String()
}
