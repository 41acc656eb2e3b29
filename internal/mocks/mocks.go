// File: internal/mocks/mocks.go
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/jamf-mcp/api/schemas"
	"github.com/xkilldash9x/jamf-mcp/internal/config"
	"github.com/xkilldash9x/jamf-mcp/internal/sofa"
	"github.com/xkilldash9x/jamf-mcp/internal/store"
)

// -- Config Mock --

// MockConfig mocks the config.Interface.
type MockConfig struct {
	mock.Mock
}

func (m *MockConfig) Logger() config.LoggerConfig {
	args := m.Called()
	return args.Get(0).(config.LoggerConfig)
}

func (m *MockConfig) Database() config.DatabaseConfig {
	args := m.Called()
	return args.Get(0).(config.DatabaseConfig)
}

func (m *MockConfig) Jamf() config.JamfConfig {
	args := m.Called()
	return args.Get(0).(config.JamfConfig)
}

func (m *MockConfig) Feed() config.FeedConfig {
	args := m.Called()
	return args.Get(0).(config.FeedConfig)
}

func (m *MockConfig) MCP() config.MCPConfig {
	args := m.Called()
	return args.Get(0).(config.MCPConfig)
}

func (m *MockConfig) SetMCPAddress(addr string) { m.Called(addr) }
func (m *MockConfig) SetJamfURL(u string)       { m.Called(u) }

// -- Jamf Pro Mock --

// MockJamfAPI mocks the Jamf Pro client used by the tool service.
type MockJamfAPI struct {
	mock.Mock
}

func (m *MockJamfAPI) ComputerInventory(ctx context.Context, serial string, sections []string) (schemas.Inventory, error) {
	args := m.Called(ctx, serial, sections)
	return args.Get(0).(schemas.Inventory), args.Error(1)
}

func (m *MockJamfAPI) ComputerHistory(ctx context.Context, id int) (*schemas.History, error) {
	args := m.Called(ctx, id)
	h, _ := args.Get(0).(*schemas.History)
	return h, args.Error(1)
}

func (m *MockJamfAPI) SerialForUser(ctx context.Context, email string) (string, error) {
	args := m.Called(ctx, email)
	return args.String(0), args.Error(1)
}

func (m *MockJamfAPI) SearchComputers(ctx context.Context, identifier string, sections []string, pageSize int) ([]schemas.Record, error) {
	args := m.Called(ctx, identifier, sections, pageSize)
	recs, _ := args.Get(0).([]schemas.Record)
	return recs, args.Error(1)
}

func (m *MockJamfAPI) ListResource(ctx context.Context, name string) (schemas.Record, error) {
	args := m.Called(ctx, name)
	rec, _ := args.Get(0).(schemas.Record)
	return rec, args.Error(1)
}

func (m *MockJamfAPI) GetResource(ctx context.Context, name string, id int) (schemas.Record, error) {
	args := m.Called(ctx, name, id)
	rec, _ := args.Get(0).(schemas.Record)
	return rec, args.Error(1)
}

// -- Feed Mock --

// MockFeedSource mocks the vulnerability feed loader. A nil feed means the
// feed is unavailable.
type MockFeedSource struct {
	mock.Mock
}

func (m *MockFeedSource) LoadFeed(ctx context.Context) *sofa.Feed {
	args := m.Called(ctx)
	f, _ := args.Get(0).(*sofa.Feed)
	return f
}

// -- Store Mock --

// MockScorecardStore mocks the scorecard history store.
type MockScorecardStore struct {
	mock.Mock
}

func (m *MockScorecardStore) SaveScorecard(ctx context.Context, sc *schemas.Scorecard) (string, error) {
	args := m.Called(ctx, sc)
	return args.String(0), args.Error(1)
}

func (m *MockScorecardStore) ScorecardHistory(ctx context.Context, serial string, limit int) ([]store.Entry, error) {
	args := m.Called(ctx, serial, limit)
	entries, _ := args.Get(0).([]store.Entry)
	return entries, args.Error(1)
}
