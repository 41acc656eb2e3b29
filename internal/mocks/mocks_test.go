// internal/mocks/mocks_test.go
package mocks_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/jamf-mcp/internal/config"
	"github.com/xkilldash9x/jamf-mcp/internal/mcp"
	"github.com/xkilldash9x/jamf-mcp/internal/mocks"
)

var (
	_ config.Interface   = (*mocks.MockConfig)(nil)
	_ mcp.JamfAPI        = (*mocks.MockJamfAPI)(nil)
	_ mcp.FeedSource     = (*mocks.MockFeedSource)(nil)
	_ mcp.ScorecardStore = (*mocks.MockScorecardStore)(nil)
)

func TestMockJamfAPI_NilResults(t *testing.T) {
	m := new(mocks.MockJamfAPI)
	boom := errors.New("boom")
	m.On("ComputerHistory", mock.Anything, 42).Return(nil, boom)
	m.On("ListResource", mock.Anything, "policies").Return(nil, boom)

	h, err := m.ComputerHistory(context.Background(), 42)
	assert.Nil(t, h)
	assert.ErrorIs(t, err, boom)

	rec, err := m.ListResource(context.Background(), "policies")
	assert.Nil(t, rec)
	assert.ErrorIs(t, err, boom)
	m.AssertExpectations(t)
}

func TestMockFeedSource_Unavailable(t *testing.T) {
	m := new(mocks.MockFeedSource)
	m.On("LoadFeed", mock.Anything).Return(nil)
	assert.Nil(t, m.LoadFeed(context.Background()))
}
