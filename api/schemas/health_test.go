package schemas_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/jamf-mcp/api/schemas"
)

func TestSeverity_Rank(t *testing.T) {
	assert.Greater(t, schemas.SeverityCritical.Rank(), schemas.SeverityHigh.Rank())
	assert.Greater(t, schemas.SeverityHigh.Rank(), schemas.SeverityMedium.Rank())
	assert.Greater(t, schemas.SeverityMedium.Rank(), schemas.SeverityLow.Rank())
	assert.Zero(t, schemas.Severity("bogus").Rank())
}

func TestScorecard_Category(t *testing.T) {
	score := 80.0
	card := schemas.Scorecard{Categories: []schemas.CategoryScore{
		{Name: schemas.CategorySecurity, Status: schemas.StatusEvaluated, Score: &score},
		{Name: schemas.CategoryVulnerability, Status: schemas.StatusUnavailable, Reason: "no CVE data"},
	}}

	c, ok := card.Category(schemas.CategorySecurity)
	require.True(t, ok)
	assert.Equal(t, 80.0, *c.Score)

	_, ok = card.Category(schemas.CategoryStorage)
	assert.False(t, ok)
}

func TestCategoryScore_JSON(t *testing.T) {
	data, err := json.Marshal(schemas.CategoryScore{
		Name:   schemas.CategoryCurrency,
		Weight: 0.1,
		Status: schemas.StatusUnavailable,
		Reason: "OS position and last contact unknown",
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"name": "currency", "weight": 0.1, "status": "unavailable",
		"reason": "OS position and last contact unknown"}`, string(data))
}

func TestErrorPayload(t *testing.T) {
	p := schemas.NewErrorPayload("Invalid serial", "serial must be 1-32 letters or digits", "serial", "bad serial!")

	data, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"error": "Invalid serial", "message": "serial must be 1-32 letters or digits",
		"serial": "bad serial!"}`, string(data))
	assert.Equal(t, "Invalid serial: serial must be 1-32 letters or digits", p.Error())

	noContext := schemas.NewErrorPayload("Failed to retrieve policies", "boom", "", nil)
	assert.Equal(t, map[string]interface{}{"error": "Failed to retrieve policies", "message": "boom"}, noContext.Map())

	// The original input is echoed with its JSON type.
	data, err = json.Marshal(schemas.NewErrorPayload("Invalid computer_id", "x", "computer_id", 1.5))
	require.NoError(t, err)
	assert.JSONEq(t, `{"error": "Invalid computer_id", "message": "x", "computer_id": 1.5}`, string(data))
}
