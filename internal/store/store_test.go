package store

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/jamf-mcp/api/schemas"
)

// flexibleSQLMatcher creates a regex that is insensitive to whitespace.
func flexibleSQLMatcher(sql string) string {
	trimmed := strings.TrimSpace(sql)
	return regexp.MustCompile(`\s+`).ReplaceAllString(regexp.QuoteMeta(trimmed), `\s+`)
}

// ArgumentMatcherFunc is a helper to create inline mock matchers.
type ArgumentMatcherFunc func(interface{}) bool

func (f ArgumentMatcherFunc) Match(v interface{}) bool { return f(v) }

var uuidArg = ArgumentMatcherFunc(func(v interface{}) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
})

func reportArg(want string) ArgumentMatcherFunc {
	return func(v interface{}) bool {
		b, ok := v.([]byte)
		return ok && strings.Contains(string(b), want)
	}
}

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mockPool.Close)

	mockPool.ExpectPing()
	s, err := New(context.Background(), mockPool, zap.NewNop())
	require.NoError(t, err)
	return s, mockPool
}

func TestNew_PingFails(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	pingErr := errors.New("database unavailable")
	mockPool.ExpectPing().WillReturnError(pingErr)

	_, err = New(context.Background(), mockPool, nil)
	assert.ErrorIs(t, err, pingErr)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestEnsureSchema(t *testing.T) {
	s, mockPool := newMockStore(t)
	mockPool.ExpectExec(flexibleSQLMatcher(sqlCreateSchema)).WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.EnsureSchema(context.Background()))
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestSaveScorecard(t *testing.T) {
	generated := time.Date(2024, 4, 1, 12, 0, 0, 0, time.FixedZone("PDT", -7*3600))
	sc := &schemas.Scorecard{
		SerialNumber: "FVFXC2ABCDEF",
		ComputerName: "Design-MBP-07",
		OverallScore: 44,
		Grade:        schemas.GradeF,
		Issues:       []schemas.Issue{},
		GeneratedAt:  generated,
	}

	t.Run("inserts the full report", func(t *testing.T) {
		s, mockPool := newMockStore(t)
		mockPool.ExpectExec(flexibleSQLMatcher(sqlInsertScorecard)).
			WithArgs(uuidArg, "FVFXC2ABCDEF", "Design-MBP-07", 44, "F", reportArg(`"overall_score":44`), generated.UTC()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		id, err := s.SaveScorecard(context.Background(), sc)
		require.NoError(t, err)
		_, err = uuid.Parse(id)
		assert.NoError(t, err)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("missing timestamp uses the clock", func(t *testing.T) {
		s, mockPool := newMockStore(t)
		now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
		s.now = func() time.Time { return now }
		noTime := *sc
		noTime.GeneratedAt = time.Time{}

		mockPool.ExpectExec(flexibleSQLMatcher(sqlInsertScorecard)).
			WithArgs(uuidArg, "FVFXC2ABCDEF", "Design-MBP-07", 44, "F", pgxmock.AnyArg(), now).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		_, err := s.SaveScorecard(context.Background(), &noTime)
		require.NoError(t, err)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("insert error is wrapped", func(t *testing.T) {
		s, mockPool := newMockStore(t)
		dbErr := errors.New("connection reset")
		mockPool.ExpectExec(flexibleSQLMatcher(sqlInsertScorecard)).
			WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnError(dbErr)

		_, err := s.SaveScorecard(context.Background(), sc)
		assert.ErrorIs(t, err, dbErr)
		assert.Contains(t, err.Error(), "failed to insert scorecard")
	})

	t.Run("rejects scorecards without a serial", func(t *testing.T) {
		s, mockPool := newMockStore(t)
		_, err := s.SaveScorecard(context.Background(), &schemas.Scorecard{})
		assert.ErrorIs(t, err, ErrInvalidScorecard)
		_, err = s.SaveScorecard(context.Background(), nil)
		assert.ErrorIs(t, err, ErrInvalidScorecard)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestScorecardHistory(t *testing.T) {
	t1 := time.Date(2024, 4, 2, 9, 0, 0, 0, time.UTC)
	t0 := t1.Add(-24 * time.Hour)
	columns := []string{"id", "serial_number", "overall_score", "grade", "generated_at"}

	t.Run("returns rows newest first", func(t *testing.T) {
		s, mockPool := newMockStore(t)
		mockPool.ExpectQuery(flexibleSQLMatcher(sqlSelectHistory)).
			WithArgs("FVFXC2ABCDEF", 5).
			WillReturnRows(pgxmock.NewRows(columns).
				AddRow("6f1c0c1e-4a8e-4c52-9d0f-0f1b8f3a7a01", "FVFXC2ABCDEF", 71, "C", t1).
				AddRow("0d3d5b5e-2c1a-4f0e-8a3b-6c1d2e3f4a5b", "FVFXC2ABCDEF", 44, "F", t0))

		entries, err := s.ScorecardHistory(context.Background(), "FVFXC2ABCDEF", 5)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, 71, entries[0].OverallScore)
		assert.Equal(t, schemas.GradeC, entries[0].Grade)
		assert.Equal(t, t0, entries[1].GeneratedAt)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("limit defaults and caps", func(t *testing.T) {
		s, mockPool := newMockStore(t)
		mockPool.ExpectQuery(flexibleSQLMatcher(sqlSelectHistory)).
			WithArgs("C02XK1JHJGH5", DefaultHistoryLimit).
			WillReturnRows(pgxmock.NewRows(columns))
		mockPool.ExpectQuery(flexibleSQLMatcher(sqlSelectHistory)).
			WithArgs("C02XK1JHJGH5", MaxHistoryLimit).
			WillReturnRows(pgxmock.NewRows(columns))

		entries, err := s.ScorecardHistory(context.Background(), "C02XK1JHJGH5", 0)
		require.NoError(t, err)
		assert.Empty(t, entries)
		assert.NotNil(t, entries)
		_, err = s.ScorecardHistory(context.Background(), "C02XK1JHJGH5", 5000)
		require.NoError(t, err)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("query error", func(t *testing.T) {
		s, mockPool := newMockStore(t)
		mockPool.ExpectQuery(flexibleSQLMatcher(sqlSelectHistory)).
			WithArgs("C02XK1JHJGH5", DefaultHistoryLimit).
			WillReturnError(errors.New("relation \"scorecards\" does not exist"))

		_, err := s.ScorecardHistory(context.Background(), "C02XK1JHJGH5", 0)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to query scorecards")
	})
}
