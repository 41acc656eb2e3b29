package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/xkilldash9x/jamf-mcp/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	// DefaultHistoryLimit is used when a caller asks for no particular limit.
	DefaultHistoryLimit = 10
	// MaxHistoryLimit caps a single history query.
	MaxHistoryLimit = 100
)

// ErrInvalidScorecard is returned for scorecards that cannot be attributed to a device.
var ErrInvalidScorecard = errors.New("scorecard has no serial number")

const sqlCreateSchema = `
        CREATE TABLE IF NOT EXISTS scorecards (
            id            UUID PRIMARY KEY,
            serial_number TEXT        NOT NULL,
            computer_name TEXT        NOT NULL DEFAULT '',
            overall_score INTEGER     NOT NULL,
            grade         TEXT        NOT NULL,
            report        JSONB       NOT NULL,
            generated_at  TIMESTAMPTZ NOT NULL
        );
        CREATE INDEX IF NOT EXISTS scorecards_serial_generated_idx
            ON scorecards (serial_number, generated_at DESC);
    `

const sqlInsertScorecard = `
        INSERT INTO scorecards (id, serial_number, computer_name, overall_score, grade, report, generated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7);
    `

const sqlSelectHistory = `
        SELECT id, serial_number, overall_score, grade, generated_at
        FROM scorecards
        WHERE serial_number = $1
        ORDER BY generated_at DESC
        LIMIT $2;
    `

// DBPool is the subset of pgxpool.Pool the store uses, so tests can substitute pgxmock.
type DBPool interface {
	Ping(ctx context.Context) error
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Entry summarizes one stored scorecard.
type Entry struct {
	ID           string        `json:"id"`
	SerialNumber string        `json:"serial_number"`
	OverallScore int           `json:"overall_score"`
	Grade        schemas.Grade `json:"grade"`
	GeneratedAt  time.Time     `json:"generated_at"`
}

// Store keeps generated scorecards in PostgreSQL.
type Store struct {
	pool DBPool
	log  *zap.Logger
	now  func() time.Time
}

// New creates a new store instance and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		pool: pool,
		log:  logger.Named("store"),
		now:  time.Now,
	}, nil
}

// Open connects a pgx pool to databaseURL and ensures the schema exists. The
// returned close function releases the pool.
func Open(ctx context.Context, databaseURL string, logger *zap.Logger) (*Store, func(), error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create database pool: %w", err)
	}
	s, err := New(ctx, pool, logger)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return s, pool.Close, nil
}

// EnsureSchema creates the scorecards table if it is missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, sqlCreateSchema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// SaveScorecard stores sc and returns its generated id.
func (s *Store) SaveScorecard(ctx context.Context, sc *schemas.Scorecard) (string, error) {
	if sc == nil || sc.SerialNumber == "" {
		return "", ErrInvalidScorecard
	}
	report, err := json.Marshal(sc)
	if err != nil {
		return "", fmt.Errorf("failed to encode scorecard: %w", err)
	}
	generatedAt := sc.GeneratedAt
	if generatedAt.IsZero() {
		generatedAt = s.now()
	}

	id := uuid.NewString()
	tag, err := s.pool.Exec(ctx, sqlInsertScorecard,
		id, sc.SerialNumber, sc.ComputerName, sc.OverallScore, string(sc.Grade), report, generatedAt.UTC())
	if err != nil {
		return "", fmt.Errorf("failed to insert scorecard: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return "", fmt.Errorf("failed to insert scorecard: %d rows affected", tag.RowsAffected())
	}
	s.log.Debug("Stored scorecard.", zap.String("id", id), zap.String("serial", sc.SerialNumber))
	return id, nil
}

// ScorecardHistory returns up to limit stored scorecards for serial, newest first.
func (s *Store) ScorecardHistory(ctx context.Context, serial string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	rows, err := s.pool.Query(ctx, sqlSelectHistory, serial, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query scorecards: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var (
			e     Entry
			grade string
		)
		if err := rows.Scan(&e.ID, &e.SerialNumber, &e.OverallScore, &grade, &e.GeneratedAt); err != nil {
			return nil, fmt.Errorf("failed to scan scorecard row: %w", err)
		}
		e.Grade = schemas.Grade(grade)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return entries, nil
}
