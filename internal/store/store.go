package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/nkratz/pagepilot/api/schemas"
)

// DBPool abstracts pgxpool.Pool so the store can be tested against pgxmock.
type DBPool interface {
	Ping(ctx context.Context) error
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

// Store persists session lifecycles and the actions executed against them.
// It is insert/query only; the demo server is the single writer.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

// New creates a store and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Store{
		pool: pool,
		log:  logger.Named("store"),
	}, nil
}

// CreateSession records a newly started browser session.
func (s *Store) CreateSession(ctx context.Context, id string, metadata json.RawMessage) error {
	if len(metadata) == 0 || string(metadata) == "null" {
		metadata = json.RawMessage("{}")
	}

	_, err := s.pool.Exec(ctx, `
        INSERT INTO sessions (id, status, metadata, created_at)
        VALUES ($1, 'running', $2, $3);
    `, id, metadata, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to insert session %s: %w", id, err)
	}
	return nil
}

// EndSession marks a session as ended.
func (s *Store) EndSession(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `
        UPDATE sessions SET status = 'ended', ended_at = $2
        WHERE id = $1 AND status = 'running';
    `, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to end session %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		s.log.Debug("end requested for unknown or already-ended session", zap.String("session_id", id))
	}
	return nil
}

// RecordAction persists one completed (or failed) action.
func (s *Store) RecordAction(ctx context.Context, rec *schemas.ActionRecord) error {
	input := rec.Input
	if len(input) == 0 || string(input) == "null" {
		input = json.RawMessage("{}")
	}
	output := rec.Output
	if len(output) == 0 || string(output) == "null" {
		output = json.RawMessage("{}")
	}

	_, err := s.pool.Exec(ctx, `
        INSERT INTO actions (id, session_id, kind, input, output, status, error, started_at, finished_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);
    `,
		rec.ID, rec.SessionID, string(rec.Kind),
		input, output,
		string(rec.Status), rec.Error,
		rec.StartedAt.UTC(), rec.FinishedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert action %s: %w", rec.ID, err)
	}
	return nil
}

// ListSessions returns every recorded session, newest first.
func (s *Store) ListSessions(ctx context.Context) ([]schemas.SessionRecord, error) {
	rows, err := s.pool.Query(ctx, `
        SELECT id, status, metadata, created_at, ended_at
        FROM sessions
        ORDER BY created_at DESC;
    `)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var records []schemas.SessionRecord
	for rows.Next() {
		var rec schemas.SessionRecord
		if err := rows.Scan(&rec.ID, &rec.Status, &rec.Metadata, &rec.CreatedAt, &rec.EndedAt); err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return records, nil
}

// ListActions returns a session's actions in execution order.
func (s *Store) ListActions(ctx context.Context, sessionID string) ([]schemas.ActionRecord, error) {
	rows, err := s.pool.Query(ctx, `
        SELECT id, kind, input, output, status, error, started_at, finished_at
        FROM actions
        WHERE session_id = $1
        ORDER BY started_at ASC;
    `, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query actions: %w", err)
	}
	defer rows.Close()

	var records []schemas.ActionRecord
	for rows.Next() {
		var rec schemas.ActionRecord
		var kind, status string

		if err := rows.Scan(
			&rec.ID, &kind, &rec.Input, &rec.Output,
			&status, &rec.Error, &rec.StartedAt, &rec.FinishedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan action row: %w", err)
		}

		rec.SessionID = sessionID
		rec.Kind = schemas.ActionKind(kind)
		rec.Status = schemas.ActionStatus(status)
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return records, nil
}
