package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"veriflow/pkg/domain"
)

// PostgresStore persists events to the audit_events table.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres opens a pooled connection and verifies it responds.
func NewPostgres(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping audit db: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// EnsureSchema creates the audit_events table when it does not exist yet.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	const q = `
		CREATE TABLE IF NOT EXISTS audit_events (
			id         UUID PRIMARY KEY,
			timestamp  TIMESTAMPTZ NOT NULL,
			session_id UUID NOT NULL,
			action     TEXT NOT NULL,
			detail     TEXT NOT NULL DEFAULT '',
			live       BOOLEAN NOT NULL
		);
		CREATE INDEX IF NOT EXISTS audit_events_session_idx
			ON audit_events (session_id, timestamp);
	`
	if _, err := s.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("ensure audit schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Append(ctx context.Context, ev Event) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	const q = `
		INSERT INTO audit_events (id, timestamp, session_id, action, detail, live)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.db.ExecContext(ctx, q,
		uuid.New(),
		ev.Timestamp,
		uuid.UUID(ev.SessionID),
		string(ev.Action),
		ev.Detail,
		ev.Live,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListBySession(ctx context.Context, id domain.SessionID) ([]Event, error) {
	const q = `
		SELECT timestamp, session_id, action, detail, live
		FROM audit_events
		WHERE session_id = $1
		ORDER BY timestamp ASC
	`
	rows, err := s.db.QueryContext(ctx, q, uuid.UUID(id))
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func (s *PostgresStore) ListRecent(ctx context.Context, limit int) ([]Event, error) {
	const q = `
		SELECT timestamp, session_id, action, detail, live
		FROM audit_events
		ORDER BY timestamp DESC
		LIMIT $1
	`
	rows, err := s.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func scanEvents(rows *sql.Rows) ([]Event, error) {
	var events []Event
	for rows.Next() {
		var (
			ev     Event
			sid    uuid.UUID
			action string
		)
		if err := rows.Scan(&ev.Timestamp, &sid, &action, &ev.Detail, &ev.Live); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		ev.SessionID = domain.SessionID(sid)
		ev.Action = Action(action)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}
