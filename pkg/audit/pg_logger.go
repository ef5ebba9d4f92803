package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

var _ Logger = (*PostgresLogger)(nil)

// PostgresLogger persists audit events to an audit_events table.
type PostgresLogger struct {
	pool *pgxpool.Pool
}

func NewPostgresLogger(pool *pgxpool.Pool) *PostgresLogger {
	return &PostgresLogger{pool: pool}
}

// LogEvent inserts the event, logging and swallowing any storage error.
func (l *PostgresLogger) LogEvent(ctx context.Context, event Event) {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	var details []byte
	if event.Details != nil {
		var err error
		details, err = json.Marshal(event.Details)
		if err != nil {
			slog.Error("Failed to marshal audit event details", "err", err)
			details = nil
		}
	}

	var accountID *uuid.UUID
	if event.AccountID != uuid.Nil {
		accountID = &event.AccountID
	}

	query := `INSERT INTO audit_events (id, account_id, email, event_type, status, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := l.pool.Exec(ctx, query,
		uuid.New(), accountID, event.Email, event.EventType, event.Status, details, event.CreatedAt)
	if err != nil {
		slog.Error("Failed to persist audit event", "type", event.EventType, "err", err)
	}
}

func (l *PostgresLogger) CountRecentEvents(ctx context.Context, email, eventType string, since time.Time) (int, error) {
	query := `SELECT count(*) FROM audit_events
		WHERE email = $1 AND event_type = $2 AND created_at > $3`

	var count int
	if err := l.pool.QueryRow(ctx, query, email, eventType, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("count audit events: %w", err)
	}
	return count, nil
}
