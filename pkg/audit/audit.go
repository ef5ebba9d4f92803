package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event types recorded by the authentication core
const (
	EventUserNotFound           = "user_not_found"
	EventAccountLocked          = "account_locked"
	EventInvalidPassword        = "invalid_password"
	EventUserInactive           = "user_inactive"
	EventPending2FA             = "pending_2fa"
	EventInvalid2FACode         = "invalid_2fa_code"
	EventLoginSuccess           = "login_success"
	EventPasswordResetRequested = "password_reset_requested"
	EventPasswordReset          = "password_reset"
	EventPasswordChanged        = "password_changed"
	EventBackupCodesRegenerated = "backup_codes_regenerated"
)

// Event statuses
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Event is a single audit record. AccountID may be uuid.Nil when the
// subject account could not be resolved (e.g. unknown email).
type Event struct {
	AccountID uuid.UUID
	Email     string
	EventType string
	Status    string
	Details   map[string]interface{}
	CreatedAt time.Time
}

// Logger is the audit sink consumed by the login orchestrator. LogEvent is
// fire-and-forget: implementations must never let a sink failure propagate
// into the authentication flow. CountRecentEvents backs the password-reset
// request ceiling, which is derived from the event log rather than a
// dedicated counter table.
type Logger interface {
	LogEvent(ctx context.Context, event Event)
	CountRecentEvents(ctx context.Context, email, eventType string, since time.Time) (int, error)
}

// InMemoryLogger keeps events in memory. It doubles as the test recorder.
type InMemoryLogger struct {
	mu     sync.RWMutex
	events []Event
}

func NewInMemoryLogger() *InMemoryLogger {
	return &InMemoryLogger{}
}

func (l *InMemoryLogger) LogEvent(ctx context.Context, event Event) {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	l.mu.Lock()
	l.events = append(l.events, event)
	l.mu.Unlock()

	slog.Debug("audit event", "type", event.EventType, "status", event.Status)
}

func (l *InMemoryLogger) CountRecentEvents(ctx context.Context, email, eventType string, since time.Time) (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	count := 0
	for _, e := range l.events {
		if e.Email == email && e.EventType == eventType && e.CreatedAt.After(since) {
			count++
		}
	}
	return count, nil
}

// Events returns a snapshot of all recorded events
func (l *InMemoryLogger) Events() []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out
}

// EventsOfType returns recorded events matching the given type
func (l *InMemoryLogger) EventsOfType(eventType string) []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []Event
	for _, e := range l.events {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}
