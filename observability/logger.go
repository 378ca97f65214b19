package observability

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/valentine/dbopen"
	"github.com/hazyhaar/valentine/idgen"
)

// Event types written by the page server.
const (
	EventSessionCreated = "session_created"
	EventSessionClosed  = "session_closed"
	EventAttempt        = "verification_attempt"
	EventUnlocked       = "gate_unlocked"
	EventAnswer         = "answer"
)

// BusinessEvent represents a domain-level event to record.
type BusinessEvent struct {
	EventType   string
	ServiceName string
	SessionID   string
	Action      string
	Details     map[string]any
	Success     bool
	CreatedAt   time.Time
}

// EventLogger writes business events to sqlite.
type EventLogger struct {
	db     *sql.DB
	newID  idgen.Generator
	now    func() time.Time
	logger *slog.Logger
}

// EventLoggerOption configures an EventLogger.
type EventLoggerOption func(*EventLogger)

// WithEventIDGenerator sets a custom ID generator for event IDs.
func WithEventIDGenerator(gen idgen.Generator) EventLoggerOption {
	return func(l *EventLogger) { l.newID = gen }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) EventLoggerOption {
	return func(l *EventLogger) { l.now = now }
}

// WithLogger sets the slog logger used to report write failures.
func WithLogger(logger *slog.Logger) EventLoggerOption {
	return func(l *EventLogger) { l.logger = logger }
}

// NewEventLogger creates a logger backed by the given database. A nil db
// yields a logger that only reports to slog.
func NewEventLogger(db *sql.DB, opts ...EventLoggerOption) *EventLogger {
	l := &EventLogger{
		db:     db,
		newID:  idgen.Prefixed("evt_", idgen.Default),
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// LogEvent records a business event. Errors are logged via slog and never
// propagate; a failing event store must not break a session.
func (l *EventLogger) LogEvent(ctx context.Context, event BusinessEvent) {
	if l == nil {
		return
	}
	if l.db == nil {
		l.logger.Debug("event", "type", event.EventType, "session", event.SessionID, "action", event.Action)
		return
	}
	var details any
	if len(event.Details) > 0 {
		b, err := json.Marshal(event.Details)
		if err != nil {
			l.logger.Warn("observability: marshal details", "error", err, "event_type", event.EventType)
		} else {
			details = string(b)
		}
	}
	_, err := dbopen.Exec(ctx, l.db, `
		INSERT INTO business_event_logs (
			event_id, event_type, service_name, session_id, action, details, success, created_at
		) VALUES (?,?,?,?,?,?,?,?)`,
		l.newID(), event.EventType, event.ServiceName, nullable(event.SessionID),
		event.Action, details, event.Success, l.now().Unix())
	if err != nil {
		l.logger.Error("observability event log failed", "error", err, "event_type", event.EventType)
	}
}

// EventFilter narrows Query. Zero fields match everything.
type EventFilter struct {
	SessionID string
	EventType string
	Limit     int
}

// Query returns events in insertion order.
func (l *EventLogger) Query(ctx context.Context, f EventFilter) ([]BusinessEvent, error) {
	if l == nil || l.db == nil {
		return nil, nil
	}
	q := `SELECT event_type, service_name, COALESCE(session_id, ''), action,
		COALESCE(details, ''), success, created_at
		FROM business_event_logs WHERE 1=1`
	var args []any
	if f.SessionID != "" {
		q += " AND session_id = ?"
		args = append(args, f.SessionID)
	}
	if f.EventType != "" {
		q += " AND event_type = ?"
		args = append(args, f.EventType)
	}
	q += " ORDER BY created_at, rowid"
	if f.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := l.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("observability: query events: %w", err)
	}
	defer rows.Close()

	var out []BusinessEvent
	for rows.Next() {
		var (
			e       BusinessEvent
			details string
			created int64
		)
		if err := rows.Scan(&e.EventType, &e.ServiceName, &e.SessionID, &e.Action, &details, &e.Success, &created); err != nil {
			return nil, fmt.Errorf("observability: scan event: %w", err)
		}
		if details != "" {
			if err := json.Unmarshal([]byte(details), &e.Details); err != nil {
				return nil, fmt.Errorf("observability: decode details: %w", err)
			}
		}
		e.CreatedAt = time.Unix(created, 0)
		out = append(out, e)
	}
	return out, rows.Err()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// RetentionConfig specifies retention in days. Zero means no cleanup.
type RetentionConfig struct {
	EventLogsDays  int
	RunVacuumAfter bool
}

// Cleanup deletes events older than the retention threshold.
func Cleanup(ctx context.Context, db *sql.DB, cfg RetentionConfig) (int64, error) {
	if cfg.EventLogsDays <= 0 {
		return 0, nil
	}
	cutoff := time.Now().Unix() - int64(cfg.EventLogsDays*86400)

	var removed int64
	err := dbopen.RunTx(ctx, db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "DELETE FROM business_event_logs WHERE created_at < ?", cutoff)
		if err != nil {
			return err
		}
		removed, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("cleanup business_event_logs: %w", err)
	}

	if cfg.RunVacuumAfter && removed > 0 {
		if _, err := db.ExecContext(ctx, "VACUUM"); err != nil {
			return removed, fmt.Errorf("vacuum: %w", err)
		}
	}
	return removed, nil
}

// RunRetention calls Cleanup every interval until ctx is cancelled.
func RunRetention(ctx context.Context, db *sql.DB, cfg RetentionConfig, interval time.Duration, logger *slog.Logger) {
	if cfg.EventLogsDays <= 0 || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := Cleanup(ctx, db, cfg)
			if err != nil {
				logger.Warn("event retention failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("event retention", "removed", n)
			}
		}
	}
}
