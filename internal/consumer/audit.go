package consumer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgconn"
)

// AuditSchema creates the roster log table. Replays of the same event_id are ignored.
const AuditSchema = `CREATE TABLE IF NOT EXISTS activity_roster_log (
    event_id          TEXT PRIMARY KEY,
    event_type        TEXT        NOT NULL,
    activity          TEXT        NOT NULL,
    email             TEXT        NOT NULL,
    participant_count INTEGER     NOT NULL,
    occurred_at       TIMESTAMPTZ NOT NULL,
    schema_id         INTEGER     NOT NULL,
    topic             TEXT        NOT NULL,
    partition         INTEGER     NOT NULL,
    record_offset     BIGINT      NOT NULL,
    payload           JSONB       NOT NULL,
    received_at       TIMESTAMPTZ NOT NULL DEFAULT now()
)`

const insertRosterLog = `INSERT INTO activity_roster_log
    (event_id, event_type, activity, email, participant_count, occurred_at, schema_id, topic, partition, record_offset, payload)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (event_id) DO NOTHING`

// Execer is satisfied by *pgxpool.Pool and pgx.Conn.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresAuditHandler writes roster events into activity_roster_log.
type PostgresAuditHandler struct {
	db Execer
}

// NewPostgresAuditHandler constructs a handler backed by db.
func NewPostgresAuditHandler(db Execer) *PostgresAuditHandler {
	return &PostgresAuditHandler{db: db}
}

// EnsureSchema creates the audit table if it does not exist.
func (h *PostgresAuditHandler) EnsureSchema(ctx context.Context) error {
	_, err := h.db.Exec(ctx, AuditSchema)
	return err
}

// Handle stores one roster event.
func (h *PostgresAuditHandler) Handle(ctx context.Context, msg Message) error {
	evt, err := msg.Roster()
	if err != nil {
		return err
	}
	eventID := evt.EventID
	if eventID == "" {
		eventID = msg.EventID
	}
	if eventID == "" {
		return fmt.Errorf("roster event at %s/%d/%d has no event id", msg.Topic, msg.Partition, msg.Offset)
	}

	_, err = h.db.Exec(ctx, insertRosterLog,
		eventID,
		msg.EventType,
		evt.Activity,
		evt.Email,
		evt.ParticipantCount,
		evt.OccurredAt,
		msg.SchemaID,
		msg.Topic,
		msg.Partition,
		msg.Offset,
		[]byte(msg.Payload),
	)
	return err
}

// LogHandler writes each roster event to a structured log. Used when no
// Postgres URL is configured.
type LogHandler struct {
	logger *slog.Logger
}

// NewLogHandler constructs a LogHandler.
func NewLogHandler(logger *slog.Logger) *LogHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogHandler{logger: logger}
}

// Handle logs the event.
func (h *LogHandler) Handle(_ context.Context, msg Message) error {
	evt, err := msg.Roster()
	if err != nil {
		return err
	}
	h.logger.Info("roster event",
		slog.String("event_type", msg.EventType),
		slog.String("event_id", evt.EventID),
		slog.String("activity", evt.Activity),
		slog.String("email", evt.Email),
		slog.Int("participant_count", evt.ParticipantCount),
		slog.Time("occurred_at", evt.OccurredAt))
	return nil
}
