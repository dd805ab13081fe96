package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vmbridge/vagrantmcp/internal/infra/eventbus"
)

// Recorder persists invocation records. Writes are append-only; there is no
// update or delete path.
type Recorder struct {
	db  *sql.DB
	log *slog.Logger
}

// NewRecorder creates a Recorder on an already-migrated database.
func NewRecorder(db *sql.DB, log *slog.Logger) *Recorder {
	if log == nil {
		log = slog.Default()
	}
	return &Recorder{db: db, log: log}
}

// Record inserts one invocation row. ID and CreatedAt are filled in when the
// caller left them zero.
func (r *Recorder) Record(ctx context.Context, inv Invocation) error {
	if inv.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("audit: generate id: %w", err)
		}
		inv.ID = id.String()
	}
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = time.Now().UTC()
	}

	argv, err := json.Marshal(inv.Argv)
	if err != nil {
		return fmt.Errorf("audit: marshal argv: %w", err)
	}

	timedOut := 0
	if inv.TimedOut {
		timedOut = 1
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO invocation (
			id, tool, argv, directory, outcome,
			exit_code, duration_ms, timed_out, detail, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		inv.ID,
		inv.Tool,
		string(argv),
		inv.Directory,
		string(inv.Outcome),
		inv.ExitCode,
		inv.Duration.Milliseconds(),
		timedOut,
		inv.Detail,
		inv.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("audit: insert invocation: %w", err)
	}
	return nil
}

// Consume drains invocation events from the bus until ctx is cancelled.
// Recording failures are logged and swallowed; the audit trail is
// best-effort diagnostics, never a reason to disturb serving.
func (r *Recorder) Consume(ctx context.Context, events <-chan eventbus.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			inv, valid := evt.Payload.(Invocation)
			if !valid {
				r.log.Warn("audit: unexpected event payload", "topic", evt.Topic)
				continue
			}
			if err := r.Record(ctx, inv); err != nil {
				r.log.Warn("audit: record failed", "tool", inv.Tool, "error", err)
			}
		}
	}
}

// Recent returns the newest records, newest first. Operator tooling only;
// nothing on the request path calls this.
func (r *Recorder) Recent(ctx context.Context, limit int) ([]*Invocation, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, tool, argv, directory, outcome,
		       exit_code, duration_ms, timed_out, detail, created_at
		FROM invocation
		ORDER BY created_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("audit: query recent: %w", err)
	}
	defer rows.Close()

	out := make([]*Invocation, 0, limit)
	for rows.Next() {
		inv, scanErr := scanInvocation(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func scanInvocation(rows *sql.Rows) (*Invocation, error) {
	var (
		inv        Invocation
		argvRaw    string
		outcome    string
		durationMS int64
		timedOut   int
		detail     sql.NullString
		createdAt  string
	)
	if err := rows.Scan(
		&inv.ID,
		&inv.Tool,
		&argvRaw,
		&inv.Directory,
		&outcome,
		&inv.ExitCode,
		&durationMS,
		&timedOut,
		&detail,
		&createdAt,
	); err != nil {
		return nil, fmt.Errorf("audit: scan invocation: %w", err)
	}

	if err := json.Unmarshal([]byte(argvRaw), &inv.Argv); err != nil {
		return nil, fmt.Errorf("audit: unmarshal argv: %w", err)
	}
	inv.Outcome = Outcome(outcome)
	inv.Duration = time.Duration(durationMS) * time.Millisecond
	inv.TimedOut = timedOut == 1
	if detail.Valid {
		inv.Detail = detail.String
	}
	if ts, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		inv.CreatedAt = ts
	}
	return &inv, nil
}
