package pg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/campusmind/twofactor/pkg/audit"
)

var auditColumns = []string{
	"id", "user_id", "action", "result", "error",
	"request_id", "ip", "user_agent", "metadata", "created_at",
}

// Copier is the subset of *pgxpool.Pool the audit writer needs.
type Copier interface {
	CopyFrom(ctx context.Context, table pgx.Identifier, columns []string, src pgx.CopyFromSource) (int64, error)
}

// AuditWriter appends audit events to twofactor_audit_events with COPY.
type AuditWriter struct {
	db Copier
}

func NewAuditWriter(db Copier) *AuditWriter {
	return &AuditWriter{db: db}
}

func (w *AuditWriter) Store(ctx context.Context, event audit.Event) error {
	return w.StoreBatch(ctx, []audit.Event{event})
}

func (w *AuditWriter) StoreBatch(ctx context.Context, events []audit.Event) error {
	if len(events) == 0 {
		return nil
	}
	rows := make([][]any, 0, len(events))
	for _, e := range events {
		row, err := auditRow(e)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}

	n, err := w.db.CopyFrom(ctx, pgx.Identifier{"twofactor_audit_events"}, auditColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return errors.Join(audit.ErrStorageNotAvailable, err)
	}
	if n != int64(len(rows)) {
		return fmt.Errorf("pg: copied %d of %d audit events", n, len(rows))
	}
	return nil
}

func auditRow(e audit.Event) ([]any, error) {
	id, err := uuid.Parse(e.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: id: %w", audit.ErrEventValidation, err)
	}
	var meta []byte
	if len(e.Metadata) > 0 {
		if meta, err = json.Marshal(e.Metadata); err != nil {
			return nil, fmt.Errorf("%w: metadata: %w", audit.ErrEventValidation, err)
		}
	}
	return []any{
		id, e.UserID, e.Action, string(e.Result), e.Error,
		e.RequestID, e.IP, e.UserAgent, meta, e.CreatedAt,
	}, nil
}
