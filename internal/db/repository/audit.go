package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"lakeboard/internal/domain"
)

// AuditRepo implements domain.AuditSink on the access_audit table. Inserts
// are best-effort: a failed insert is logged, never propagated, so a slow or
// broken audit backend cannot block authorization decisions.
type AuditRepo struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewAuditRepo(db *sql.DB, logger *slog.Logger) *AuditRepo {
	return &AuditRepo{db: db, logger: logger}
}

func (r *AuditRepo) Record(ctx context.Context, event domain.AccessEvent) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	groups, err := json.Marshal(event.Groups)
	if err != nil {
		groups = []byte("[]")
	}

	granted := 0
	if event.Granted {
		granted = 1
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO access_audit (id, ts, user_email, user_id, resource, action, granted, groups)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID, event.Timestamp, event.UserEmail, event.UserID,
		event.Resource, event.Action, granted, string(groups))
	if err != nil && r.logger != nil {
		r.logger.Warn("audit insert failed",
			"user", event.UserEmail, "resource", event.Resource, "error", err)
	}
}

// List returns the most recent events for a user, newest first.
func (r *AuditRepo) List(ctx context.Context, userEmail string, limit int) ([]domain.AccessEvent, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, ts, user_email, user_id, resource, action, granted, groups
		 FROM access_audit WHERE user_email = ? ORDER BY ts DESC LIMIT ?`,
		userEmail, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.AccessEvent
	for rows.Next() {
		var e domain.AccessEvent
		var granted int
		var groups string
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.UserEmail, &e.UserID, &e.Resource, &e.Action, &granted, &groups); err != nil {
			return nil, err
		}
		e.Granted = granted == 1
		_ = json.Unmarshal([]byte(groups), &e.Groups)
		events = append(events, e)
	}
	return events, rows.Err()
}
