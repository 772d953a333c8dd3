package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/yigit/placement/internal/app/models"
)

// AuditRepository appends admin actions to 'admin_audit_log'
type AuditRepository struct {
	db *pgxpool.Pool
	sb squirrel.StatementBuilderType
}

// NewAuditRepository creates a new AuditRepository
func NewAuditRepository(db *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{db: db, sb: newBuilder()}
}

// insertQuery fills in the id and timestamp when unset
func (r *AuditRepository) insertQuery(entry *models.AuditLogEntry) squirrel.InsertBuilder {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if entry.Payload == nil {
		entry.Payload = map[string]any{}
	}
	return r.sb.Insert("admin_audit_log").
		Columns("id", "actor", "action", "target_count", "payload", "created_at").
		Values(entry.ID, entry.Actor, entry.Action, entry.TargetCount, entry.Payload, entry.CreatedAt)
}

// Record appends one audit entry
func (r *AuditRepository) Record(ctx context.Context, entry *models.AuditLogEntry) error {
	sql, args, err := r.insertQuery(entry).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build audit insert query: %w", err)
	}
	if _, err := r.db.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("error recording audit entry: %w", err)
	}
	return nil
}
