package repositories

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/yigit/placement/internal/app/models"
	database "github.com/yigit/placement/internal/db"
	"github.com/yigit/placement/internal/pkg/logger"
)

// FreezeRepository writes freeze state changes with their history as one batch
type FreezeRepository struct {
	db    *pgxpool.Pool
	sb    squirrel.StatementBuilderType
	audit *AuditRepository
}

// NewFreezeRepository creates a new FreezeRepository
func NewFreezeRepository(db *pgxpool.Pool, audit *AuditRepository) *FreezeRepository {
	return &FreezeRepository{db: db, sb: newBuilder(), audit: audit}
}

type batchStmt struct {
	sql  string
	args []interface{}
	// mustAffect requires the statement to touch a row
	mustAffect bool
	studentID  string
}

// buildBatch renders one UPDATE and one history INSERT per change, plus the optional audit row
func (r *FreezeRepository) buildBatch(changes []models.StudentFreezeChange, audit *models.AuditLogEntry) ([]batchStmt, error) {
	stmts := make([]batchStmt, 0, len(changes)*2+1)
	for _, c := range changes {
		updated := c.History.At
		sql, args, err := r.sb.Update("students").
			Set("freeze", c.Freeze).
			Set("updated_at", updated).
			Where(squirrel.Eq{"id": c.StudentID}).
			ToSql()
		if err != nil {
			return nil, fmt.Errorf("failed to build freeze update: %w", err)
		}
		stmts = append(stmts, batchStmt{sql: sql, args: args, mustAffect: true, studentID: c.StudentID})

		h := c.History
		sql, args, err = r.sb.Insert("freeze_history").
			Columns("student_id", "action", "reason", "category", "actor", "at", "until").
			Values(c.StudentID, h.Action, h.Reason, h.Category, h.By, h.At, h.Until).
			ToSql()
		if err != nil {
			return nil, fmt.Errorf("failed to build freeze history insert: %w", err)
		}
		stmts = append(stmts, batchStmt{sql: sql, args: args, studentID: c.StudentID})
	}

	if audit != nil {
		sql, args, err := r.audit.insertQuery(audit).ToSql()
		if err != nil {
			return nil, fmt.Errorf("failed to build audit insert: %w", err)
		}
		stmts = append(stmts, batchStmt{sql: sql, args: args})
	}
	return stmts, nil
}

// ApplyChanges commits every change, its history row and the audit row all-or-nothing
func (r *FreezeRepository) ApplyChanges(ctx context.Context, changes []models.StudentFreezeChange, audit *models.AuditLogEntry) error {
	if len(changes) == 0 {
		return nil
	}

	stmts, err := r.buildBatch(changes, audit)
	if err != nil {
		return err
	}

	return database.WithTransaction(ctx, r.db, func(ctx context.Context, tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, s := range stmts {
			batch.Queue(s.sql, s.args...)
		}

		results := tx.SendBatch(ctx, batch)
		for _, s := range stmts {
			tag, err := results.Exec()
			if err != nil {
				results.Close()
				return fmt.Errorf("freeze batch failed for student %q: %w", s.studentID, err)
			}
			if s.mustAffect && tag.RowsAffected() == 0 {
				results.Close()
				return fmt.Errorf("student %q: %w", s.studentID, ErrNotFound)
			}
		}
		if err := results.Close(); err != nil {
			return fmt.Errorf("error closing freeze batch: %w", err)
		}

		logger.Debug().Int("students", len(changes)).Msg("Freeze batch committed")
		return nil
	})
}

// History returns the freeze log of a student, newest first
func (r *FreezeRepository) History(ctx context.Context, studentID string) ([]models.FreezeHistoryEntry, error) {
	sql, args, err := r.sb.Select("id", "student_id", "action", "reason", "category", "actor", "at", "until").
		From("freeze_history").
		Where(squirrel.Eq{"student_id": studentID}).
		OrderBy("at DESC", "id DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build freeze history query: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying freeze history: %w", err)
	}
	defer rows.Close()

	entries := []models.FreezeHistoryEntry{}
	for rows.Next() {
		var e models.FreezeHistoryEntry
		if err := rows.Scan(&e.ID, &e.StudentID, &e.Action, &e.Reason, &e.Category, &e.By, &e.At, &e.Until); err != nil {
			return nil, fmt.Errorf("error scanning freeze history row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
