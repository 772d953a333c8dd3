package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/yigit/placement/internal/app/models"
	database "github.com/yigit/placement/internal/db"
	"github.com/yigit/placement/internal/pkg/dberrors"
	"github.com/yigit/placement/internal/pkg/logger"
)

var applicationColumns = []string{
	"id", "job_id", "student_id", "student_key", "status", "round_status", "current_round_index",
	"screening_answers", "company", "title", "location", "package", "stipend",
	"offer_decision", "decision_date", "withdrawn_at", "applied_at", "updated_at", "version",
}

// ApplicationRepository is the durable application store.
// The primary key is the composite application id, so at most one row exists per (job, student).
type ApplicationRepository struct {
	db *pgxpool.Pool
	sb squirrel.StatementBuilderType
}

// NewApplicationRepository creates a new ApplicationRepository
func NewApplicationRepository(db *pgxpool.Pool) *ApplicationRepository {
	return &ApplicationRepository{db: db, sb: newBuilder()}
}

var bumpVersion = squirrel.Expr("version + 1")

func applicationScanTargets(a *models.Application) []interface{} {
	return []interface{}{
		&a.ID, &a.JobID, &a.StudentID, &a.StudentKey, &a.Status, &a.RoundStatus, &a.CurrentRoundIndex,
		&a.ScreeningAnswers, &a.Snapshot.Company, &a.Snapshot.Title, &a.Snapshot.Location,
		&a.Snapshot.Package, &a.Snapshot.Stipend, &a.OfferDecision, &a.DecisionDate, &a.WithdrawnAt,
		&a.AppliedAt, &a.UpdatedAt, &a.Version,
	}
}

func (r *ApplicationRepository) lockQuery(id string) squirrel.SelectBuilder {
	return r.sb.Select("id").From("applications").Where(squirrel.Eq{"id": id}).Suffix("FOR UPDATE")
}

func (r *ApplicationRepository) insertQuery(a *models.Application) squirrel.InsertBuilder {
	return r.sb.Insert("applications").
		Columns("id", "job_id", "student_id", "student_key", "status", "round_status", "current_round_index",
			"screening_answers", "company", "title", "location", "package", "stipend", "applied_at", "updated_at").
		Values(a.ID, a.JobID, a.StudentID, a.StudentKey, a.Status, a.RoundStatus, a.CurrentRoundIndex,
			a.ScreeningAnswers, a.Snapshot.Company, a.Snapshot.Title, a.Snapshot.Location,
			a.Snapshot.Package, a.Snapshot.Stipend, a.AppliedAt, a.UpdatedAt)
}

// CreateIfAbsent inserts the application unless its id already exists.
// The existence check and the insert share one transaction; a racing insert that wins
// the primary key surfaces as ErrAlreadyExists as well.
func (r *ApplicationRepository) CreateIfAbsent(ctx context.Context, a *models.Application) error {
	lockSQL, lockArgs, err := r.lockQuery(a.ID).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build application lock query: %w", err)
	}
	insertSQL, insertArgs, err := r.insertQuery(a).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build create application query: %w", err)
	}

	err = database.WithTransaction(ctx, r.db, func(ctx context.Context, tx pgx.Tx) error {
		var existing string
		err := tx.QueryRow(ctx, lockSQL, lockArgs...).Scan(&existing)
		switch {
		case err == nil:
			return ErrAlreadyExists
		case !errors.Is(err, pgx.ErrNoRows):
			return fmt.Errorf("error checking existing application: %w", err)
		}

		if _, err := tx.Exec(ctx, insertSQL, insertArgs...); err != nil {
			if dberrors.IsUniqueViolation(err) {
				return ErrAlreadyExists
			}
			return fmt.Errorf("error creating application: %w", err)
		}
		return nil
	})
	if err != nil && !errors.Is(err, ErrAlreadyExists) {
		logger.Error().Err(err).Str("applicationID", a.ID).Msg("Application create transaction failed")
	}
	return err
}

// GetByID retrieves an application by its composite id
func (r *ApplicationRepository) GetByID(ctx context.Context, id string) (*models.Application, error) {
	sql, args, err := r.sb.Select(applicationColumns...).
		From("applications").
		Where(squirrel.Eq{"id": id}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build get application query: %w", err)
	}

	app := &models.Application{}
	if err := r.db.QueryRow(ctx, sql, args...).Scan(applicationScanTargets(app)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error getting application: %w", err)
	}
	return app, nil
}

func (r *ApplicationRepository) updateStatusQuery(a *models.Application, expected models.ApplicationStatus) squirrel.UpdateBuilder {
	return r.sb.Update("applications").
		Set("status", a.Status).
		Set("round_status", a.RoundStatus).
		Set("current_round_index", a.CurrentRoundIndex).
		Set("updated_at", a.UpdatedAt).
		Set("version", bumpVersion).
		Where(squirrel.Eq{"id": a.ID, "status": expected, "version": a.Version})
}

// UpdateStatus writes the top-level status, the round map and the current round.
// The write only applies while the stored status still equals expected and the stored
// version still equals a.Version, the version the caller loaded.
func (r *ApplicationRepository) UpdateStatus(ctx context.Context, a *models.Application, expected models.ApplicationStatus) error {
	sql, args, err := r.updateStatusQuery(a, expected).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update application status query: %w", err)
	}
	return r.execGuarded(ctx, sql, args...)
}

// MarkWithdrawn flags a pending application as withdrawn before it is deleted
func (r *ApplicationRepository) MarkWithdrawn(ctx context.Context, id string, at time.Time) error {
	sql, args, err := r.sb.Update("applications").
		Set("status", models.StatusWithdrawn).
		Set("withdrawn_at", at).
		Set("updated_at", at).
		Set("version", bumpVersion).
		Where(squirrel.Eq{"id": id, "status": models.StatusPending}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build withdraw query: %w", err)
	}
	return r.execGuarded(ctx, sql, args...)
}

// Delete removes an application, freeing its composite id
func (r *ApplicationRepository) Delete(ctx context.Context, id string) error {
	sql, args, err := r.sb.Delete("applications").Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete application query: %w", err)
	}
	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("error deleting application: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ApplicationRepository) offerDecisionQuery(id string, status models.ApplicationStatus, decision models.OfferDecision, at time.Time) squirrel.UpdateBuilder {
	return r.sb.Update("applications").
		Set("status", status).
		Set("offer_decision", decision).
		Set("decision_date", at).
		Set("updated_at", at).
		Set("version", bumpVersion).
		Where(squirrel.Eq{"id": id, "offer_decision": nil})
}

// RecordOfferDecision stores the student's decision once; a second decision matches no row
func (r *ApplicationRepository) RecordOfferDecision(ctx context.Context, id string, status models.ApplicationStatus, decision models.OfferDecision, at time.Time) error {
	sql, args, err := r.offerDecisionQuery(id, status, decision, at).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build offer decision query: %w", err)
	}
	return r.execGuarded(ctx, sql, args...)
}

// ListByStudent returns a student's applications, newest first
func (r *ApplicationRepository) ListByStudent(ctx context.Context, studentID string) ([]*models.Application, error) {
	sql, args, err := r.sb.Select(applicationColumns...).
		From("applications").
		Where(squirrel.Eq{"student_id": studentID}).
		OrderBy("applied_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build list applications query: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying applications: %w", err)
	}
	defer rows.Close()

	apps := []*models.Application{}
	for rows.Next() {
		app := &models.Application{}
		if err := rows.Scan(applicationScanTargets(app)...); err != nil {
			return nil, fmt.Errorf("error scanning application row: %w", err)
		}
		apps = append(apps, app)
	}
	return apps, rows.Err()
}

func (r *ApplicationRepository) listByJobQuery(jobID string, status models.ApplicationStatus, offset, limit uint64) squirrel.SelectBuilder {
	q := r.sb.Select(append(append([]string{}, applicationColumns...), "COUNT(*) OVER() AS total_count")...).
		From("applications").
		Where(squirrel.Eq{"job_id": jobID})
	if status != "" {
		q = q.Where(squirrel.Eq{"status": status})
	}
	return q.OrderBy("applied_at ASC").Limit(limit).Offset(offset)
}

// ListByJob returns one page of a job's applications, optionally filtered by status
func (r *ApplicationRepository) ListByJob(ctx context.Context, jobID string, status models.ApplicationStatus, offset, limit uint64) ([]*models.Application, int64, error) {
	sql, args, err := r.listByJobQuery(jobID, status, offset, limit).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build list job applications query: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("error querying job applications: %w", err)
	}
	defer rows.Close()

	var (
		apps  = []*models.Application{}
		total int64
	)
	for rows.Next() {
		app := &models.Application{}
		if err := rows.Scan(append(applicationScanTargets(app), &total)...); err != nil {
			return nil, 0, fmt.Errorf("error scanning application row: %w", err)
		}
		apps = append(apps, app)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return apps, total, nil
}

func (r *ApplicationRepository) execGuarded(ctx context.Context, sql string, args ...interface{}) error {
	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("error updating application: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStaleState
	}
	return nil
}
