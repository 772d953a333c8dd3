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
	"github.com/yigit/placement/internal/pkg/dberrors"
	"github.com/yigit/placement/internal/pkg/logger"
)

var jobColumns = []string{
	"id", "company", "title", "description", "location", "package", "stipend", "status",
	"deadline", "rounds", "current_round", "min_cgpa", "required_skills", "eligible_batches",
	"gender_preference", "max_current_arrears", "max_history_arrears", "screening_questions",
	"created_at", "updated_at",
}

// JobFilter narrows job listings
type JobFilter struct {
	Status models.JobStatus
}

// JobRepository handles job posting database operations
type JobRepository struct {
	db *pgxpool.Pool
	sb squirrel.StatementBuilderType
}

// NewJobRepository creates a new JobRepository
func NewJobRepository(db *pgxpool.Pool) *JobRepository {
	return &JobRepository{db: db, sb: newBuilder()}
}

func jobScanTargets(j *models.Job, currentRound **string) []interface{} {
	return []interface{}{
		&j.ID, &j.Company, &j.Title, &j.Description, &j.Location, &j.Package, &j.Stipend, &j.Status,
		&j.Deadline, &j.Rounds, currentRound, &j.Criteria.MinCGPA, &j.Criteria.RequiredSkills,
		&j.Criteria.EligibleBatches, &j.Criteria.GenderPreference, &j.Criteria.MaxCurrentArrears,
		&j.Criteria.MaxHistoryArrears, &j.ScreeningQuestions, &j.CreatedAt, &j.UpdatedAt,
	}
}

// GetByID retrieves a job by ID
func (r *JobRepository) GetByID(ctx context.Context, id string) (*models.Job, error) {
	sql, args, err := r.sb.Select(jobColumns...).
		From("jobs").
		Where(squirrel.Eq{"id": id}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build get job query: %w", err)
	}

	job := &models.Job{}
	var current *string
	if err := r.db.QueryRow(ctx, sql, args...).Scan(jobScanTargets(job, &current)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		logger.Error().Err(err).Str("jobID", id).Msg("Error scanning job row")
		return nil, fmt.Errorf("error getting job: %w", err)
	}
	if current != nil {
		job.CurrentRound = *current
	}
	return job, nil
}

func (r *JobRepository) listQuery(filter JobFilter, offset, limit uint64) squirrel.SelectBuilder {
	q := r.sb.Select(append(append([]string{}, jobColumns...), "COUNT(*) OVER() AS total_count")...).
		From("jobs")
	if filter.Status != "" {
		q = q.Where(squirrel.Eq{"status": filter.Status})
	}
	return q.OrderBy("deadline ASC NULLS LAST", "id ASC").Limit(limit).Offset(offset)
}

// List returns one page of jobs and the total count
func (r *JobRepository) List(ctx context.Context, filter JobFilter, offset, limit uint64) ([]*models.Job, int64, error) {
	sql, args, err := r.listQuery(filter, offset, limit).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build list jobs query: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("error querying jobs: %w", err)
	}
	defer rows.Close()

	var (
		jobs  []*models.Job
		total int64
	)
	for rows.Next() {
		job := &models.Job{}
		var current *string
		if err := rows.Scan(append(jobScanTargets(job, &current), &total)...); err != nil {
			return nil, 0, fmt.Errorf("error scanning job row: %w", err)
		}
		if current != nil {
			job.CurrentRound = *current
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating job rows: %w", err)
	}
	return jobs, total, nil
}

// Create publishes a job
func (r *JobRepository) Create(ctx context.Context, j *models.Job) error {
	var current *string
	if j.CurrentRound != "" {
		current = &j.CurrentRound
	}
	sql, args, err := r.sb.Insert("jobs").
		Columns("id", "company", "title", "description", "location", "package", "stipend", "status",
			"deadline", "rounds", "current_round", "min_cgpa", "required_skills", "eligible_batches",
			"gender_preference", "max_current_arrears", "max_history_arrears", "screening_questions").
		Values(j.ID, j.Company, j.Title, j.Description, j.Location, j.Package, j.Stipend, j.Status,
			j.Deadline, j.Rounds, current, j.Criteria.MinCGPA, j.Criteria.RequiredSkills,
			j.Criteria.EligibleBatches, j.Criteria.GenderPreference, j.Criteria.MaxCurrentArrears,
			j.Criteria.MaxHistoryArrears, j.ScreeningQuestions).
		Suffix("RETURNING created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build create job query: %w", err)
	}

	if err := r.db.QueryRow(ctx, sql, args...).Scan(&j.CreatedAt, &j.UpdatedAt); err != nil {
		if dberrors.IsDuplicateConstraintError(err, "jobs_pkey") {
			return ErrAlreadyExists
		}
		return fmt.Errorf("error creating job: %w", err)
	}
	return nil
}

// SetStatus changes the publication status of a job
func (r *JobRepository) SetStatus(ctx context.Context, id string, status models.JobStatus, now time.Time) error {
	sql, args, err := r.sb.Update("jobs").
		Set("status", status).
		Set("updated_at", now).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build set job status query: %w", err)
	}

	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("error updating job status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
