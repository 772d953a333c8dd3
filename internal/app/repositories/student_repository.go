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

var studentColumns = []string{
	"id", "roll_number", "name", "email", "cgpa", "current_arrears", "history_arrears",
	"batch", "department", "gender", "skills", "freeze", "placement_status",
	"placed_company", "placed_title", "placed_package", "placed_location",
	"offer_rejections", "created_at", "updated_at",
}

// StudentFilter narrows student listings
type StudentFilter struct {
	FrozenOnly bool
	Batch      string
}

// StudentRepository handles student database operations
type StudentRepository struct {
	db *pgxpool.Pool
	sb squirrel.StatementBuilderType
}

// NewStudentRepository creates a new StudentRepository
func NewStudentRepository(db *pgxpool.Pool) *StudentRepository {
	return &StudentRepository{db: db, sb: newBuilder()}
}

func scanStudent(row pgx.Row) (*models.Student, error) {
	s := &models.Student{}
	var roll *string
	err := row.Scan(
		&s.ID, &roll, &s.Name, &s.Email, &s.CGPA, &s.CurrentArrears, &s.HistoryArrears,
		&s.Batch, &s.Department, &s.Gender, &s.Skills, &s.Freeze, &s.PlacementStatus,
		&s.PlacedCompany, &s.PlacedTitle, &s.PlacedPackage, &s.PlacedLocation,
		&s.OfferRejections, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if roll != nil {
		s.RollNumber = *roll
	}
	return s, nil
}

func (r *StudentRepository) getBy(ctx context.Context, column, value string) (*models.Student, error) {
	sql, args, err := r.sb.Select(studentColumns...).
		From("students").
		Where(squirrel.Eq{column: value}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build get student query: %w", err)
	}

	student, err := scanStudent(r.db.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		logger.Error().Err(err).Str(column, value).Msg("Error scanning student row")
		return nil, fmt.Errorf("error getting student: %w", err)
	}
	return student, nil
}

// GetByID retrieves a student by ID. The row is always read fresh.
func (r *StudentRepository) GetByID(ctx context.Context, id string) (*models.Student, error) {
	return r.getBy(ctx, "id", id)
}

// GetByRollNumber retrieves a student by roll number
func (r *StudentRepository) GetByRollNumber(ctx context.Context, rollNumber string) (*models.Student, error) {
	return r.getBy(ctx, "roll_number", rollNumber)
}

// Create inserts a student profile
func (r *StudentRepository) Create(ctx context.Context, s *models.Student) error {
	var roll *string
	if s.RollNumber != "" {
		roll = &s.RollNumber
	}
	if s.PlacementStatus == "" {
		s.PlacementStatus = models.PlacementNone
	}
	if s.Skills == nil {
		s.Skills = []string{}
	}

	sql, args, err := r.sb.Insert("students").
		Columns("id", "roll_number", "name", "email", "cgpa", "current_arrears", "history_arrears",
			"batch", "department", "gender", "skills", "placement_status").
		Values(s.ID, roll, s.Name, s.Email, s.CGPA, s.CurrentArrears, s.HistoryArrears,
			s.Batch, s.Department, s.Gender, s.Skills, s.PlacementStatus).
		Suffix("RETURNING created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build create student query: %w", err)
	}

	if err := r.db.QueryRow(ctx, sql, args...).Scan(&s.CreatedAt, &s.UpdatedAt); err != nil {
		if dberrors.IsUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("error creating student: %w", err)
	}
	return nil
}

func (r *StudentRepository) listQuery(filter StudentFilter, offset, limit uint64) squirrel.SelectBuilder {
	q := r.sb.Select(append(append([]string{}, studentColumns...), "COUNT(*) OVER() AS total_count")...).
		From("students")
	if filter.FrozenOnly {
		q = q.Where("(freeze->>'active')::boolean IS TRUE")
	}
	if filter.Batch != "" {
		q = q.Where(squirrel.Eq{"batch": filter.Batch})
	}
	q = q.OrderBy("id ASC")
	if limit > 0 {
		q = q.Limit(limit).Offset(offset)
	}
	return q
}

// List returns one page of students and the total count
func (r *StudentRepository) List(ctx context.Context, filter StudentFilter, offset, limit uint64) ([]*models.Student, int64, error) {
	sql, args, err := r.listQuery(filter, offset, limit).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build list students query: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("error querying students: %w", err)
	}
	defer rows.Close()

	var (
		students []*models.Student
		total    int64
	)
	for rows.Next() {
		s := &models.Student{}
		var roll *string
		if err := rows.Scan(
			&s.ID, &roll, &s.Name, &s.Email, &s.CGPA, &s.CurrentArrears, &s.HistoryArrears,
			&s.Batch, &s.Department, &s.Gender, &s.Skills, &s.Freeze, &s.PlacementStatus,
			&s.PlacedCompany, &s.PlacedTitle, &s.PlacedPackage, &s.PlacedLocation,
			&s.OfferRejections, &s.CreatedAt, &s.UpdatedAt, &total,
		); err != nil {
			return nil, 0, fmt.Errorf("error scanning student row: %w", err)
		}
		if roll != nil {
			s.RollNumber = *roll
		}
		students = append(students, s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating student rows: %w", err)
	}
	return students, total, nil
}

func (r *StudentRepository) expiredFreezesQuery(now time.Time) squirrel.SelectBuilder {
	return r.sb.Select(studentColumns...).
		From("students").
		Where("(freeze->>'active')::boolean IS TRUE").
		Where("freeze->>'until' IS NOT NULL").
		Where(squirrel.Expr("(freeze->>'until')::timestamptz <= ?", now)).
		OrderBy("id ASC")
}

// ListExpiredFreezes returns students whose time-bounded freeze ended at or before now.
// Indefinite freezes are never returned.
func (r *StudentRepository) ListExpiredFreezes(ctx context.Context, now time.Time) ([]*models.Student, error) {
	sql, args, err := r.expiredFreezesQuery(now).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build expired freezes query: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying expired freezes: %w", err)
	}
	defer rows.Close()

	var students []*models.Student
	for rows.Next() {
		s, err := scanStudent(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning student row: %w", err)
		}
		students = append(students, s)
	}
	return students, rows.Err()
}

func (r *StudentRepository) markPlacedQuery(id string, snap models.JobSnapshot, now time.Time) squirrel.UpdateBuilder {
	return r.sb.Update("students").
		Set("placement_status", models.PlacementPlaced).
		Set("placed_company", snap.Company).
		Set("placed_title", snap.Title).
		Set("placed_package", snap.Package).
		Set("placed_location", snap.Location).
		Set("updated_at", now).
		Where(squirrel.Eq{"id": id})
}

// MarkPlaced sets the placement status and the denormalized offer details
func (r *StudentRepository) MarkPlaced(ctx context.Context, id string, snap models.JobSnapshot, now time.Time) error {
	sql, args, err := r.markPlacedQuery(id, snap, now).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build mark placed query: %w", err)
	}
	return r.execOne(ctx, sql, args...)
}

// IncrementOfferRejections bumps the student's rejected-offer counter
func (r *StudentRepository) IncrementOfferRejections(ctx context.Context, id string, now time.Time) error {
	sql, args, err := r.sb.Update("students").
		Set("offer_rejections", squirrel.Expr("offer_rejections + 1")).
		Set("updated_at", now).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build increment rejections query: %w", err)
	}
	return r.execOne(ctx, sql, args...)
}

func (r *StudentRepository) execOne(ctx context.Context, sql string, args ...interface{}) error {
	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("error updating student: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
