package repositories

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/yigit/placement/internal/app/models"
	"github.com/yigit/placement/internal/pkg/dberrors"
)

// PlacementRepository appends placement records
type PlacementRepository struct {
	db *pgxpool.Pool
	sb squirrel.StatementBuilderType
}

// NewPlacementRepository creates a new PlacementRepository
func NewPlacementRepository(db *pgxpool.Pool) *PlacementRepository {
	return &PlacementRepository{db: db, sb: newBuilder()}
}

func (r *PlacementRepository) insertQuery(p *models.Placement) squirrel.InsertBuilder {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return r.sb.Insert("placements").
		Columns("id", "student_id", "job_id", "application_id", "company", "package", "location", "accepted_at").
		Values(p.ID, p.StudentID, p.JobID, p.ApplicationID, p.Company, p.Package, p.Location, p.AcceptedAt)
}

// Create appends a placement. A second record for the same application is rejected.
func (r *PlacementRepository) Create(ctx context.Context, p *models.Placement) error {
	sql, args, err := r.insertQuery(p).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build create placement query: %w", err)
	}
	if _, err := r.db.Exec(ctx, sql, args...); err != nil {
		if dberrors.IsDuplicateConstraintError(err, "placements_application_id_key") {
			return ErrAlreadyExists
		}
		return fmt.Errorf("error creating placement: %w", err)
	}
	return nil
}
