package repositories

import (
	"errors"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Shared repository errors
var (
	ErrNotFound      = errors.New("record not found")
	ErrAlreadyExists = errors.New("record already exists")
	// ErrStaleState is returned when a guarded update matched no row because the record moved on
	ErrStaleState = errors.New("record changed concurrently")
)

func newBuilder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// Repositories holds all the repository instances
type Repositories struct {
	StudentRepository     *StudentRepository
	JobRepository         *JobRepository
	ApplicationRepository *ApplicationRepository
	PlacementRepository   *PlacementRepository
	FreezeRepository      *FreezeRepository
	AuditRepository       *AuditRepository
}

// NewRepositories initializes all repositories
func NewRepositories(db *pgxpool.Pool) *Repositories {
	audit := NewAuditRepository(db)
	return &Repositories{
		StudentRepository:     NewStudentRepository(db),
		JobRepository:         NewJobRepository(db),
		ApplicationRepository: NewApplicationRepository(db),
		PlacementRepository:   NewPlacementRepository(db),
		FreezeRepository:      NewFreezeRepository(db, audit),
		AuditRepository:       audit,
	}
}
