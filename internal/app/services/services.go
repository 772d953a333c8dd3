package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/yigit/placement/internal/app/models"
	"github.com/yigit/placement/internal/app/notify"
	"github.com/yigit/placement/internal/app/repositories"
	"github.com/yigit/placement/internal/pkg/apperrors"
	"github.com/yigit/placement/internal/pkg/helpers"
)

// Services defined in this package:
// - ApplicationService: apply, withdraw, round evaluation and application reads
// - OfferService: the student's accept/reject decision on a selection
// - FreezeService: bulk freeze administration and the expiry sweep
// - JobService: job postings and per-student eligibility
// - StudentService: student lookups for admins and tooling

// StudentStore is the student persistence the services depend on
type StudentStore interface {
	GetByID(ctx context.Context, id string) (*models.Student, error)
	GetByRollNumber(ctx context.Context, rollNumber string) (*models.Student, error)
	List(ctx context.Context, filter repositories.StudentFilter, offset, limit uint64) ([]*models.Student, int64, error)
	ListExpiredFreezes(ctx context.Context, now time.Time) ([]*models.Student, error)
	MarkPlaced(ctx context.Context, id string, snap models.JobSnapshot, now time.Time) error
	IncrementOfferRejections(ctx context.Context, id string, now time.Time) error
}

// JobStore is the job persistence the services depend on
type JobStore interface {
	GetByID(ctx context.Context, id string) (*models.Job, error)
	List(ctx context.Context, filter repositories.JobFilter, offset, limit uint64) ([]*models.Job, int64, error)
	Create(ctx context.Context, j *models.Job) error
	SetStatus(ctx context.Context, id string, status models.JobStatus, now time.Time) error
}

// ApplicationStore is the application persistence the services depend on
type ApplicationStore interface {
	CreateIfAbsent(ctx context.Context, a *models.Application) error
	GetByID(ctx context.Context, id string) (*models.Application, error)
	UpdateStatus(ctx context.Context, a *models.Application, expected models.ApplicationStatus) error
	MarkWithdrawn(ctx context.Context, id string, at time.Time) error
	Delete(ctx context.Context, id string) error
	RecordOfferDecision(ctx context.Context, id string, status models.ApplicationStatus, decision models.OfferDecision, at time.Time) error
	ListByStudent(ctx context.Context, studentID string) ([]*models.Application, error)
	ListByJob(ctx context.Context, jobID string, status models.ApplicationStatus, offset, limit uint64) ([]*models.Application, int64, error)
}

// PlacementStore records accepted offers
type PlacementStore interface {
	Create(ctx context.Context, p *models.Placement) error
}

// FreezeStore commits freeze changes and reads their history
type FreezeStore interface {
	ApplyChanges(ctx context.Context, changes []models.StudentFreezeChange, audit *models.AuditLogEntry) error
	History(ctx context.Context, studentID string) ([]models.FreezeHistoryEntry, error)
}

// AuditStore appends admin audit entries
type AuditStore interface {
	Record(ctx context.Context, entry *models.AuditLogEntry) error
}

// Notifier enqueues notifications without blocking or failing the caller
type Notifier interface {
	Notify(ctx context.Context, n notify.Notification)
}

// Options tunes service behaviour from configuration
type Options struct {
	WithdrawWindow     time.Duration
	EnforceEligibility bool
	Clock              helpers.Clock
	Logger             zerolog.Logger
}

func (o Options) now() time.Time {
	if o.Clock == nil {
		return helpers.SystemClock()
	}
	return o.Clock()
}

// Services holds every service instance
type Services struct {
	ApplicationService *ApplicationService
	OfferService       *OfferService
	FreezeService      *FreezeService
	JobService         *JobService
	StudentService     *StudentService
}

// NewServices wires the services on top of the repositories
func NewServices(repos *repositories.Repositories, notifier Notifier, opts Options) *Services {
	return &Services{
		ApplicationService: NewApplicationService(repos.ApplicationRepository, repos.StudentRepository, repos.JobRepository, notifier, opts),
		OfferService:       NewOfferService(repos.ApplicationRepository, repos.StudentRepository, repos.JobRepository, repos.PlacementRepository, notifier, opts),
		FreezeService:      NewFreezeService(repos.StudentRepository, repos.FreezeRepository, notifier, opts),
		JobService:         NewJobService(repos.JobRepository, repos.StudentRepository, repos.AuditRepository, opts),
		StudentService:     NewStudentService(repos.StudentRepository),
	}
}

// requireStudent resolves the calling student fresh from the store
func requireStudent(ctx context.Context, students StudentStore, caller models.Caller) (*models.Student, error) {
	if !caller.Authenticated() {
		return nil, apperrors.NewUnauthenticatedError("authentication required")
	}
	student, err := students.GetByID(ctx, caller.UserID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, apperrors.ErrStudentNotFound
		}
		return nil, err
	}
	return student, nil
}

func requireAdmin(caller models.Caller) error {
	if !caller.Authenticated() {
		return apperrors.NewUnauthenticatedError("authentication required")
	}
	if !caller.IsAdmin() {
		return apperrors.NewForbiddenError("admin role required")
	}
	return nil
}

func loadJob(ctx context.Context, jobs JobStore, id string) (*models.Job, error) {
	job, err := jobs.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, apperrors.ErrJobNotFound
		}
		return nil, err
	}
	return job, nil
}

func loadApplication(ctx context.Context, apps ApplicationStore, id string) (*models.Application, error) {
	app, err := apps.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, apperrors.ErrApplicationNotFound
		}
		return nil, err
	}
	return app, nil
}

// notifyAll enqueues the same notification for each recipient
func notifyAll(ctx context.Context, n Notifier, template notify.Template, payload map[string]any, recipients ...string) {
	if n == nil {
		return
	}
	for _, r := range recipients {
		if r == "" {
			continue
		}
		n.Notify(ctx, notify.Notification{Recipient: r, Template: template, Payload: payload})
	}
}
