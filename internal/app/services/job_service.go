package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/yigit/placement/internal/app/eligibility"
	"github.com/yigit/placement/internal/app/models"
	"github.com/yigit/placement/internal/app/models/dto"
	"github.com/yigit/placement/internal/app/repositories"
	"github.com/yigit/placement/internal/pkg/apperrors"
)

// Audit actions written by job administration
const (
	AuditActionJobCreate = "jobs.create"
	AuditActionJobClose  = "jobs.close"
)

// JobService handles job postings and eligibility checks
type JobService struct {
	jobs     JobStore
	students StudentStore
	audit    AuditStore
	opts     Options
	logger   zerolog.Logger
}

// NewJobService creates a new job service instance
func NewJobService(jobs JobStore, students StudentStore, audit AuditStore, opts Options) *JobService {
	return &JobService{
		jobs:     jobs,
		students: students,
		audit:    audit,
		opts:     opts,
		logger:   opts.Logger.With().Str("service", "jobs").Logger(),
	}
}

// List returns one page of jobs, optionally filtered by status
func (s *JobService) List(ctx context.Context, status models.JobStatus, offset, limit uint64) ([]*models.Job, int64, error) {
	if status != "" && status != models.JobStatusActive && status != models.JobStatusClosed {
		return nil, 0, apperrors.NewBadRequestError(fmt.Sprintf("unknown job status %q", status))
	}
	jobs, total, err := s.jobs.List(ctx, repositories.JobFilter{Status: status}, offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("error listing jobs: %w", err)
	}
	return jobs, total, nil
}

// Get returns one job
func (s *JobService) Get(ctx context.Context, id string) (*models.Job, error) {
	return loadJob(ctx, s.jobs, id)
}

func validateJob(job *models.Job) error {
	if job.ID == "" || strings.Contains(job.ID, "_") {
		return apperrors.NewBadRequestError("job id is required and must not contain '_'")
	}
	if len(job.Rounds) == 0 {
		return apperrors.NewBadRequestError("a job needs at least one round")
	}
	seen := make(map[string]bool, len(job.Rounds))
	for _, r := range job.Rounds {
		key := strings.ToLower(r.Name)
		if r.Name == "" || seen[key] {
			return apperrors.NewBadRequestError(fmt.Sprintf("round names must be non-empty and unique, got %q", r.Name))
		}
		seen[key] = true
	}
	return nil
}

// Create publishes a new job posting
func (s *JobService) Create(ctx context.Context, caller models.Caller, job *models.Job) (*models.Job, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	if err := validateJob(job); err != nil {
		return nil, err
	}

	now := s.opts.now()
	job.Status = models.JobStatusActive
	job.CreatedAt, job.UpdatedAt = now, now

	if err := s.jobs.Create(ctx, job); err != nil {
		if errors.Is(err, repositories.ErrAlreadyExists) {
			return nil, apperrors.NewCustomError(apperrors.ErrResourceAlreadyExists, fmt.Sprintf("job %s already exists", job.ID))
		}
		return nil, fmt.Errorf("error creating job: %w", err)
	}

	s.record(ctx, caller, AuditActionJobCreate, map[string]any{"jobId": job.ID, "company": job.Company, "title": job.Title})
	s.logger.Info().Str("jobID", job.ID).Str("actor", caller.UserID).Msg("Job published")
	return job, nil
}

// Close stops a job from accepting applications
func (s *JobService) Close(ctx context.Context, caller models.Caller, id string) (*models.Job, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}

	job, err := loadJob(ctx, s.jobs, id)
	if err != nil {
		return nil, err
	}
	if !job.IsActive() {
		return job, nil
	}

	now := s.opts.now()
	if err := s.jobs.SetStatus(ctx, id, models.JobStatusClosed, now); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, apperrors.ErrJobNotFound
		}
		return nil, fmt.Errorf("error closing job: %w", err)
	}
	job.Status = models.JobStatusClosed
	job.UpdatedAt = now

	s.record(ctx, caller, AuditActionJobClose, map[string]any{"jobId": job.ID})
	s.logger.Info().Str("jobID", job.ID).Str("actor", caller.UserID).Msg("Job closed")
	return job, nil
}

// record writes an audit entry; failures are logged and never fail the operation
func (s *JobService) record(ctx context.Context, caller models.Caller, action string, payload map[string]any) {
	if s.audit == nil {
		return
	}
	entry := &models.AuditLogEntry{Actor: caller.UserID, Action: action, TargetCount: 1, Payload: payload, CreatedAt: s.opts.now()}
	if err := s.audit.Record(ctx, entry); err != nil {
		s.logger.Error().Err(err).Str("action", action).Msg("Failed to record audit entry")
	}
}

// Eligibility evaluates the calling student against a job. The verdict is advisory.
func (s *JobService) Eligibility(ctx context.Context, caller models.Caller, jobID string) (*dto.EligibilityResponse, error) {
	student, err := requireStudent(ctx, s.students, caller)
	if err != nil {
		return nil, err
	}
	return s.eligibilityFor(ctx, student, jobID)
}

// EligibilityByRollNumber evaluates any student against a job for admins and tooling
func (s *JobService) EligibilityByRollNumber(ctx context.Context, rollNumber, jobID string) (*dto.EligibilityResponse, error) {
	student, err := s.students.GetByRollNumber(ctx, rollNumber)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, apperrors.ErrStudentNotFound
		}
		return nil, err
	}
	return s.eligibilityFor(ctx, student, jobID)
}

func (s *JobService) eligibilityFor(ctx context.Context, student *models.Student, jobID string) (*dto.EligibilityResponse, error) {
	job, err := loadJob(ctx, s.jobs, jobID)
	if err != nil {
		return nil, err
	}
	res := eligibility.Resolve(student, job)
	return &dto.EligibilityResponse{JobID: job.ID, Eligible: res.Eligible, Reasons: res.Reasons}, nil
}
