package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/yigit/placement/internal/app/eligibility"
	"github.com/yigit/placement/internal/app/lifecycle"
	"github.com/yigit/placement/internal/app/models"
	"github.com/yigit/placement/internal/app/models/dto"
	"github.com/yigit/placement/internal/app/notify"
	"github.com/yigit/placement/internal/app/repositories"
	"github.com/yigit/placement/internal/pkg/apperrors"
)

// ApplicationService handles application creation, withdrawal and round evaluation
type ApplicationService struct {
	apps     ApplicationStore
	students StudentStore
	jobs     JobStore
	notifier Notifier
	opts     Options
	logger   zerolog.Logger
}

// NewApplicationService creates a new application service instance
func NewApplicationService(apps ApplicationStore, students StudentStore, jobs JobStore, notifier Notifier, opts Options) *ApplicationService {
	if opts.WithdrawWindow <= 0 {
		opts.WithdrawWindow = lifecycle.DefaultWithdrawWindow
	}
	return &ApplicationService{
		apps:     apps,
		students: students,
		jobs:     jobs,
		notifier: notifier,
		opts:     opts,
		logger:   opts.Logger.With().Str("service", "applications").Logger(),
	}
}

// Apply creates the caller's application to jobID.
// Pre-checks run in order and fail before any write. The freeze gate always reads the
// student row, never a cached identity.
func (s *ApplicationService) Apply(ctx context.Context, caller models.Caller, jobID string, answers map[int]string) (string, error) {
	if caller.Authenticated() && caller.IsAdmin() {
		return "", apperrors.NewForbiddenError("only students can apply to jobs")
	}

	student, err := requireStudent(ctx, s.students, caller)
	if err != nil {
		return "", err
	}

	if student.IsFrozen() {
		details := map[string]interface{}{"reason": student.Freeze.Reason}
		if student.Freeze.Until != nil {
			details["until"] = student.Freeze.Until
		}
		return "", apperrors.ErrAccountFrozen.WithDetails(details)
	}

	job, err := loadJob(ctx, s.jobs, jobID)
	if err != nil {
		return "", err
	}

	now := s.opts.now()
	if !job.IsActive() {
		return "", apperrors.ErrJobClosed
	}
	if job.DeadlinePassed(now) {
		return "", apperrors.ErrDeadlinePassed.WithDetails(map[string]interface{}{"deadline": job.Deadline})
	}

	if s.opts.EnforceEligibility {
		if res := eligibility.Resolve(student, job); !res.Eligible {
			return "", apperrors.NewPreconditionError(apperrors.CodeNotEligible, "student does not meet the job's eligibility criteria").
				WithDetails(map[string]interface{}{"reasons": res.Reasons})
		}
	}

	cleaned, err := cleanAnswers(answers, len(job.ScreeningQuestions))
	if err != nil {
		return "", err
	}

	rounds := make(map[string]models.ApplicationStatus, len(job.Rounds))
	for _, r := range job.Rounds {
		rounds[r.Name] = models.StatusPending
	}

	app := &models.Application{
		ID:               models.ApplicationKey(job.ID, student.Key()),
		JobID:            job.ID,
		StudentID:        student.ID,
		StudentKey:       student.Key(),
		Status:           models.StatusPending,
		RoundStatus:      rounds,
		ScreeningAnswers: cleaned,
		Snapshot:         job.Snapshot(),
		AppliedAt:        now,
		UpdatedAt:        now,
	}
	if len(job.Rounds) > 0 {
		first := 0
		app.CurrentRoundIndex = &first
	}

	if err := s.apps.CreateIfAbsent(ctx, app); err != nil {
		if errors.Is(err, repositories.ErrAlreadyExists) {
			return "", apperrors.ErrAlreadyApplied.WithDetails(map[string]interface{}{"applicationId": app.ID})
		}
		return "", fmt.Errorf("error creating application: %w", err)
	}

	s.logger.Info().
		Str("applicationID", app.ID).
		Str("jobID", job.ID).
		Str("studentID", student.ID).
		Msg("Application submitted")

	notifyAll(ctx, s.notifier, notify.TemplateApplicationSubmitted, map[string]any{
		"applicationId": app.ID,
		"jobId":         job.ID,
		"company":       job.Company,
		"title":         job.Title,
		"studentId":     student.ID,
	}, student.ID, notify.AdminRecipient)

	return app.ID, nil
}

// cleanAnswers trims answers and rejects indexes that do not address a screening question
func cleanAnswers(answers map[int]string, questions int) (map[int]string, error) {
	cleaned := make(map[int]string, len(answers))
	for idx, answer := range answers {
		if idx < 0 || idx >= questions {
			return nil, apperrors.NewCustomError(apperrors.ErrValidationFailed, fmt.Sprintf("screening answer %d does not match a question", idx)).
				WithDetails(map[string]interface{}{"index": idx, "questions": questions})
		}
		cleaned[idx] = strings.TrimSpace(answer)
	}
	return cleaned, nil
}

// Withdraw marks the caller's pending application withdrawn, notifies, then deletes it.
// A failed delete leaves the row flagged withdrawn; withdrawing it again retries the delete.
func (s *ApplicationService) Withdraw(ctx context.Context, caller models.Caller, applicationID string) error {
	if !caller.Authenticated() {
		return apperrors.NewUnauthenticatedError("authentication required")
	}

	app, err := loadApplication(ctx, s.apps, applicationID)
	if err != nil {
		return err
	}
	if !app.BelongsTo(caller.UserID) {
		return apperrors.NewForbiddenError("application belongs to another student")
	}
	if app.Status == models.StatusWithdrawn {
		return s.deleteWithdrawn(ctx, app)
	}

	job, err := s.jobs.GetByID(ctx, app.JobID)
	if err != nil && !errors.Is(err, repositories.ErrNotFound) {
		return fmt.Errorf("error loading job for withdraw: %w", err)
	}

	now := s.opts.now()
	if !lifecycle.CanWithdraw(app, job, now, s.opts.WithdrawWindow) {
		return apperrors.ErrWithdrawNotAllowed.WithDetails(map[string]interface{}{
			"status":        app.Status,
			"appliedAt":     app.AppliedAt,
			"withdrawUntil": withdrawDeadline(app, s.opts.WithdrawWindow),
		})
	}
	if err := lifecycle.ValidateTransition(app.Status, models.StatusWithdrawn); err != nil {
		return err
	}

	if err := s.apps.MarkWithdrawn(ctx, app.ID, now); err != nil {
		switch {
		case errors.Is(err, repositories.ErrStaleState):
			return apperrors.ErrWithdrawNotAllowed
		default:
			return fmt.Errorf("error marking application withdrawn: %w", err)
		}
	}

	notifyAll(ctx, s.notifier, notify.TemplateApplicationWithdrawn, map[string]any{
		"applicationId": app.ID,
		"jobId":         app.JobID,
		"company":       app.Snapshot.Company,
		"title":         app.Snapshot.Title,
		"studentId":     app.StudentID,
	}, app.StudentID, notify.AdminRecipient)

	return s.deleteWithdrawn(ctx, app)
}

// deleteWithdrawn removes a row already flagged withdrawn, freeing its composite id
func (s *ApplicationService) deleteWithdrawn(ctx context.Context, app *models.Application) error {
	if err := s.apps.Delete(ctx, app.ID); err != nil && !errors.Is(err, repositories.ErrNotFound) {
		s.logger.Error().Err(err).Str("applicationID", app.ID).Msg("Withdrawn application could not be deleted")
		return fmt.Errorf("application %s withdrawn but not deleted: %w", app.ID, err)
	}

	s.logger.Info().Str("applicationID", app.ID).Str("studentID", app.StudentID).Msg("Application withdrawn")
	return nil
}

// UpdateRoundStatus records an admin verdict for one round and recomputes the top-level status
func (s *ApplicationService) UpdateRoundStatus(ctx context.Context, caller models.Caller, applicationID, round string, status models.ApplicationStatus) (*dto.ApplicationView, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	if !status.IsValid() {
		return nil, apperrors.NewBadRequestError(fmt.Sprintf("unknown status %q", status))
	}

	app, err := loadApplication(ctx, s.apps, applicationID)
	if err != nil {
		return nil, err
	}
	job, err := loadJob(ctx, s.jobs, app.JobID)
	if err != nil {
		return nil, err
	}

	idx := job.RoundIndex(round)
	if idx < 0 {
		return nil, apperrors.NewCustomError(apperrors.ErrValidationFailed, fmt.Sprintf("round %q is not part of job %s", round, job.ID)).
			WithDetails(map[string]interface{}{"rounds": job.RoundNames()})
	}
	name := job.Rounds[idx].Name

	current := app.RoundStatus[name]
	if current == "" {
		current = models.StatusPending
	}
	if err := lifecycle.ValidateRoundTransition(current, status); err != nil {
		return nil, err
	}

	expected := app.Status
	next := cloneApplication(app)
	next.RoundStatus[name] = status
	next.Status = lifecycle.TopLevelFromRounds(next, job)
	if err := lifecycle.ValidateTransition(expected, next.Status); err != nil {
		return nil, err
	}

	// a passed round moves the application on to the following one
	if (status == models.StatusShortlisted || status == models.StatusSelected) && idx+1 < len(job.Rounds) {
		following := idx + 1
		next.CurrentRoundIndex = &following
	} else if next.CurrentRoundIndex == nil || *next.CurrentRoundIndex < idx {
		at := idx
		next.CurrentRoundIndex = &at
	}

	now := s.opts.now()
	next.UpdatedAt = now
	if err := s.apps.UpdateStatus(ctx, next, expected); err != nil {
		if errors.Is(err, repositories.ErrStaleState) {
			return nil, apperrors.ErrConcurrentUpdate
		}
		return nil, fmt.Errorf("error updating application status: %w", err)
	}
	next.Version++

	s.logger.Info().
		Str("applicationID", app.ID).
		Str("round", name).
		Str("roundStatus", string(status)).
		Str("status", string(next.Status)).
		Str("actor", caller.UserID).
		Msg("Round status updated")

	notifyAll(ctx, s.notifier, notify.TemplateRoundUpdated, map[string]any{
		"applicationId": app.ID,
		"jobId":         app.JobID,
		"company":       app.Snapshot.Company,
		"round":         name,
		"status":        status,
	}, app.StudentID)

	view := dto.NewApplicationView(next, job, now, s.opts.WithdrawWindow)
	return &view, nil
}

// Get returns one application; students only see their own
func (s *ApplicationService) Get(ctx context.Context, caller models.Caller, applicationID string) (*dto.ApplicationView, error) {
	if !caller.Authenticated() {
		return nil, apperrors.NewUnauthenticatedError("authentication required")
	}

	app, err := loadApplication(ctx, s.apps, applicationID)
	if err != nil {
		return nil, err
	}
	if !caller.IsAdmin() && !app.BelongsTo(caller.UserID) {
		// do not reveal other students' applications
		return nil, apperrors.ErrApplicationNotFound
	}

	job, err := s.jobs.GetByID(ctx, app.JobID)
	if err != nil && !errors.Is(err, repositories.ErrNotFound) {
		return nil, fmt.Errorf("error loading job: %w", err)
	}

	view := dto.NewApplicationView(app, job, s.opts.now(), s.opts.WithdrawWindow)
	return &view, nil
}

// ListMine returns the caller's applications, newest first
func (s *ApplicationService) ListMine(ctx context.Context, caller models.Caller) ([]dto.ApplicationView, error) {
	if !caller.Authenticated() {
		return nil, apperrors.NewUnauthenticatedError("authentication required")
	}

	apps, err := s.apps.ListByStudent(ctx, caller.UserID)
	if err != nil {
		return nil, fmt.Errorf("error listing applications: %w", err)
	}
	return s.views(ctx, apps)
}

// ListByJob returns one page of a job's applications for admins
func (s *ApplicationService) ListByJob(ctx context.Context, caller models.Caller, jobID string, status models.ApplicationStatus, offset, limit uint64) ([]dto.ApplicationView, int64, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, 0, err
	}
	if status != "" && !status.IsValid() {
		return nil, 0, apperrors.NewBadRequestError(fmt.Sprintf("unknown status %q", status))
	}
	if _, err := loadJob(ctx, s.jobs, jobID); err != nil {
		return nil, 0, err
	}

	apps, total, err := s.apps.ListByJob(ctx, jobID, status, offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("error listing job applications: %w", err)
	}
	views, err := s.views(ctx, apps)
	if err != nil {
		return nil, 0, err
	}
	return views, total, nil
}

func (s *ApplicationService) views(ctx context.Context, apps []*models.Application) ([]dto.ApplicationView, error) {
	now := s.opts.now()
	jobs := make(map[string]*models.Job)
	views := make([]dto.ApplicationView, 0, len(apps))
	for _, app := range apps {
		job, seen := jobs[app.JobID]
		if !seen {
			var err error
			job, err = s.jobs.GetByID(ctx, app.JobID)
			if err != nil && !errors.Is(err, repositories.ErrNotFound) {
				return nil, fmt.Errorf("error loading job %s: %w", app.JobID, err)
			}
			jobs[app.JobID] = job
		}
		views = append(views, dto.NewApplicationView(app, job, now, s.opts.WithdrawWindow))
	}
	return views, nil
}

// cloneApplication copies the mutable maps so a failed update leaves the loaded value untouched
func cloneApplication(app *models.Application) *models.Application {
	c := *app
	c.RoundStatus = make(map[string]models.ApplicationStatus, len(app.RoundStatus))
	for k, v := range app.RoundStatus {
		c.RoundStatus[k] = v
	}
	if app.CurrentRoundIndex != nil {
		idx := *app.CurrentRoundIndex
		c.CurrentRoundIndex = &idx
	}
	return &c
}

// withdrawDeadline is the last instant the time guard of a withdrawal holds
func withdrawDeadline(app *models.Application, window time.Duration) time.Time {
	return app.AppliedAt.Add(window)
}
