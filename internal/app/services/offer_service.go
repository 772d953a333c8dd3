package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/yigit/placement/internal/app/lifecycle"
	"github.com/yigit/placement/internal/app/models"
	"github.com/yigit/placement/internal/app/notify"
	"github.com/yigit/placement/internal/app/repositories"
	"github.com/yigit/placement/internal/pkg/apperrors"
)

// OfferService records a student's decision on a selection
type OfferService struct {
	apps       ApplicationStore
	students   StudentStore
	jobs       JobStore
	placements PlacementStore
	notifier   Notifier
	opts       Options
	logger     zerolog.Logger
}

// NewOfferService creates a new offer service instance
func NewOfferService(apps ApplicationStore, students StudentStore, jobs JobStore, placements PlacementStore, notifier Notifier, opts Options) *OfferService {
	return &OfferService{
		apps:       apps,
		students:   students,
		jobs:       jobs,
		placements: placements,
		notifier:   notifier,
		opts:       opts,
		logger:     opts.Logger.With().Str("service", "offers").Logger(),
	}
}

// ParseDecision maps the request verb onto an offer decision
func ParseDecision(verb string) (models.OfferDecision, error) {
	switch verb {
	case "accept", string(models.OfferAccepted):
		return models.OfferAccepted, nil
	case "reject", string(models.OfferRejected):
		return models.OfferRejected, nil
	default:
		return "", apperrors.NewBadRequestError(fmt.Sprintf("decision must be accept or reject, got %q", verb))
	}
}

// Decide applies the caller's accept or reject decision.
// The application write happens first; the student and placement writes that follow are
// independent, so a later failure leaves earlier writes in place and is returned.
// On accept the new placement record is returned.
func (s *OfferService) Decide(ctx context.Context, caller models.Caller, applicationID string, decision models.OfferDecision) (*models.Placement, error) {
	if !caller.Authenticated() {
		return nil, apperrors.NewUnauthenticatedError("authentication required")
	}
	if decision != models.OfferAccepted && decision != models.OfferRejected {
		return nil, apperrors.NewBadRequestError(fmt.Sprintf("unknown offer decision %q", decision))
	}

	app, err := loadApplication(ctx, s.apps, applicationID)
	if err != nil {
		return nil, err
	}
	if !app.BelongsTo(caller.UserID) {
		return nil, apperrors.NewForbiddenError("application belongs to another student")
	}
	if app.OfferDecision != nil {
		return nil, apperrors.ErrOfferAlreadyDecided.WithDetails(map[string]interface{}{"decision": *app.OfferDecision})
	}

	job, err := s.jobs.GetByID(ctx, app.JobID)
	if err != nil && !errors.Is(err, repositories.ErrNotFound) {
		return nil, fmt.Errorf("error loading job: %w", err)
	}
	if effective := lifecycle.EffectiveStatus(app, job); effective != models.StatusSelected {
		return nil, apperrors.ErrOfferNotSelected.WithDetails(map[string]interface{}{"effectiveStatus": effective})
	}

	target := models.StatusOfferRejected
	if decision == models.OfferAccepted {
		target = models.StatusPlaced
	}
	// the stored status may lag the selected round, so validate from selected
	if err := lifecycle.ValidateTransition(models.StatusSelected, target); err != nil {
		return nil, err
	}
	if lifecycle.IsTerminal(app.Status) {
		return nil, lifecycle.ValidateTransition(app.Status, target)
	}

	now := s.opts.now()
	if err := s.apps.RecordOfferDecision(ctx, app.ID, target, decision, now); err != nil {
		if errors.Is(err, repositories.ErrStaleState) {
			return nil, apperrors.ErrOfferAlreadyDecided
		}
		return nil, fmt.Errorf("error recording offer decision: %w", err)
	}

	payload := map[string]any{
		"applicationId": app.ID,
		"jobId":         app.JobID,
		"company":       app.Snapshot.Company,
		"title":         app.Snapshot.Title,
		"studentId":     app.StudentID,
	}

	if decision == models.OfferRejected {
		if err := s.students.IncrementOfferRejections(ctx, app.StudentID, now); err != nil {
			s.logger.Error().Err(err).Str("applicationID", app.ID).Msg("Offer rejected but rejection counter not updated")
			return nil, fmt.Errorf("error updating offer rejections: %w", err)
		}
		s.logger.Info().Str("applicationID", app.ID).Str("studentID", app.StudentID).Msg("Offer rejected")
		notifyAll(ctx, s.notifier, notify.TemplateOfferRejected, payload, app.StudentID, notify.AdminRecipient)
		return nil, nil
	}

	if err := s.students.MarkPlaced(ctx, app.StudentID, app.Snapshot, now); err != nil {
		s.logger.Error().Err(err).Str("applicationID", app.ID).Msg("Offer accepted but student not marked placed")
		return nil, fmt.Errorf("error marking student placed: %w", err)
	}

	placement := &models.Placement{
		StudentID:     app.StudentID,
		JobID:         app.JobID,
		ApplicationID: app.ID,
		Company:       app.Snapshot.Company,
		Package:       app.Snapshot.Package,
		Location:      app.Snapshot.Location,
		AcceptedAt:    now,
	}
	if err := s.placements.Create(ctx, placement); err != nil {
		if !errors.Is(err, repositories.ErrAlreadyExists) {
			s.logger.Error().Err(err).Str("applicationID", app.ID).Msg("Offer accepted but placement record not written")
			return nil, fmt.Errorf("error creating placement record: %w", err)
		}
		s.logger.Warn().Str("applicationID", app.ID).Msg("Placement record already exists")
	}

	s.logger.Info().
		Str("applicationID", app.ID).
		Str("studentID", app.StudentID).
		Str("company", app.Snapshot.Company).
		Msg("Offer accepted")

	payload["package"] = app.Snapshot.Package
	notifyAll(ctx, s.notifier, notify.TemplateOfferAccepted, payload, app.StudentID, notify.AdminRecipient)
	return placement, nil
}
