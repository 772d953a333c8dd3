package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/yigit/placement/internal/app/models"
	"github.com/yigit/placement/internal/app/models/dto"
	"github.com/yigit/placement/internal/app/notify"
	"github.com/yigit/placement/internal/app/repositories"
	"github.com/yigit/placement/internal/pkg/apperrors"
)

// Audit actions written by freeze administration
const (
	AuditActionFreeze       = "students.freeze"
	AuditActionUnfreeze     = "students.unfreeze"
	AuditActionAutoUnfreeze = "students.auto_unfreeze"
)

const expiredReason = "freeze period ended"

// FreezeService handles freeze administration
type FreezeService struct {
	students StudentStore
	freezes  FreezeStore
	notifier Notifier
	opts     Options
	logger   zerolog.Logger
}

// NewFreezeService creates a new freeze service instance
func NewFreezeService(students StudentStore, freezes FreezeStore, notifier Notifier, opts Options) *FreezeService {
	return &FreezeService{
		students: students,
		freezes:  freezes,
		notifier: notifier,
		opts:     opts,
		logger:   opts.Logger.With().Str("service", "freeze").Logger(),
	}
}

func validateBulkFreeze(req dto.BulkFreezeRequest, now time.Time) (models.FreezeAction, error) {
	if len(req.StudentIDs) == 0 {
		return "", apperrors.NewBadRequestError("at least one student id is required")
	}

	action := models.FreezeAction(strings.ToLower(strings.TrimSpace(req.Action)))
	switch action {
	case models.FreezeActionFreeze:
		if strings.TrimSpace(req.Reason) == "" {
			return "", apperrors.NewBadRequestError("a reason is required to freeze students")
		}
		if req.Until != nil && !req.Until.After(now) {
			return "", apperrors.NewBadRequestError("freeze end must be in the future")
		}
	case models.FreezeActionUnfreeze:
	default:
		return "", apperrors.NewBadRequestError(fmt.Sprintf("unknown action %q, expected freeze or unfreeze", req.Action))
	}
	return action, nil
}

// BulkFreeze freezes or unfreezes every listed student.
// Per-student lookup failures become error entries; the remaining students are written in
// one all-or-nothing batch, and a failed commit turns their entries into errors too.
// Only identity and argument-shape failures abort the call.
func (s *FreezeService) BulkFreeze(ctx context.Context, caller models.Caller, req dto.BulkFreezeRequest) (*dto.BulkFreezeResponse, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}

	now := s.opts.now()
	action, err := validateBulkFreeze(req, now)
	if err != nil {
		return nil, err
	}

	resp := &dto.BulkFreezeResponse{Results: make([]dto.BulkItemResult, 0, len(req.StudentIDs))}
	var (
		changes  []models.StudentFreezeChange
		pending  []int // indexes into resp.Results awaiting the commit
		seen     = make(map[string]bool, len(req.StudentIDs))
		reason   = strings.TrimSpace(req.Reason)
		category = strings.TrimSpace(req.Category)
	)

	for _, raw := range req.StudentIDs {
		id := strings.TrimSpace(raw)
		switch {
		case id == "":
			resp.Results = append(resp.Results, dto.BulkItemResult{StudentID: raw, Status: dto.ResultError, Message: "empty student id"})
			continue
		case seen[id]:
			resp.Results = append(resp.Results, dto.BulkItemResult{StudentID: id, Status: dto.ResultError, Message: "duplicate student id in request"})
			continue
		}
		seen[id] = true

		student, err := s.students.GetByID(ctx, id)
		if err != nil {
			msg := "student not found"
			if !errors.Is(err, repositories.ErrNotFound) {
				msg = "student lookup failed"
				s.logger.Error().Err(err).Str("studentID", id).Msg("Bulk freeze lookup failed")
			}
			resp.Results = append(resp.Results, dto.BulkItemResult{StudentID: id, Status: dto.ResultError, Message: msg})
			continue
		}

		change := models.StudentFreezeChange{
			StudentID: student.ID,
			History: models.FreezeHistoryEntry{
				StudentID: student.ID,
				Action:    action,
				Reason:    reason,
				Category:  category,
				By:        caller.UserID,
				At:        now,
			},
		}
		message := "unfrozen"
		if action == models.FreezeActionFreeze {
			change.Freeze = &models.FreezeState{
				Active:    true,
				Reason:    reason,
				Category:  category,
				Notes:     strings.TrimSpace(req.Notes),
				By:        caller.UserID,
				Until:     req.Until,
				CreatedAt: now,
				UpdatedAt: now,
			}
			change.History.Until = req.Until
			message = "frozen"
		}

		changes = append(changes, change)
		pending = append(pending, len(resp.Results))
		resp.Results = append(resp.Results, dto.BulkItemResult{StudentID: student.ID, Status: dto.ResultSuccess, Message: message})
	}

	if len(changes) > 0 {
		audit := &models.AuditLogEntry{
			Actor:       caller.UserID,
			Action:      AuditActionUnfreeze,
			TargetCount: len(changes),
			Payload:     auditPayload(changes, reason, category, req.Until),
			CreatedAt:   now,
		}
		if action == models.FreezeActionFreeze {
			audit.Action = AuditActionFreeze
		}

		if err := s.freezes.ApplyChanges(ctx, changes, audit); err != nil {
			s.logger.Error().Err(err).Int("students", len(changes)).Str("action", string(action)).Msg("Bulk freeze commit failed")
			for _, i := range pending {
				resp.Results[i].Status = dto.ResultError
				resp.Results[i].Message = "commit failed: " + err.Error()
			}
			changes = nil
		}
	}

	resp.Summarize()
	s.logger.Info().
		Str("action", string(action)).
		Str("actor", caller.UserID).
		Int("total", resp.Summary.Total).
		Int("successful", resp.Summary.Successful).
		Int("failed", resp.Summary.Failed).
		Msg("Bulk freeze processed")

	template := notify.TemplateAccountUnfrozen
	if action == models.FreezeActionFreeze {
		template = notify.TemplateAccountFrozen
	}
	for _, c := range changes {
		notifyAll(ctx, s.notifier, template, map[string]any{
			"reason":   c.History.Reason,
			"category": c.History.Category,
			"until":    c.History.Until,
		}, c.StudentID)
	}

	return resp, nil
}

func auditPayload(changes []models.StudentFreezeChange, reason, category string, until *time.Time) map[string]any {
	ids := make([]string, len(changes))
	for i, c := range changes {
		ids[i] = c.StudentID
	}
	payload := map[string]any{"studentIds": ids}
	if reason != "" {
		payload["reason"] = reason
	}
	if category != "" {
		payload["category"] = category
	}
	if until != nil {
		payload["until"] = until.UTC().Format(time.RFC3339)
	}
	return payload
}

// History returns a student's freeze log and current state
func (s *FreezeService) History(ctx context.Context, caller models.Caller, studentID string) (*dto.FreezeHistoryResponse, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}

	student, err := s.students.GetByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, apperrors.ErrStudentNotFound
		}
		return nil, err
	}

	entries, err := s.freezes.History(ctx, student.ID)
	if err != nil {
		return nil, fmt.Errorf("error loading freeze history: %w", err)
	}
	if entries == nil {
		entries = []models.FreezeHistoryEntry{}
	}

	return &dto.FreezeHistoryResponse{StudentID: student.ID, Current: student.Freeze, Entries: entries}, nil
}

// SweepExpired lifts every time-bounded freeze that ended at or before now.
// All lifts commit in one batch attributed to the system actor. A sweep with nothing to do
// writes and logs nothing, so repeated runs are idempotent.
func (s *FreezeService) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	expired, err := s.students.ListExpiredFreezes(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("error listing expired freezes: %w", err)
	}

	changes := make([]models.StudentFreezeChange, 0, len(expired))
	for _, st := range expired {
		if !st.Freeze.ExpiredAt(now) {
			continue
		}
		prev := st.Freeze
		changes = append(changes, models.StudentFreezeChange{
			StudentID: st.ID,
			History: models.FreezeHistoryEntry{
				StudentID: st.ID,
				Action:    models.FreezeActionAutoUnfreeze,
				Reason:    expiredReason,
				Category:  prev.Category,
				By:        models.SystemActor,
				At:        now,
				Until:     prev.Until,
			},
		})
	}
	if len(changes) == 0 {
		return 0, nil
	}

	audit := &models.AuditLogEntry{
		Actor:       models.SystemActor,
		Action:      AuditActionAutoUnfreeze,
		TargetCount: len(changes),
		Payload:     auditPayload(changes, expiredReason, "", nil),
		CreatedAt:   now,
	}
	if err := s.freezes.ApplyChanges(ctx, changes, audit); err != nil {
		return 0, fmt.Errorf("error lifting expired freezes: %w", err)
	}

	s.logger.Info().Int("students", len(changes)).Msg("Expired freezes lifted")

	for _, c := range changes {
		notifyAll(ctx, s.notifier, notify.TemplateAccountUnfrozen, map[string]any{
			"reason":    expiredReason,
			"automatic": true,
		}, c.StudentID)
	}
	return len(changes), nil
}
