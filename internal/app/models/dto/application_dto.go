package dto

import (
	"time"

	"github.com/yigit/placement/internal/app/lifecycle"
	"github.com/yigit/placement/internal/app/models"
)

// ApplyRequest carries screening answers keyed by question index
type ApplyRequest struct {
	Answers map[int]string `json:"answers"`
}

// ApplyResponse returns the id of the created application
type ApplyResponse struct {
	ApplicationID string `json:"applicationId" example:"job42_21CS001"`
}

// OfferDecisionRequest is the student's answer to a selection
type OfferDecisionRequest struct {
	Decision string `json:"decision" binding:"required,oneof=accept reject"`
}

// UpdateRoundStatusRequest records an admin verdict for one round
type UpdateRoundStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// ApplicationView is an application with all derived lifecycle values
type ApplicationView struct {
	ID                 string                              `json:"id" example:"job42_21CS001"`
	JobID              string                              `json:"jobId" example:"job42"`
	StudentID          string                              `json:"studentId"`
	Status             models.ApplicationStatus            `json:"status" example:"pending"`
	EffectiveStatus    models.ApplicationStatus            `json:"effectiveStatus" example:"shortlisted"`
	RoundStatus        map[string]models.ApplicationStatus `json:"roundStatus"`
	CurrentRound       string                              `json:"currentRound,omitempty"`
	CurrentRoundIndex  int                                 `json:"currentRoundIndex"`
	LatestDecidedRound string                              `json:"latestDecidedRound,omitempty"`
	Progress           int                                 `json:"progress" example:"50"`
	CanWithdraw        bool                                `json:"canWithdraw"`
	Job                models.JobSnapshot                  `json:"job"`
	ScreeningAnswers   map[int]string                      `json:"screeningAnswers,omitempty"`
	OfferDecision      *models.OfferDecision               `json:"offerDecision,omitempty"`
	DecisionDate       *time.Time                          `json:"decisionDate,omitempty"`
	AppliedAt          time.Time                           `json:"appliedAt"`
	UpdatedAt          time.Time                           `json:"updatedAt"`
}

// NewApplicationView computes the derived values of app at now.
// job may be nil when the posting has been removed; derived values then fall back to the top-level status.
func NewApplicationView(app *models.Application, job *models.Job, now time.Time, window time.Duration) ApplicationView {
	d := lifecycle.Derive(app, job, now, window)
	return ApplicationView{
		ID:                 app.ID,
		JobID:              app.JobID,
		StudentID:          app.StudentID,
		Status:             app.Status,
		EffectiveStatus:    d.EffectiveStatus,
		RoundStatus:        app.RoundStatus,
		CurrentRound:       d.CurrentRound,
		CurrentRoundIndex:  d.CurrentRoundIndex,
		LatestDecidedRound: d.LatestDecidedRound,
		Progress:           d.Progress,
		CanWithdraw:        d.CanWithdraw,
		Job:                app.Snapshot,
		ScreeningAnswers:   app.ScreeningAnswers,
		OfferDecision:      app.OfferDecision,
		DecisionDate:       app.DecisionDate,
		AppliedAt:          app.AppliedAt,
		UpdatedAt:          app.UpdatedAt,
	}
}
