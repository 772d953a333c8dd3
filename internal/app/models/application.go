package models

import "time"

// ApplicationStatus is shared by the top-level status and every per-round status
type ApplicationStatus string

const (
	StatusPending            ApplicationStatus = "pending"
	StatusUnderReview        ApplicationStatus = "under_review"
	StatusShortlisted        ApplicationStatus = "shortlisted"
	StatusNotShortlisted     ApplicationStatus = "not_shortlisted"
	StatusRejected           ApplicationStatus = "rejected"
	StatusWaitlisted         ApplicationStatus = "waitlisted"
	StatusInterviewScheduled ApplicationStatus = "interview_scheduled"
	StatusSelected           ApplicationStatus = "selected"
	StatusOfferAccepted      ApplicationStatus = "offer_accepted"
	StatusOfferRejected      ApplicationStatus = "offer_rejected"
	StatusPlaced             ApplicationStatus = "placed"
	StatusWithdrawn          ApplicationStatus = "withdrawn"
)

// AllStatuses lists every status in lifecycle order
var AllStatuses = []ApplicationStatus{
	StatusPending, StatusUnderReview, StatusShortlisted, StatusNotShortlisted, StatusRejected,
	StatusWaitlisted, StatusInterviewScheduled, StatusSelected, StatusOfferAccepted,
	StatusOfferRejected, StatusPlaced, StatusWithdrawn,
}

// IsValid reports whether s is a known status
func (s ApplicationStatus) IsValid() bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// OfferDecision is the student's answer to a selection
type OfferDecision string

const (
	OfferAccepted OfferDecision = "accepted"
	OfferRejected OfferDecision = "rejected"
)

// JobSnapshot freezes the job display fields at apply time
type JobSnapshot struct {
	Company  string `json:"company" db:"company"`
	Title    string `json:"title" db:"title"`
	Location string `json:"location" db:"location"`
	Package  string `json:"package" db:"package"`
	Stipend  string `json:"stipend" db:"stipend"`
}

// Application defines one student's application to one job
type Application struct {
	ID                string                       `json:"id" db:"id"`
	JobID             string                       `json:"jobId" db:"job_id"`
	StudentID         string                       `json:"studentId" db:"student_id"`
	StudentKey        string                       `json:"studentKey" db:"student_key"`
	Status            ApplicationStatus            `json:"status" db:"status"`
	RoundStatus       map[string]ApplicationStatus `json:"roundStatus" db:"round_status"`
	CurrentRoundIndex *int                         `json:"currentRoundIndex,omitempty" db:"current_round_index"`
	ScreeningAnswers  map[int]string               `json:"screeningAnswers" db:"screening_answers"`
	Snapshot          JobSnapshot                  `json:"job"`
	OfferDecision     *OfferDecision               `json:"offerDecision,omitempty" db:"offer_decision"`
	DecisionDate      *time.Time                   `json:"decisionDate,omitempty" db:"decision_date"`
	WithdrawnAt       *time.Time                   `json:"withdrawnAt,omitempty" db:"withdrawn_at"`
	AppliedAt         time.Time                    `json:"appliedAt" db:"applied_at"`
	UpdatedAt         time.Time                    `json:"updatedAt" db:"updated_at"`
	// Version increments on every write and guards compare-and-set updates
	Version int `json:"version" db:"version"`
}

// ApplicationKey builds the deterministic application id for a (job, student) pair
func ApplicationKey(jobID, studentKey string) string {
	return jobID + "_" + studentKey
}

// BelongsTo reports whether the application was submitted by the given student
func (a *Application) BelongsTo(studentID string) bool {
	return a.StudentID == studentID
}
