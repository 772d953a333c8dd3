package dto

import (
	"strings"
	"time"

	"github.com/yigit/placement/internal/app/models"
)

// CreateJobRequest publishes a job posting
type CreateJobRequest struct {
	ID                 string     `json:"id" binding:"required,max=64"`
	Company            string     `json:"company" binding:"required"`
	Title              string     `json:"title" binding:"required"`
	Description        string     `json:"description"`
	Location           string     `json:"location"`
	Package            string     `json:"package"`
	Stipend            string     `json:"stipend"`
	Deadline           *time.Time `json:"deadline"`
	Rounds             []string   `json:"rounds" binding:"required,min=1,dive,required"`
	MinCGPA            float64    `json:"minCgpa" binding:"gte=0,lte=10"`
	RequiredSkills     []string   `json:"requiredSkills"`
	EligibleBatches    []string   `json:"eligibleBatches"`
	GenderPreference   string     `json:"genderPreference"`
	MaxCurrentArrears  int        `json:"maxCurrentArrears" binding:"gte=0"`
	MaxHistoryArrears  int        `json:"maxHistoryArrears" binding:"gte=0"`
	ScreeningQuestions []string   `json:"screeningQuestions"`
}

// ToModel converts the request into an active job
func (r CreateJobRequest) ToModel() *models.Job {
	rounds := make([]models.Round, 0, len(r.Rounds))
	for _, name := range r.Rounds {
		rounds = append(rounds, models.Round{Name: strings.TrimSpace(name)})
	}
	gender := strings.TrimSpace(r.GenderPreference)
	if gender == "" {
		gender = models.GenderAny
	}
	return &models.Job{
		ID:          strings.TrimSpace(r.ID),
		Company:     r.Company,
		Title:       r.Title,
		Description: r.Description,
		Location:    r.Location,
		Package:     r.Package,
		Stipend:     r.Stipend,
		Status:      models.JobStatusActive,
		Deadline:    r.Deadline,
		Rounds:      rounds,
		Criteria: models.EligibilityCriteria{
			MinCGPA:           r.MinCGPA,
			RequiredSkills:    nonNil(r.RequiredSkills),
			EligibleBatches:   nonNil(r.EligibleBatches),
			GenderPreference:  gender,
			MaxCurrentArrears: r.MaxCurrentArrears,
			MaxHistoryArrears: r.MaxHistoryArrears,
		},
		ScreeningQuestions: nonNil(r.ScreeningQuestions),
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// JobResponse is a job as listed to students and admins
type JobResponse struct {
	ID                 string                     `json:"id" example:"job42"`
	Company            string                     `json:"company" example:"Acme"`
	Title              string                     `json:"title" example:"Backend Engineer"`
	Description        string                     `json:"description,omitempty"`
	Location           string                     `json:"location,omitempty"`
	Package            string                     `json:"package,omitempty" example:"12 LPA"`
	Stipend            string                     `json:"stipend,omitempty"`
	Status             models.JobStatus           `json:"status" example:"active"`
	Deadline           *time.Time                 `json:"deadline,omitempty"`
	Rounds             []string                   `json:"rounds"`
	CurrentRound       string                     `json:"currentRound,omitempty"`
	Criteria           models.EligibilityCriteria `json:"criteria"`
	ScreeningQuestions []string                   `json:"screeningQuestions"`
}

// NewJobResponse converts a job model into its response form
func NewJobResponse(j *models.Job) JobResponse {
	return JobResponse{
		ID:                 j.ID,
		Company:            j.Company,
		Title:              j.Title,
		Description:        j.Description,
		Location:           j.Location,
		Package:            j.Package,
		Stipend:            j.Stipend,
		Status:             j.Status,
		Deadline:           j.Deadline,
		Rounds:             j.RoundNames(),
		CurrentRound:       j.CurrentRound,
		Criteria:           j.Criteria,
		ScreeningQuestions: nonNil(j.ScreeningQuestions),
	}
}

// EligibilityResponse is the advisory verdict for the calling student
type EligibilityResponse struct {
	JobID    string   `json:"jobId" example:"job42"`
	Eligible bool     `json:"eligible" example:"false"`
	Reasons  []string `json:"reasons"`
}
