package models

import (
	"strings"
	"time"
)

// JobStatus is the publication state of a job posting
type JobStatus string

const (
	JobStatusActive JobStatus = "active"
	JobStatusClosed JobStatus = "closed"
)

// GenderAny accepts every applicant
const GenderAny = "any"

// Round is one ordered stage of a job's hiring workflow
type Round struct {
	Name string `json:"name"`
}

// EligibilityCriteria are the academic requirements of a job.
// Zero arrears caps mean unlimited and an empty batch list admits every batch.
type EligibilityCriteria struct {
	MinCGPA           float64  `json:"minCgpa" db:"min_cgpa"`
	RequiredSkills    []string `json:"requiredSkills" db:"required_skills"`
	EligibleBatches   []string `json:"eligibleBatches" db:"eligible_batches"`
	GenderPreference  string   `json:"genderPreference" db:"gender_preference"`
	MaxCurrentArrears int      `json:"maxCurrentArrears" db:"max_current_arrears"`
	MaxHistoryArrears int      `json:"maxHistoryArrears" db:"max_history_arrears"`
}

// Job defines a job posting based on the 'jobs' table
type Job struct {
	ID                 string              `json:"id" db:"id"`
	Company            string              `json:"company" db:"company"`
	Title              string              `json:"title" db:"title"`
	Description        string              `json:"description" db:"description"`
	Location           string              `json:"location" db:"location"`
	Package            string              `json:"package" db:"package"`
	Stipend            string              `json:"stipend" db:"stipend"`
	Status             JobStatus           `json:"status" db:"status"`
	Deadline           *time.Time          `json:"deadline,omitempty" db:"deadline"`
	Rounds             []Round             `json:"rounds" db:"rounds"`
	CurrentRound       string              `json:"currentRound,omitempty" db:"current_round"`
	Criteria           EligibilityCriteria `json:"criteria"`
	ScreeningQuestions []string            `json:"screeningQuestions" db:"screening_questions"`
	CreatedAt          time.Time           `json:"createdAt" db:"created_at"`
	UpdatedAt          time.Time           `json:"updatedAt" db:"updated_at"`
}

// IsActive reports whether the job accepts applications
func (j *Job) IsActive() bool {
	return j.Status == JobStatusActive
}

// DeadlinePassed reports whether now is after the job's deadline.
// A job without a deadline never expires.
func (j *Job) DeadlinePassed(now time.Time) bool {
	return j.Deadline != nil && now.After(*j.Deadline)
}

// RoundNames returns the ordered round names
func (j *Job) RoundNames() []string {
	names := make([]string, len(j.Rounds))
	for i, r := range j.Rounds {
		names[i] = r.Name
	}
	return names
}

// RoundIndex returns the position of the named round, or -1.
// Matching ignores case and surrounding spaces.
func (j *Job) RoundIndex(name string) int {
	name = strings.TrimSpace(name)
	for i, r := range j.Rounds {
		if strings.EqualFold(strings.TrimSpace(r.Name), name) {
			return i
		}
	}
	return -1
}

// Snapshot copies the display fields an application keeps
func (j *Job) Snapshot() JobSnapshot {
	return JobSnapshot{
		Company:  j.Company,
		Title:    j.Title,
		Location: j.Location,
		Package:  j.Package,
		Stipend:  j.Stipend,
	}
}
