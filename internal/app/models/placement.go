package models

import (
	"time"

	"github.com/google/uuid"
)

// Placement is created exactly once per accepted offer and never mutated
type Placement struct {
	ID            uuid.UUID `json:"id" db:"id"`
	StudentID     string    `json:"studentId" db:"student_id"`
	JobID         string    `json:"jobId" db:"job_id"`
	ApplicationID string    `json:"applicationId" db:"application_id"`
	Company       string    `json:"company" db:"company"`
	Package       string    `json:"package" db:"package"`
	Location      string    `json:"location" db:"location"`
	AcceptedAt    time.Time `json:"acceptedAt" db:"accepted_at"`
}
