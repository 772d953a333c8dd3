package models

import (
	"time"

	"github.com/google/uuid"
)

// FreezeAction is the kind of a freeze history entry
type FreezeAction string

const (
	FreezeActionFreeze       FreezeAction = "freeze"
	FreezeActionUnfreeze     FreezeAction = "unfreeze"
	FreezeActionAutoUnfreeze FreezeAction = "auto_unfreeze"
)

// SystemActor attributes automatic changes such as the expiry sweep
const SystemActor = "system"

// FreezeHistoryEntry is one append-only row of 'freeze_history'
type FreezeHistoryEntry struct {
	ID        int64        `json:"id" db:"id"`
	StudentID string       `json:"studentId" db:"student_id"`
	Action    FreezeAction `json:"action" db:"action"`
	Reason    string       `json:"reason" db:"reason"`
	Category  string       `json:"category,omitempty" db:"category"`
	By        string       `json:"by" db:"actor"`
	At        time.Time    `json:"at" db:"at"`
	Until     *time.Time   `json:"until,omitempty" db:"until"`
}

// StudentFreezeChange is one student's new freeze column plus its history row
type StudentFreezeChange struct {
	StudentID string
	Freeze    *FreezeState // nil clears the freeze
	History   FreezeHistoryEntry
}

// AuditLogEntry is an append-only admin action record
type AuditLogEntry struct {
	ID          uuid.UUID      `json:"id" db:"id"`
	Actor       string         `json:"actor" db:"actor"`
	Action      string         `json:"action" db:"action"`
	TargetCount int            `json:"targetCount" db:"target_count"`
	Payload     map[string]any `json:"payload" db:"payload"`
	CreatedAt   time.Time      `json:"createdAt" db:"created_at"`
}
