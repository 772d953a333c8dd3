package dto

import (
	"time"

	"github.com/yigit/placement/internal/app/models"
)

// BulkFreezeRequest freezes or unfreezes a set of students
type BulkFreezeRequest struct {
	StudentIDs []string   `json:"studentIds" binding:"required,min=1"`
	Action     string     `json:"action" binding:"required,oneof=freeze unfreeze"`
	Reason     string     `json:"reason"`
	Category   string     `json:"category"`
	Notes      string     `json:"notes"`
	Until      *time.Time `json:"until"`
}

// Per-item outcome of a bulk operation
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

// BulkItemResult is one student's outcome
type BulkItemResult struct {
	StudentID string `json:"studentId"`
	Status    string `json:"status" example:"success"`
	Message   string `json:"message"`
}

// BulkSummary counts the outcomes of a bulk operation
type BulkSummary struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
}

// BulkFreezeResponse is the aggregated result of a bulk freeze or unfreeze
type BulkFreezeResponse struct {
	Results []BulkItemResult `json:"results"`
	Summary BulkSummary      `json:"summary"`
}

// Summarize recomputes the summary from the results
func (r *BulkFreezeResponse) Summarize() {
	r.Summary = BulkSummary{Total: len(r.Results)}
	for _, item := range r.Results {
		if item.Status == ResultSuccess {
			r.Summary.Successful++
		} else {
			r.Summary.Failed++
		}
	}
}

// FreezeHistoryResponse lists a student's freeze log, newest first
type FreezeHistoryResponse struct {
	StudentID string                      `json:"studentId"`
	Current   *models.FreezeState         `json:"current,omitempty"`
	Entries   []models.FreezeHistoryEntry `json:"entries"`
}
