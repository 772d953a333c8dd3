package dto

import (
	"time"

	"github.com/yigit/placement/internal/app/models"
)

// StudentResponse is the admin view of a student profile
type StudentResponse struct {
	ID              string                 `json:"id"`
	RollNumber      string                 `json:"rollNumber,omitempty" example:"21CS001"`
	Name            string                 `json:"name"`
	Email           string                 `json:"email"`
	Batch           string                 `json:"batch" example:"2025"`
	Department      string                 `json:"department"`
	CGPA            float64                `json:"cgpa" example:"8.2"`
	PlacementStatus models.PlacementStatus `json:"placementStatus" example:"none"`
	PlacedCompany   string                 `json:"placedCompany,omitempty"`
	OfferRejections int                    `json:"offerRejections"`
	Frozen          bool                   `json:"frozen"`
	FrozenReason    string                 `json:"frozenReason,omitempty"`
	FrozenUntil     *time.Time             `json:"frozenUntil,omitempty"`
}

// NewStudentResponse flattens the embedded freeze state
func NewStudentResponse(s *models.Student) StudentResponse {
	resp := StudentResponse{
		ID:              s.ID,
		RollNumber:      s.RollNumber,
		Name:            s.Name,
		Email:           s.Email,
		Batch:           s.Batch,
		Department:      s.Department,
		CGPA:            s.CGPA,
		PlacementStatus: s.PlacementStatus,
		OfferRejections: s.OfferRejections,
		Frozen:          s.IsFrozen(),
	}
	if s.PlacedCompany != nil {
		resp.PlacedCompany = *s.PlacedCompany
	}
	if resp.Frozen {
		resp.FrozenReason = s.Freeze.Reason
		resp.FrozenUntil = s.Freeze.Until
	}
	return resp
}
