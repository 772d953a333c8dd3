package models

import "time"

// PlacementStatus records whether a student has accepted an offer
type PlacementStatus string

const (
	PlacementNone   PlacementStatus = "none"
	PlacementPlaced PlacementStatus = "placed"
)

// FreezeState is an admin-imposed suspension embedded on the student row.
// A freeze replaces it wholesale; an unfreeze clears it to nil.
type FreezeState struct {
	Active    bool       `json:"active"`
	Reason    string     `json:"reason"`
	Category  string     `json:"category,omitempty"`
	Notes     string     `json:"notes,omitempty"`
	By        string     `json:"by"`
	Until     *time.Time `json:"until,omitempty"` // nil means indefinite
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// IsActive reports whether the freeze currently gates applications
func (f *FreezeState) IsActive() bool {
	return f != nil && f.Active
}

// ExpiredAt reports whether a time-bounded freeze should be lifted at now.
// Indefinite freezes never expire.
func (f *FreezeState) ExpiredAt(now time.Time) bool {
	return f.IsActive() && f.Until != nil && !f.Until.After(now)
}

// Student defines the student model based on the 'students' table
type Student struct {
	ID              string          `json:"id" db:"id"`
	RollNumber      string          `json:"rollNumber,omitempty" db:"roll_number"`
	Name            string          `json:"name" db:"name"`
	Email           string          `json:"email" db:"email"`
	CGPA            float64         `json:"cgpa" db:"cgpa"`
	CurrentArrears  int             `json:"currentArrears" db:"current_arrears"`
	HistoryArrears  int             `json:"historyArrears" db:"history_arrears"`
	Batch           string          `json:"batch" db:"batch"`
	Department      string          `json:"department" db:"department"`
	Gender          string          `json:"gender" db:"gender"`
	Skills          []string        `json:"skills" db:"skills"`
	Freeze          *FreezeState    `json:"freeze,omitempty" db:"freeze"`
	PlacementStatus PlacementStatus `json:"placementStatus" db:"placement_status"`
	PlacedCompany   *string         `json:"placedCompany,omitempty" db:"placed_company"`
	PlacedTitle     *string         `json:"placedTitle,omitempty" db:"placed_title"`
	PlacedPackage   *string         `json:"placedPackage,omitempty" db:"placed_package"`
	PlacedLocation  *string         `json:"placedLocation,omitempty" db:"placed_location"`
	OfferRejections int             `json:"offerRejections" db:"offer_rejections"`
	CreatedAt       time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time       `json:"updatedAt" db:"updated_at"`
}

// IsFrozen is the freeze gate consulted before any application write
func (s *Student) IsFrozen() bool {
	return s != nil && s.Freeze.IsActive()
}

// Key is the student half of an application's composite id.
// The roll number is preferred over the internal id.
func (s *Student) Key() string {
	if s.RollNumber != "" {
		return s.RollNumber
	}
	return s.ID
}
