// Package lifecycle holds the application state machine and the values derived from
// an application's per-round status map.
package lifecycle

import (
	"fmt"

	"github.com/yigit/placement/internal/app/models"
	"github.com/yigit/placement/internal/pkg/apperrors"
)

type statusSet map[models.ApplicationStatus]struct{}

func setOf(statuses ...models.ApplicationStatus) statusSet {
	s := make(statusSet, len(statuses))
	for _, st := range statuses {
		s[st] = struct{}{}
	}
	return s
}

func (s statusSet) has(st models.ApplicationStatus) bool {
	_, ok := s[st]
	return ok
}

var (
	// decidedStatuses mark a round as evaluated for display purposes
	decidedStatuses = setOf(
		models.StatusShortlisted, models.StatusSelected, models.StatusRejected,
		models.StatusNotShortlisted, models.StatusWaitlisted, models.StatusInterviewScheduled,
		models.StatusOfferAccepted, models.StatusOfferRejected, models.StatusWithdrawn,
	)

	// progressedStatuses close the withdraw window for good
	progressedStatuses = setOf(
		models.StatusUnderReview, models.StatusShortlisted, models.StatusSelected,
		models.StatusRejected, models.StatusNotShortlisted, models.StatusWaitlisted,
		models.StatusInterviewScheduled, models.StatusOfferAccepted, models.StatusOfferRejected,
		models.StatusPlaced,
	)

	completedStatuses = setOf(models.StatusShortlisted, models.StatusSelected)
	failedStatuses    = setOf(models.StatusRejected, models.StatusNotShortlisted)

	// postSelectionStatuses are only ever set on the top-level status
	postSelectionStatuses = setOf(
		models.StatusOfferAccepted, models.StatusOfferRejected, models.StatusPlaced, models.StatusWithdrawn,
	)

	// roundStatuses are the values an admin may record for a round
	roundStatuses = setOf(
		models.StatusUnderReview, models.StatusShortlisted, models.StatusNotShortlisted,
		models.StatusRejected, models.StatusWaitlisted, models.StatusInterviewScheduled,
		models.StatusSelected,
	)

	// openRoundStatuses can still move within the same round
	openRoundStatuses = setOf(
		models.StatusPending, models.StatusUnderReview, models.StatusWaitlisted, models.StatusInterviewScheduled,
	)
)

var evaluation = []models.ApplicationStatus{
	models.StatusUnderReview, models.StatusShortlisted, models.StatusWaitlisted,
	models.StatusInterviewScheduled, models.StatusSelected, models.StatusRejected,
	models.StatusNotShortlisted,
}

// transitions is the top-level state machine. Statuses without an entry are terminal.
var transitions = map[models.ApplicationStatus]statusSet{
	models.StatusPending:            setOf(append(evaluation, models.StatusWithdrawn)...),
	models.StatusUnderReview:        setOf(evaluation...),
	models.StatusShortlisted:        setOf(evaluation...),
	models.StatusWaitlisted:         setOf(evaluation...),
	models.StatusInterviewScheduled: setOf(evaluation...),
	models.StatusSelected:           setOf(models.StatusOfferAccepted, models.StatusOfferRejected, models.StatusPlaced),
	models.StatusOfferAccepted:      setOf(models.StatusPlaced),
}

// IsTerminal reports whether no transition leaves st
func IsTerminal(st models.ApplicationStatus) bool {
	_, ok := transitions[st]
	return !ok
}

// CanTransition reports whether the top-level status may move from one state to another
func CanTransition(from, to models.ApplicationStatus) bool {
	if !from.IsValid() || !to.IsValid() {
		return false
	}
	if from == to {
		return !IsTerminal(from)
	}
	return transitions[from].has(to)
}

// ValidateTransition rejects an illegal top-level status change
func ValidateTransition(from, to models.ApplicationStatus) error {
	if CanTransition(from, to) {
		return nil
	}
	return invalidTransition(fmt.Sprintf("cannot move application from %s to %s", from, to), from, to)
}

// ValidateRoundTransition rejects an illegal per-round status change.
// A round that reached a final verdict cannot be reopened or moved back to pending.
func ValidateRoundTransition(from, to models.ApplicationStatus) error {
	if from == "" {
		from = models.StatusPending
	}
	if !roundStatuses.has(to) {
		return invalidTransition(fmt.Sprintf("%s cannot be recorded for a round", to), from, to)
	}
	if from == to {
		return nil
	}
	if !openRoundStatuses.has(from) {
		return invalidTransition(fmt.Sprintf("round already decided as %s", from), from, to)
	}
	return nil
}

func invalidTransition(msg string, from, to models.ApplicationStatus) error {
	return apperrors.NewPreconditionError(apperrors.CodeInvalidTransition, msg).
		WithDetails(map[string]interface{}{"from": from, "to": to})
}
