package lifecycle

import (
	"math"
	"time"

	"github.com/yigit/placement/internal/app/models"
)

// DefaultWithdrawWindow is how long after applying a pending application may be withdrawn
const DefaultWithdrawWindow = 24 * time.Hour

// CurrentRound returns the index and name of the round the application is in.
// The stored index wins, then the job's current round, then the first round.
// It returns -1 when the job has no rounds.
func CurrentRound(app *models.Application, job *models.Job) (int, string) {
	if job == nil || len(job.Rounds) == 0 {
		return -1, ""
	}
	if idx := app.CurrentRoundIndex; idx != nil && *idx >= 0 && *idx < len(job.Rounds) {
		return *idx, job.Rounds[*idx].Name
	}
	if job.CurrentRound != "" {
		if idx := job.RoundIndex(job.CurrentRound); idx >= 0 {
			return idx, job.Rounds[idx].Name
		}
	}
	return 0, job.Rounds[0].Name
}

// LatestDecidedStage returns the last round, in job order, with a decided status
func LatestDecidedStage(app *models.Application, job *models.Job) (round string, status models.ApplicationStatus, ok bool) {
	if job == nil {
		return "", "", false
	}
	for _, r := range job.Rounds {
		if st := app.RoundStatus[r.Name]; decidedStatuses.has(st) {
			round, status, ok = r.Name, st, true
		}
	}
	return round, status, ok
}

// EffectiveStatus is the status shown to users. Post-selection outcomes live only on the
// top-level status and win; otherwise the latest decided round wins over the top-level status.
func EffectiveStatus(app *models.Application, job *models.Job) models.ApplicationStatus {
	if postSelectionStatuses.has(app.Status) {
		return app.Status
	}
	if _, st, ok := LatestDecidedStage(app, job); ok {
		return st
	}
	return app.Status
}

// TopLevelFromRounds derives the top-level status implied by the round map: the status of the
// last round that has moved off pending, or the current top-level status when none has.
func TopLevelFromRounds(app *models.Application, job *models.Job) models.ApplicationStatus {
	next := app.Status
	if job == nil {
		return next
	}
	for _, r := range job.Rounds {
		if st, ok := app.RoundStatus[r.Name]; ok && st != models.StatusPending && st != "" {
			next = st
		}
	}
	return next
}

// Progress returns how far through the rounds the application is, 0 to 100
func Progress(app *models.Application, job *models.Job) int {
	if job == nil || len(job.Rounds) <= 1 {
		return 0
	}

	completed, evaluated := -1, -1
	for i, r := range job.Rounds {
		st := app.RoundStatus[r.Name]
		if completedStatuses.has(st) {
			completed = i
		}
		if completedStatuses.has(st) || failedStatuses.has(st) {
			evaluated = i
		}
	}

	highest := completed
	if evaluated > highest {
		highest = evaluated
	}
	if highest < 0 {
		return 0
	}

	p := float64(highest) / float64(len(job.Rounds)-1) * 100
	return int(math.Round(math.Max(0, math.Min(100, p))))
}

// HasProgressed reports whether any round or the top-level status left the pending state
func HasProgressed(app *models.Application) bool {
	if progressedStatuses.has(app.Status) {
		return true
	}
	for _, st := range app.RoundStatus {
		if progressedStatuses.has(st) {
			return true
		}
	}
	return false
}

// CanWithdraw requires both the status guard and the time window to hold
func CanWithdraw(app *models.Application, job *models.Job, now time.Time, window time.Duration) bool {
	if app.Status == models.StatusWithdrawn || HasProgressed(app) {
		return false
	}

	pending := app.Status == models.StatusPending
	if !pending {
		if _, name := CurrentRound(app, job); name != "" {
			st := app.RoundStatus[name]
			pending = st == models.StatusPending || st == ""
		}
	}
	if !pending {
		return false
	}

	if window <= 0 {
		window = DefaultWithdrawWindow
	}
	return now.Sub(app.AppliedAt) <= window
}

// Derived bundles every computed view value of an application
type Derived struct {
	CurrentRoundIndex  int
	CurrentRound       string
	LatestDecidedRound string
	LatestDecided      models.ApplicationStatus
	EffectiveStatus    models.ApplicationStatus
	Progress           int
	CanWithdraw        bool
}

// Derive computes all view values at now
func Derive(app *models.Application, job *models.Job, now time.Time, window time.Duration) Derived {
	idx, name := CurrentRound(app, job)
	round, st, _ := LatestDecidedStage(app, job)
	return Derived{
		CurrentRoundIndex:  idx,
		CurrentRound:       name,
		LatestDecidedRound: round,
		LatestDecided:      st,
		EffectiveStatus:    EffectiveStatus(app, job),
		Progress:           Progress(app, job),
		CanWithdraw:        CanWithdraw(app, job, now, window),
	}
}
