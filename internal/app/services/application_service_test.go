package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yigit/placement/internal/app/models"
	"github.com/yigit/placement/internal/app/notify"
	"github.com/yigit/placement/internal/pkg/apperrors"
)

var t0 = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func fixedClock(at *time.Time) func() time.Time {
	return func() time.Time { return *at }
}

func testStudent() *models.Student {
	return &models.Student{
		ID:              "stu-1",
		RollNumber:      "21CS001",
		Name:            "Asha",
		CGPA:            8.2,
		Batch:           "2025",
		Gender:          "female",
		Skills:          []string{"Go", "SQL"},
		PlacementStatus: models.PlacementNone,
	}
}

func testJob() *models.Job {
	deadline := t0.Add(7 * 24 * time.Hour)
	return &models.Job{
		ID:       "job42",
		Company:  "Acme",
		Title:    "Backend Engineer",
		Location: "Pune",
		Package:  "12 LPA",
		Status:   models.JobStatusActive,
		Deadline: &deadline,
		Rounds:   []models.Round{{Name: "Aptitude"}, {Name: "Technical"}, {Name: "HR"}},
		Criteria: models.EligibilityCriteria{
			MinCGPA:          7,
			RequiredSkills:   []string{"go"},
			EligibleBatches:  []string{"2025"},
			GenderPreference: models.GenderAny,
		},
		ScreeningQuestions: []string{"Why Acme?"},
	}
}

func studentCaller() models.Caller {
	return models.Caller{UserID: "stu-1", Role: models.RoleStudent, RollNumber: "21CS001"}
}

func adminCaller() models.Caller {
	return models.Caller{UserID: "admin-1", Role: models.RoleAdmin}
}

func codeOf(err error) string {
	if ce, ok := apperrors.As(err); ok {
		return ce.Code
	}
	return ""
}

type appFixture struct {
	now      time.Time
	students *fakeStudents
	jobs     *fakeJobs
	apps     *fakeApps
	notifier *fakeNotifier
	svc      *ApplicationService
}

func newAppFixture(t *testing.T) *appFixture {
	t.Helper()
	f := &appFixture{
		now:      t0,
		students: newFakeStudents(testStudent()),
		jobs:     newFakeJobs(testJob()),
		apps:     newFakeApps(),
		notifier: &fakeNotifier{},
	}
	f.svc = NewApplicationService(f.apps, f.students, f.jobs, f.notifier, Options{
		WithdrawWindow:     24 * time.Hour,
		EnforceEligibility: true,
		Clock:              fixedClock(&f.now),
		Logger:             zerolog.Nop(),
	})
	return f
}

func TestApplyCreatesApplicationWithCompositeKey(t *testing.T) {
	f := newAppFixture(t)

	id, err := f.svc.Apply(context.Background(), studentCaller(), "job42", map[int]string{0: "  culture  "})
	require.NoError(t, err)
	assert.Equal(t, "job42_21CS001", id)

	app, ok := f.apps.get(id)
	require.True(t, ok)
	assert.Equal(t, models.StatusPending, app.Status)
	assert.Equal(t, map[string]models.ApplicationStatus{
		"Aptitude":  models.StatusPending,
		"Technical": models.StatusPending,
		"HR":        models.StatusPending,
	}, app.RoundStatus)
	assert.Equal(t, "culture", app.ScreeningAnswers[0])
	assert.Equal(t, "Acme", app.Snapshot.Company)
	assert.Equal(t, t0, app.AppliedAt)
	require.NotNil(t, app.CurrentRoundIndex)
	assert.Equal(t, 0, *app.CurrentRoundIndex)

	assert.ElementsMatch(t, []string{"stu-1", notify.AdminRecipient}, f.notifier.recipients(notify.TemplateApplicationSubmitted))
}

func TestApplyFallsBackToStudentID(t *testing.T) {
	f := newAppFixture(t)
	s := testStudent()
	s.ID, s.RollNumber = "stu-2", ""
	f.students.byID[s.ID] = s

	id, err := f.svc.Apply(context.Background(), models.Caller{UserID: "stu-2", Role: models.RoleStudent}, "job42", nil)
	require.NoError(t, err)
	assert.Equal(t, "job42_stu-2", id)
}

func TestApplyRejectsDuplicate(t *testing.T) {
	f := newAppFixture(t)
	_, err := f.svc.Apply(context.Background(), studentCaller(), "job42", nil)
	require.NoError(t, err)

	_, err = f.svc.Apply(context.Background(), studentCaller(), "job42", nil)
	assert.ErrorIs(t, err, apperrors.ErrResourceAlreadyExists)
	assert.Equal(t, apperrors.CodeAlreadyApplied, codeOf(err))
}

func TestApplyConcurrentSubmissionsYieldOneApplication(t *testing.T) {
	f := newAppFixture(t)

	const workers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Apply(context.Background(), studentCaller(), "job42", nil)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, apperrors.ErrResourceAlreadyExists):
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, workers-1, conflicts)
	assert.Len(t, f.apps.byID, 1)
}

func TestApplyFreezeGate(t *testing.T) {
	f := newAppFixture(t)
	f.students.byID["stu-1"].Freeze = &models.FreezeState{Active: true, Reason: "misconduct", By: "admin-1"}
	// job lookup would also fail; the freeze check must win
	delete(f.jobs.byID, "job42")

	_, err := f.svc.Apply(context.Background(), studentCaller(), "job42", nil)
	assert.ErrorIs(t, err, apperrors.ErrPermissionDenied)
	assert.Equal(t, apperrors.CodeAccountFrozen, codeOf(err))
	assert.Empty(t, f.apps.byID)
	assert.Empty(t, f.notifier.sent)
}

func TestApplyInactiveFreezeDoesNotGate(t *testing.T) {
	f := newAppFixture(t)
	f.students.byID["stu-1"].Freeze = &models.FreezeState{Active: false, Reason: "lifted"}

	_, err := f.svc.Apply(context.Background(), studentCaller(), "job42", nil)
	assert.NoError(t, err)
}

func TestApplyPreconditions(t *testing.T) {
	tests := []struct {
		name    string
		caller  models.Caller
		mutate  func(f *appFixture)
		kind    error
		code    string
		answers map[int]string
	}{
		{
			name:   "anonymous",
			caller: models.Caller{},
			kind:   apperrors.ErrUnauthenticated,
		},
		{
			name:   "admin cannot apply",
			caller: adminCaller(),
			kind:   apperrors.ErrPermissionDenied,
		},
		{
			name:   "unknown student",
			caller: models.Caller{UserID: "ghost", Role: models.RoleStudent},
			kind:   apperrors.ErrResourceNotFound,
			code:   apperrors.CodeStudentNotFound,
		},
		{
			name:   "unknown job",
			caller: studentCaller(),
			mutate: func(f *appFixture) { delete(f.jobs.byID, "job42") },
			kind:   apperrors.ErrResourceNotFound,
			code:   apperrors.CodeJobNotFound,
		},
		{
			name:   "closed job",
			caller: studentCaller(),
			mutate: func(f *appFixture) { f.jobs.byID["job42"].Status = models.JobStatusClosed },
			kind:   apperrors.ErrFailedPrecondition,
			code:   apperrors.CodeJobClosed,
		},
		{
			name:   "deadline passed",
			caller: studentCaller(),
			mutate: func(f *appFixture) { f.now = f.jobs.byID["job42"].Deadline.Add(time.Second) },
			kind:   apperrors.ErrFailedPrecondition,
			code:   apperrors.CodeDeadlinePassed,
		},
		{
			name:   "not eligible",
			caller: studentCaller(),
			mutate: func(f *appFixture) { f.students.byID["stu-1"].CGPA = 6.1 },
			kind:   apperrors.ErrFailedPrecondition,
			code:   apperrors.CodeNotEligible,
		},
		{
			name:    "answer for unknown question",
			caller:  studentCaller(),
			answers: map[int]string{3: "?"},
			kind:    apperrors.ErrValidationFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAppFixture(t)
			if tt.mutate != nil {
				tt.mutate(f)
			}

			_, err := f.svc.Apply(context.Background(), tt.caller, "job42", tt.answers)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.kind)
			if tt.code != "" {
				assert.Equal(t, tt.code, codeOf(err))
			}
			assert.Empty(t, f.apps.byID)
		})
	}
}

func TestApplyDeadlineIsInclusive(t *testing.T) {
	f := newAppFixture(t)
	f.now = *f.jobs.byID["job42"].Deadline

	_, err := f.svc.Apply(context.Background(), studentCaller(), "job42", nil)
	assert.NoError(t, err)
}

func TestApplyNotEligibleCarriesReasons(t *testing.T) {
	f := newAppFixture(t)
	f.students.byID["stu-1"].CGPA = 5
	f.students.byID["stu-1"].Batch = "2023"

	_, err := f.svc.Apply(context.Background(), studentCaller(), "job42", nil)
	ce, ok := apperrors.As(err)
	require.True(t, ok)
	reasons, ok := ce.Details["reasons"].([]string)
	require.True(t, ok)
	assert.Len(t, reasons, 2)
}

func TestApplySkipsEligibilityWhenDisabled(t *testing.T) {
	f := newAppFixture(t)
	f.svc.opts.EnforceEligibility = false
	f.students.byID["stu-1"].CGPA = 5

	_, err := f.svc.Apply(context.Background(), studentCaller(), "job42", nil)
	assert.NoError(t, err)
}

func TestApplyStoreFailureIsInternal(t *testing.T) {
	f := newAppFixture(t)
	f.apps.failCreate = errBoom

	_, err := f.svc.Apply(context.Background(), studentCaller(), "job42", nil)
	assert.ErrorIs(t, err, errBoom)
	_, isCustom := apperrors.As(err)
	assert.False(t, isCustom)
	assert.Empty(t, f.notifier.sent)
}

func TestApplyWithoutNotifier(t *testing.T) {
	f := newAppFixture(t)
	f.svc.notifier = nil

	_, err := f.svc.Apply(context.Background(), studentCaller(), "job42", nil)
	assert.NoError(t, err)
}

func applied(t *testing.T, f *appFixture) string {
	t.Helper()
	id, err := f.svc.Apply(context.Background(), studentCaller(), "job42", nil)
	require.NoError(t, err)
	return id
}

func TestWithdrawWithinWindow(t *testing.T) {
	f := newAppFixture(t)
	id := applied(t, f)
	f.now = t0.Add(23*time.Hour + 59*time.Minute)

	require.NoError(t, f.svc.Withdraw(context.Background(), studentCaller(), id))

	_, exists := f.apps.get(id)
	assert.False(t, exists)
	assert.Equal(t, []string{id}, f.apps.deleted)
	assert.ElementsMatch(t, []string{"stu-1", notify.AdminRecipient}, f.notifier.recipients(notify.TemplateApplicationWithdrawn))

	// the freed key allows a fresh application
	_, err := f.svc.Apply(context.Background(), studentCaller(), "job42", nil)
	assert.NoError(t, err)
}

func TestWithdrawAfterWindowCloses(t *testing.T) {
	f := newAppFixture(t)
	id := applied(t, f)
	f.now = t0.Add(24*time.Hour + time.Minute)

	err := f.svc.Withdraw(context.Background(), studentCaller(), id)
	assert.ErrorIs(t, err, apperrors.ErrFailedPrecondition)
	assert.Equal(t, apperrors.CodeWithdrawClosed, codeOf(err))

	app, _ := f.apps.get(id)
	assert.Equal(t, models.StatusPending, app.Status)
}

func TestWithdrawBlockedOnceARoundIsEvaluated(t *testing.T) {
	f := newAppFixture(t)
	id := applied(t, f)
	app, _ := f.apps.get(id)
	app.RoundStatus["Aptitude"] = models.StatusUnderReview

	err := f.svc.Withdraw(context.Background(), studentCaller(), id)
	assert.Equal(t, apperrors.CodeWithdrawClosed, codeOf(err))
}

func TestWithdrawOtherStudentsApplication(t *testing.T) {
	f := newAppFixture(t)
	id := applied(t, f)

	err := f.svc.Withdraw(context.Background(), models.Caller{UserID: "stu-9", Role: models.RoleStudent}, id)
	assert.ErrorIs(t, err, apperrors.ErrPermissionDenied)

	err = f.svc.Withdraw(context.Background(), studentCaller(), "job42_nobody")
	assert.ErrorIs(t, err, apperrors.ErrResourceNotFound)
}

func TestWithdrawDeleteFailureLeavesRowFlagged(t *testing.T) {
	f := newAppFixture(t)
	id := applied(t, f)
	f.apps.failDelete = errBoom

	err := f.svc.Withdraw(context.Background(), studentCaller(), id)
	assert.ErrorIs(t, err, errBoom)

	app, ok := f.apps.get(id)
	require.True(t, ok)
	assert.Equal(t, models.StatusWithdrawn, app.Status)
	require.NotNil(t, app.WithdrawnAt)

	// withdrawing again retries the delete without notifying twice
	err = f.svc.Withdraw(context.Background(), studentCaller(), id)
	assert.ErrorIs(t, err, errBoom)

	f.apps.failDelete = nil
	err = f.svc.Withdraw(context.Background(), studentCaller(), id)
	require.NoError(t, err)
	_, ok = f.apps.get(id)
	assert.False(t, ok)
	assert.Len(t, f.notifier.recipients(notify.TemplateApplicationWithdrawn), 2)

	// the composite key is free again
	reapplied, err := f.svc.Apply(context.Background(), studentCaller(), "job42", map[int]string{0: "again"})
	require.NoError(t, err)
	assert.Equal(t, id, reapplied)
}

func TestWithdrawRetryOnlyForOwner(t *testing.T) {
	f := newAppFixture(t)
	id := applied(t, f)
	f.apps.failDelete = errBoom
	require.ErrorIs(t, f.svc.Withdraw(context.Background(), studentCaller(), id), errBoom)
	f.apps.failDelete = nil

	other := models.Caller{UserID: "stu-2", Role: models.RoleStudent, RollNumber: "21CS002"}
	err := f.svc.Withdraw(context.Background(), other, id)
	assert.ErrorIs(t, err, apperrors.ErrPermissionDenied)
	_, ok := f.apps.get(id)
	assert.True(t, ok)
}

func TestUpdateRoundStatusAdvancesApplication(t *testing.T) {
	f := newAppFixture(t)
	id := applied(t, f)
	f.now = t0.Add(48 * time.Hour)

	view, err := f.svc.UpdateRoundStatus(context.Background(), adminCaller(), id, "aptitude", models.StatusShortlisted)
	require.NoError(t, err)
	assert.Equal(t, models.StatusShortlisted, view.Status)
	assert.Equal(t, models.StatusShortlisted, view.EffectiveStatus)
	assert.Equal(t, "Technical", view.CurrentRound)
	assert.Equal(t, 1, view.CurrentRoundIndex)
	assert.Equal(t, 0, view.Progress)
	assert.False(t, view.CanWithdraw)

	_, err = f.svc.UpdateRoundStatus(context.Background(), adminCaller(), id, "Technical", models.StatusShortlisted)
	require.NoError(t, err)
	view, err = f.svc.UpdateRoundStatus(context.Background(), adminCaller(), id, "HR", models.StatusSelected)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSelected, view.Status)
	assert.Equal(t, 100, view.Progress)
	assert.Equal(t, "HR", view.LatestDecidedRound)

	stored, _ := f.apps.get(id)
	assert.Equal(t, models.StatusSelected, stored.RoundStatus["HR"])
	assert.Equal(t, t0.Add(48*time.Hour), stored.UpdatedAt)
	assert.Len(t, f.notifier.recipients(notify.TemplateRoundUpdated), 3)
}

func TestUpdateRoundStatusGuards(t *testing.T) {
	f := newAppFixture(t)
	id := applied(t, f)

	_, err := f.svc.UpdateRoundStatus(context.Background(), studentCaller(), id, "Aptitude", models.StatusShortlisted)
	assert.ErrorIs(t, err, apperrors.ErrPermissionDenied)

	_, err = f.svc.UpdateRoundStatus(context.Background(), adminCaller(), id, "Group Discussion", models.StatusShortlisted)
	assert.ErrorIs(t, err, apperrors.ErrValidationFailed)

	_, err = f.svc.UpdateRoundStatus(context.Background(), adminCaller(), id, "Aptitude", "promoted")
	assert.ErrorIs(t, err, apperrors.ErrValidationFailed)

	_, err = f.svc.UpdateRoundStatus(context.Background(), adminCaller(), id, "Aptitude", models.StatusRejected)
	require.NoError(t, err)

	// decided rounds do not regress
	_, err = f.svc.UpdateRoundStatus(context.Background(), adminCaller(), id, "Aptitude", models.StatusPending)
	assert.Equal(t, apperrors.CodeInvalidTransition, codeOf(err))
	_, err = f.svc.UpdateRoundStatus(context.Background(), adminCaller(), id, "Aptitude", models.StatusShortlisted)
	assert.Equal(t, apperrors.CodeInvalidTransition, codeOf(err))
}

func TestUpdateRoundStatusRejectsTerminalApplication(t *testing.T) {
	f := newAppFixture(t)
	id := applied(t, f)
	app, _ := f.apps.get(id)
	app.Status = models.StatusPlaced
	app.RoundStatus = map[string]models.ApplicationStatus{"Aptitude": models.StatusShortlisted, "Technical": models.StatusShortlisted, "HR": models.StatusPending}

	_, err := f.svc.UpdateRoundStatus(context.Background(), adminCaller(), id, "HR", models.StatusUnderReview)
	assert.Equal(t, apperrors.CodeInvalidTransition, codeOf(err))
}

type staleApps struct {
	*fakeApps
}

// GetByID serves an outdated copy, as if another admin wrote in between
func (s staleApps) GetByID(ctx context.Context, id string) (*models.Application, error) {
	app, err := s.fakeApps.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	app.Status = models.StatusPending
	for k := range app.RoundStatus {
		app.RoundStatus[k] = models.StatusPending
	}
	return app, nil
}

func TestUpdateRoundStatusDetectsConcurrentWrite(t *testing.T) {
	f := newAppFixture(t)
	id := applied(t, f)
	_, err := f.svc.UpdateRoundStatus(context.Background(), adminCaller(), id, "Aptitude", models.StatusUnderReview)
	require.NoError(t, err)

	stale := NewApplicationService(staleApps{f.apps}, f.students, f.jobs, f.notifier, f.svc.opts)
	_, err = stale.UpdateRoundStatus(context.Background(), adminCaller(), id, "Aptitude", models.StatusShortlisted)
	assert.Equal(t, apperrors.CodeConcurrentUpdate, codeOf(err))
}

type snapshotApps struct {
	*fakeApps
	snapshot *models.Application
}

// GetByID always serves the same copy, as two admins holding one read would see it
func (s snapshotApps) GetByID(context.Context, string) (*models.Application, error) {
	return cloneApplication(s.snapshot), nil
}

func TestUpdateRoundStatusKeepsVerdictOfConcurrentAdmin(t *testing.T) {
	f := newAppFixture(t)
	id := applied(t, f)
	_, err := f.svc.UpdateRoundStatus(context.Background(), adminCaller(), id, "HR", models.StatusInterviewScheduled)
	require.NoError(t, err)

	loaded, err := f.apps.GetByID(context.Background(), id)
	require.NoError(t, err)
	shared := NewApplicationService(snapshotApps{fakeApps: f.apps, snapshot: loaded}, f.students, f.jobs, f.notifier, f.svc.opts)

	// both writes leave the top-level status at interview_scheduled
	view, err := shared.UpdateRoundStatus(context.Background(), adminCaller(), id, "Aptitude", models.StatusShortlisted)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInterviewScheduled, view.Status)

	_, err = shared.UpdateRoundStatus(context.Background(), adminCaller(), id, "Technical", models.StatusShortlisted)
	assert.Equal(t, apperrors.CodeConcurrentUpdate, codeOf(err))

	stored, _ := f.apps.get(id)
	assert.Equal(t, models.StatusShortlisted, stored.RoundStatus["Aptitude"])
	assert.Equal(t, models.StatusPending, stored.RoundStatus["Technical"])
	assert.Equal(t, 2, stored.Version)
}

func TestGetAndListApplications(t *testing.T) {
	f := newAppFixture(t)
	id := applied(t, f)

	view, err := f.svc.Get(context.Background(), studentCaller(), id)
	require.NoError(t, err)
	assert.True(t, view.CanWithdraw)
	assert.Equal(t, "Aptitude", view.CurrentRound)

	_, err = f.svc.Get(context.Background(), models.Caller{UserID: "stu-9", Role: models.RoleStudent}, id)
	assert.ErrorIs(t, err, apperrors.ErrResourceNotFound)

	_, err = f.svc.Get(context.Background(), adminCaller(), id)
	assert.NoError(t, err)

	mine, err := f.svc.ListMine(context.Background(), studentCaller())
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, id, mine[0].ID)

	byJob, total, err := f.svc.ListByJob(context.Background(), adminCaller(), "job42", "", 0, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, byJob, 1)

	_, _, err = f.svc.ListByJob(context.Background(), studentCaller(), "job42", "", 0, 20)
	assert.ErrorIs(t, err, apperrors.ErrPermissionDenied)

	_, _, err = f.svc.ListByJob(context.Background(), adminCaller(), "job42", "bogus", 0, 20)
	assert.ErrorIs(t, err, apperrors.ErrValidationFailed)
}

func TestViewsSurviveRemovedJob(t *testing.T) {
	f := newAppFixture(t)
	id := applied(t, f)
	delete(f.jobs.byID, "job42")

	view, err := f.svc.Get(context.Background(), studentCaller(), id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, view.EffectiveStatus)
	assert.Equal(t, -1, view.CurrentRoundIndex)
}
