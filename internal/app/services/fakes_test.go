package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/yigit/placement/internal/app/models"
	"github.com/yigit/placement/internal/app/notify"
	"github.com/yigit/placement/internal/app/repositories"
)

var errBoom = errors.New("boom")

type fakeStudents struct {
	mu         sync.Mutex
	byID       map[string]*models.Student
	placed     map[string]models.JobSnapshot
	rejections map[string]int
	failPlaced error
}

func newFakeStudents(students ...*models.Student) *fakeStudents {
	f := &fakeStudents{byID: map[string]*models.Student{}, placed: map[string]models.JobSnapshot{}, rejections: map[string]int{}}
	for _, s := range students {
		f.byID[s.ID] = s
	}
	return f
}

func (f *fakeStudents) GetByID(_ context.Context, id string) (*models.Student, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.byID[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	c := *s
	return &c, nil
}

func (f *fakeStudents) GetByRollNumber(_ context.Context, roll string) (*models.Student, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.byID {
		if s.RollNumber == roll {
			c := *s
			return &c, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (f *fakeStudents) List(_ context.Context, filter repositories.StudentFilter, offset, limit uint64) ([]*models.Student, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []*models.Student
	for _, s := range f.byID {
		if filter.FrozenOnly && !s.IsFrozen() {
			continue
		}
		all = append(all, s)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	total := int64(len(all))
	if offset >= uint64(len(all)) {
		return []*models.Student{}, total, nil
	}
	end := offset + limit
	if limit == 0 || end > uint64(len(all)) {
		end = uint64(len(all))
	}
	return all[offset:end], total, nil
}

func (f *fakeStudents) ListExpiredFreezes(_ context.Context, now time.Time) ([]*models.Student, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Student
	for _, s := range f.byID {
		if s.Freeze.ExpiredAt(now) {
			c := *s
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStudents) MarkPlaced(_ context.Context, id string, snap models.JobSnapshot, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failPlaced != nil {
		return f.failPlaced
	}
	s, ok := f.byID[id]
	if !ok {
		return repositories.ErrNotFound
	}
	s.PlacementStatus = models.PlacementPlaced
	s.PlacedCompany = &snap.Company
	f.placed[id] = snap
	return nil
}

func (f *fakeStudents) IncrementOfferRejections(_ context.Context, id string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[id]; !ok {
		return repositories.ErrNotFound
	}
	f.rejections[id]++
	f.byID[id].OfferRejections++
	return nil
}

// setFreeze is used by the freeze store fake to apply committed changes
func (f *fakeStudents) setFreeze(id string, state *models.FreezeState) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.byID[id]
	if ok {
		s.Freeze = state
	}
	return ok
}

type fakeJobs struct {
	mu     sync.Mutex
	byID   map[string]*models.Job
	failOn string
}

func newFakeJobs(jobs ...*models.Job) *fakeJobs {
	f := &fakeJobs{byID: map[string]*models.Job{}}
	for _, j := range jobs {
		f.byID[j.ID] = j
	}
	return f
}

func (f *fakeJobs) GetByID(_ context.Context, id string) (*models.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id == f.failOn {
		return nil, errBoom
	}
	j, ok := f.byID[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	c := *j
	return &c, nil
}

func (f *fakeJobs) List(_ context.Context, filter repositories.JobFilter, offset, limit uint64) ([]*models.Job, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Job
	for _, j := range f.byID {
		if filter.Status == "" || j.Status == filter.Status {
			out = append(out, j)
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ID < out[k].ID })
	return out, int64(len(out)), nil
}

func (f *fakeJobs) Create(_ context.Context, j *models.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[j.ID]; ok {
		return repositories.ErrAlreadyExists
	}
	f.byID[j.ID] = j
	return nil
}

func (f *fakeJobs) SetStatus(_ context.Context, id string, status models.JobStatus, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.byID[id]
	if !ok {
		return repositories.ErrNotFound
	}
	j.Status = status
	j.UpdatedAt = now
	return nil
}

type fakeApps struct {
	mu         sync.Mutex
	byID       map[string]*models.Application
	deleted    []string
	failDelete error
	failCreate error
}

func newFakeApps() *fakeApps {
	return &fakeApps{byID: map[string]*models.Application{}}
}

func (f *fakeApps) put(a *models.Application) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[a.ID] = a
}

func (f *fakeApps) get(id string) (*models.Application, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byID[id]
	return a, ok
}

func (f *fakeApps) CreateIfAbsent(_ context.Context, a *models.Application) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreate != nil {
		return f.failCreate
	}
	if _, ok := f.byID[a.ID]; ok {
		return repositories.ErrAlreadyExists
	}
	c := *a
	f.byID[a.ID] = &c
	return nil
}

func (f *fakeApps) GetByID(_ context.Context, id string) (*models.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byID[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return cloneApplication(a), nil
}

func (f *fakeApps) UpdateStatus(_ context.Context, a *models.Application, expected models.ApplicationStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.byID[a.ID]
	if !ok || cur.Status != expected || cur.Version != a.Version {
		return repositories.ErrStaleState
	}
	next := cloneApplication(a)
	next.Version++
	f.byID[a.ID] = next
	return nil
}

func (f *fakeApps) MarkWithdrawn(_ context.Context, id string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.byID[id]
	if !ok || cur.Status != models.StatusPending {
		return repositories.ErrStaleState
	}
	cur.Status = models.StatusWithdrawn
	cur.WithdrawnAt = &at
	cur.Version++
	return nil
}

func (f *fakeApps) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDelete != nil {
		return f.failDelete
	}
	if _, ok := f.byID[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(f.byID, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeApps) RecordOfferDecision(_ context.Context, id string, status models.ApplicationStatus, decision models.OfferDecision, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.byID[id]
	if !ok || cur.OfferDecision != nil {
		return repositories.ErrStaleState
	}
	cur.Status = status
	cur.OfferDecision = &decision
	cur.DecisionDate = &at
	cur.Version++
	return nil
}

func (f *fakeApps) ListByStudent(_ context.Context, studentID string) ([]*models.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*models.Application{}
	for _, a := range f.byID {
		if a.StudentID == studentID {
			out = append(out, cloneApplication(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AppliedAt.After(out[j].AppliedAt) })
	return out, nil
}

func (f *fakeApps) ListByJob(_ context.Context, jobID string, status models.ApplicationStatus, offset, limit uint64) ([]*models.Application, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*models.Application{}
	for _, a := range f.byID {
		if a.JobID == jobID && (status == "" || a.Status == status) {
			out = append(out, cloneApplication(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, int64(len(out)), nil
}

type fakePlacements struct {
	mu      sync.Mutex
	records []*models.Placement
}

func (f *fakePlacements) Create(_ context.Context, p *models.Placement) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.records {
		if r.ApplicationID == p.ApplicationID {
			return repositories.ErrAlreadyExists
		}
	}
	p.ID = uuid.New()
	f.records = append(f.records, p)
	return nil
}

type fakeFreezes struct {
	mu       sync.Mutex
	students *fakeStudents
	history  map[string][]models.FreezeHistoryEntry
	audits   []*models.AuditLogEntry
	batches  int
	failWith error
}

func newFakeFreezes(students *fakeStudents) *fakeFreezes {
	return &fakeFreezes{students: students, history: map[string][]models.FreezeHistoryEntry{}}
}

func (f *fakeFreezes) ApplyChanges(_ context.Context, changes []models.StudentFreezeChange, audit *models.AuditLogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	f.batches++
	for _, c := range changes {
		if !f.students.setFreeze(c.StudentID, c.Freeze) {
			return repositories.ErrNotFound
		}
		f.history[c.StudentID] = append([]models.FreezeHistoryEntry{c.History}, f.history[c.StudentID]...)
	}
	if audit != nil {
		f.audits = append(f.audits, audit)
	}
	return nil
}

func (f *fakeFreezes) History(_ context.Context, studentID string) ([]models.FreezeHistoryEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.history[studentID], nil
}

type fakeAudit struct {
	mu      sync.Mutex
	entries []*models.AuditLogEntry
}

func (f *fakeAudit) Record(_ context.Context, e *models.AuditLogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, e)
	return nil
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []notify.Notification
}

func (f *fakeNotifier) Notify(_ context.Context, n notify.Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, n)
}

func (f *fakeNotifier) recipients(t notify.Template) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, n := range f.sent {
		if n.Template == t {
			out = append(out, n.Recipient)
		}
	}
	return out
}
