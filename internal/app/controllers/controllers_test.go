package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yigit/placement/internal/app/identity"
	"github.com/yigit/placement/internal/app/models"
	"github.com/yigit/placement/internal/app/models/dto"
	"github.com/yigit/placement/internal/app/repositories"
	"github.com/yigit/placement/internal/middleware"
	"github.com/yigit/placement/internal/pkg/apperrors"
	"github.com/yigit/placement/internal/pkg/auth"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var jwtService = auth.NewJWTService(auth.JWTConfig{SecretKey: "controller-secret", AccessTokenExp: time.Hour, TokenIssuer: "test"})

func token(t *testing.T, uid, role, roll string) string {
	t.Helper()
	tok, err := jwtService.GenerateAccessToken(uid, "", role, roll)
	require.NoError(t, err)
	return "Bearer " + tok
}

type stubApplications struct {
	applyErr    error
	applyJob    string
	answers     map[int]string
	withdrawErr error
	roundArgs   []string
	listStatus  models.ApplicationStatus
	listOffset  uint64
}

func (s *stubApplications) Apply(_ context.Context, caller models.Caller, jobID string, answers map[int]string) (string, error) {
	s.applyJob, s.answers = jobID, answers
	if s.applyErr != nil {
		return "", s.applyErr
	}
	return models.ApplicationKey(jobID, caller.RollNumber), nil
}

func (s *stubApplications) Withdraw(context.Context, models.Caller, string) error {
	return s.withdrawErr
}

func (s *stubApplications) UpdateRoundStatus(_ context.Context, _ models.Caller, id, round string, status models.ApplicationStatus) (*dto.ApplicationView, error) {
	s.roundArgs = []string{id, round, string(status)}
	return &dto.ApplicationView{ID: id, Status: status}, nil
}

func (s *stubApplications) Get(_ context.Context, _ models.Caller, id string) (*dto.ApplicationView, error) {
	return nil, apperrors.ErrApplicationNotFound
}

func (s *stubApplications) ListMine(_ context.Context, caller models.Caller) ([]dto.ApplicationView, error) {
	return []dto.ApplicationView{{ID: "job42_" + caller.RollNumber}}, nil
}

func (s *stubApplications) ListByJob(_ context.Context, caller models.Caller, jobID string, status models.ApplicationStatus, offset, limit uint64) ([]dto.ApplicationView, int64, error) {
	if !caller.IsAdmin() {
		return nil, 0, apperrors.NewForbiddenError("admins only")
	}
	s.listStatus, s.listOffset = status, offset
	return []dto.ApplicationView{{ID: jobID + "_21CS001"}}, 41, nil
}

type stubOffers struct {
	decision models.OfferDecision
}

func (s *stubOffers) Decide(_ context.Context, _ models.Caller, id string, d models.OfferDecision) (*models.Placement, error) {
	s.decision = d
	if d == models.OfferRejected {
		return nil, nil
	}
	return &models.Placement{ApplicationID: id}, nil
}

type stubJobs struct{}

func (stubJobs) List(_ context.Context, status models.JobStatus, offset, limit uint64) ([]*models.Job, int64, error) {
	return []*models.Job{{ID: "job42", Status: models.JobStatusActive, Rounds: []models.Round{{Name: "HR"}}}}, 1, nil
}
func (stubJobs) Get(_ context.Context, id string) (*models.Job, error) {
	return nil, apperrors.ErrJobNotFound
}
func (stubJobs) Create(_ context.Context, _ models.Caller, j *models.Job) (*models.Job, error) {
	return j, nil
}
func (stubJobs) Close(_ context.Context, _ models.Caller, id string) (*models.Job, error) {
	return &models.Job{ID: id, Status: models.JobStatusClosed}, nil
}
func (stubJobs) Eligibility(_ context.Context, _ models.Caller, jobID string) (*dto.EligibilityResponse, error) {
	return &dto.EligibilityResponse{JobID: jobID, Eligible: false, Reasons: []string{"CGPA below 7.0"}}, nil
}

type stubFreezes struct {
	got dto.BulkFreezeRequest
}

func (s *stubFreezes) BulkFreeze(_ context.Context, _ models.Caller, req dto.BulkFreezeRequest) (*dto.BulkFreezeResponse, error) {
	s.got = req
	resp := &dto.BulkFreezeResponse{}
	for _, id := range req.StudentIDs {
		resp.Results = append(resp.Results, dto.BulkItemResult{StudentID: id, Status: dto.ResultSuccess})
	}
	resp.Summarize()
	return resp, nil
}

func (s *stubFreezes) History(_ context.Context, _ models.Caller, id string) (*dto.FreezeHistoryResponse, error) {
	return &dto.FreezeHistoryResponse{StudentID: id, Entries: []models.FreezeHistoryEntry{}}, nil
}

type stubStudents struct{ filter repositories.StudentFilter }

func (s *stubStudents) List(_ context.Context, f repositories.StudentFilter, _, _ uint64) ([]*models.Student, int64, error) {
	s.filter = f
	return []*models.Student{{ID: "stu-1", RollNumber: "21CS001"}}, 1, nil
}

type stubIdentity struct {
	invalidated []string
	err         error
}

func (s *stubIdentity) Lookup(_ context.Context, id string) (*identity.Profile, error) {
	return &identity.Profile{StudentID: id, RollNumber: "21CS001", Name: "Asha"}, nil
}

func (s *stubIdentity) Invalidate(_ context.Context, id string) error {
	s.invalidated = append(s.invalidated, id)
	return s.err
}

type fixture struct {
	router *gin.Engine
	apps   *stubApplications
	offers *stubOffers
	freeze *stubFreezes
	stud   *stubStudents
	ident  *stubIdentity
}

func newFixture() *fixture {
	f := &fixture{
		apps:   &stubApplications{},
		offers: &stubOffers{},
		freeze: &stubFreezes{},
		stud:   &stubStudents{},
		ident:  &stubIdentity{},
	}

	authMW := middleware.NewAuthMiddleware(jwtService, nil, zerolog.Nop())
	jobs := NewJobController(stubJobs{}, f.apps)
	apps := NewApplicationController(f.apps, f.offers)
	admin := NewAdminController(f.freeze, f.stud)
	authC := NewAuthController(f.ident, zerolog.Nop())

	r := gin.New()
	v1 := r.Group("/api/v1", authMW.JWTAuth())
	v1.GET("/jobs", jobs.ListJobs)
	v1.GET("/jobs/:id", jobs.GetJob)
	v1.POST("/jobs/:id/close", jobs.CloseJob)
	v1.GET("/jobs/:id/eligibility", jobs.CheckEligibility)
	v1.GET("/jobs/:id/applications", jobs.ListApplications)
	v1.POST("/jobs/:id/applications", apps.Apply)
	v1.GET("/applications/me", apps.ListMine)
	v1.GET("/applications/:id", apps.GetApplication)
	v1.DELETE("/applications/:id", apps.Withdraw)
	v1.POST("/applications/:id/offer", apps.DecideOffer)
	v1.PUT("/applications/:id/rounds/:round", apps.UpdateRoundStatus)
	v1.POST("/admin/students/freeze", admin.BulkFreeze)
	v1.GET("/admin/students", admin.ListStudents)
	v1.GET("/admin/students/:id/freeze-history", admin.FreezeHistory)
	v1.POST("/auth/logout", authC.Logout)
	v1.GET("/auth/me", authC.Me)
	f.router = r
	return f
}

func (f *fixture) do(method, path, bearer, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", bearer)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   struct {
		Code    string                 `json:"code"`
		Message string                 `json:"message"`
		Details map[string]interface{} `json:"details"`
	} `json:"error"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

func TestApply(t *testing.T) {
	f := newFixture()
	student := token(t, "stu-1", auth.RoleStudent, "21CS001")

	w := f.do(http.MethodPost, "/api/v1/jobs/job42/applications", student, `{"answers":{"0":"Yes"}}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.JSONEq(t, `{"applicationId":"job42_21CS001"}`, string(decode(t, w).Data))
	assert.Equal(t, map[int]string{0: "Yes"}, f.apps.answers)

	t.Run("empty body", func(t *testing.T) {
		w := f.do(http.MethodPost, "/api/v1/jobs/job42/applications", student, "")
		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Nil(t, f.apps.answers)
	})

	t.Run("malformed body", func(t *testing.T) {
		w := f.do(http.MethodPost, "/api/v1/jobs/job42/applications", student, `{"answers":`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("frozen", func(t *testing.T) {
		f.apps.applyErr = apperrors.ErrAccountFrozen.WithDetails(map[string]interface{}{"reason": "misconduct"})
		defer func() { f.apps.applyErr = nil }()

		w := f.do(http.MethodPost, "/api/v1/jobs/job42/applications", student, "")
		require.Equal(t, http.StatusForbidden, w.Code)
		env := decode(t, w)
		assert.Equal(t, apperrors.CodeAccountFrozen, env.Error.Code)
		assert.Equal(t, "misconduct", env.Error.Details["reason"])
	})

	t.Run("duplicate", func(t *testing.T) {
		f.apps.applyErr = apperrors.ErrAlreadyApplied
		defer func() { f.apps.applyErr = nil }()

		w := f.do(http.MethodPost, "/api/v1/jobs/job42/applications", student, "")
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("anonymous", func(t *testing.T) {
		w := f.do(http.MethodPost, "/api/v1/jobs/job42/applications", "", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestWithdraw(t *testing.T) {
	f := newFixture()
	student := token(t, "stu-1", auth.RoleStudent, "21CS001")

	w := f.do(http.MethodDelete, "/api/v1/applications/job42_21CS001", student, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Application withdrawn", decode(t, w).Message)

	f.apps.withdrawErr = apperrors.ErrWithdrawNotAllowed
	w = f.do(http.MethodDelete, "/api/v1/applications/job42_21CS001", student, "")
	require.Equal(t, http.StatusPreconditionFailed, w.Code)
	assert.Equal(t, apperrors.CodeWithdrawClosed, decode(t, w).Error.Code)
}

func TestDecideOffer(t *testing.T) {
	f := newFixture()
	student := token(t, "stu-1", auth.RoleStudent, "21CS001")

	w := f.do(http.MethodPost, "/api/v1/applications/job42_21CS001/offer", student, `{"decision":"accept"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, models.OfferAccepted, f.offers.decision)
	assert.Equal(t, "Offer accepted", decode(t, w).Message)

	w = f.do(http.MethodPost, "/api/v1/applications/job42_21CS001/offer", student, `{"decision":"reject"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.OfferRejected, f.offers.decision)

	w = f.do(http.MethodPost, "/api/v1/applications/job42_21CS001/offer", student, `{"decision":"maybe"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetApplicationNotFound(t *testing.T) {
	f := newFixture()
	w := f.do(http.MethodGet, "/api/v1/applications/job42_21CS009", token(t, "stu-1", auth.RoleStudent, "21CS001"), "")
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, apperrors.CodeApplicationNotFound, decode(t, w).Error.Code)
}

func TestUpdateRoundStatus(t *testing.T) {
	f := newFixture()
	admin := token(t, "adm-1", auth.RoleAdmin, "")

	w := f.do(http.MethodPut, "/api/v1/applications/job42_21CS001/rounds/Technical", admin, `{"status":"shortlisted"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"job42_21CS001", "Technical", "shortlisted"}, f.apps.roundArgs)

	w = f.do(http.MethodPut, "/api/v1/applications/job42_21CS001/rounds/Technical", admin, `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListApplicationsPaginates(t *testing.T) {
	f := newFixture()

	w := f.do(http.MethodGet, "/api/v1/jobs/job42/applications?status=pending&page=3&size=20", token(t, "adm-1", auth.RoleAdmin, ""), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.StatusPending, f.apps.listStatus)
	assert.Equal(t, uint64(40), f.apps.listOffset)

	var page struct {
		Pagination dto.PaginationInfo `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &page))
	assert.Equal(t, 3, page.Pagination.TotalPages)
	assert.Equal(t, int64(41), page.Pagination.TotalItems)

	w = f.do(http.MethodGet, "/api/v1/jobs/job42/applications", token(t, "stu-1", auth.RoleStudent, "21CS001"), "")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestJobsEndpoints(t *testing.T) {
	f := newFixture()
	student := token(t, "stu-1", auth.RoleStudent, "21CS001")

	w := f.do(http.MethodGet, "/api/v1/jobs", student, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"job42"`)

	w = f.do(http.MethodGet, "/api/v1/jobs/nope", student, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(http.MethodGet, "/api/v1/jobs/job42/eligibility", student, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "CGPA below 7.0")

	w = f.do(http.MethodPost, "/api/v1/jobs/job42/close", token(t, "adm-1", auth.RoleAdmin, ""), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"closed"`)
}

func TestAdminEndpoints(t *testing.T) {
	f := newFixture()
	admin := token(t, "adm-1", auth.RoleAdmin, "")

	w := f.do(http.MethodPost, "/api/v1/admin/students/freeze", admin,
		`{"studentIds":["stu-1","stu-2"],"action":"freeze","reason":"misconduct"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, []string{"stu-1", "stu-2"}, f.freeze.got.StudentIDs)
	assert.Contains(t, w.Body.String(), `"successful":2`)

	w = f.do(http.MethodPost, "/api/v1/admin/students/freeze", admin, `{"studentIds":["stu-1"],"action":"melt"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(http.MethodGet, "/api/v1/admin/students/stu-1/freeze-history", admin, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"studentId":"stu-1"`)

	w = f.do(http.MethodGet, "/api/v1/admin/students?frozen=true&batch=2025", admin, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, repositories.StudentFilter{FrozenOnly: true, Batch: "2025"}, f.stud.filter)
}

func TestLogoutInvalidatesIdentity(t *testing.T) {
	f := newFixture()
	student := token(t, "stu-1", auth.RoleStudent, "21CS001")

	w := f.do(http.MethodPost, "/api/v1/auth/logout", student, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"stu-1"}, f.ident.invalidated)

	w = f.do(http.MethodGet, "/api/v1/auth/me", student, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"name":"Asha"`)

	f.ident.err = errors.New("redis down")
	w = f.do(http.MethodPost, "/api/v1/auth/logout", student, "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestHealth(t *testing.T) {
	r := gin.New()
	healthy := NewHealthController(map[string]Pinger{
		"postgres": PingFunc(func(context.Context) error { return nil }),
	})
	r.GET("/health", healthy.Health)
	r.GET("/ping", healthy.Ping)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.JSONEq(t, `{"message":"pong"}`, w.Body.String())

	degraded := NewHealthController(map[string]Pinger{
		"redis": PingFunc(func(context.Context) error { return errors.New("connection refused") }),
	})
	r2 := gin.New()
	r2.GET("/health", degraded.Health)
	w = httptest.NewRecorder()
	r2.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")
}
