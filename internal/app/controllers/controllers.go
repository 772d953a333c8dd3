// Package controllers handles HTTP request handling
package controllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yigit/placement/internal/app/models"
	"github.com/yigit/placement/internal/app/models/dto"
	"github.com/yigit/placement/internal/app/repositories"
	"github.com/yigit/placement/internal/middleware"
)

// ApplicationService is the application lifecycle used by the HTTP layer
type ApplicationService interface {
	Apply(ctx context.Context, caller models.Caller, jobID string, answers map[int]string) (string, error)
	Withdraw(ctx context.Context, caller models.Caller, applicationID string) error
	UpdateRoundStatus(ctx context.Context, caller models.Caller, applicationID, round string, status models.ApplicationStatus) (*dto.ApplicationView, error)
	Get(ctx context.Context, caller models.Caller, applicationID string) (*dto.ApplicationView, error)
	ListMine(ctx context.Context, caller models.Caller) ([]dto.ApplicationView, error)
	ListByJob(ctx context.Context, caller models.Caller, jobID string, status models.ApplicationStatus, offset, limit uint64) ([]dto.ApplicationView, int64, error)
}

// OfferService records offer decisions
type OfferService interface {
	Decide(ctx context.Context, caller models.Caller, applicationID string, decision models.OfferDecision) (*models.Placement, error)
}

// JobService publishes jobs and answers eligibility checks
type JobService interface {
	List(ctx context.Context, status models.JobStatus, offset, limit uint64) ([]*models.Job, int64, error)
	Get(ctx context.Context, id string) (*models.Job, error)
	Create(ctx context.Context, caller models.Caller, job *models.Job) (*models.Job, error)
	Close(ctx context.Context, caller models.Caller, id string) (*models.Job, error)
	Eligibility(ctx context.Context, caller models.Caller, jobID string) (*dto.EligibilityResponse, error)
}

// FreezeService administers account freezes
type FreezeService interface {
	BulkFreeze(ctx context.Context, caller models.Caller, req dto.BulkFreezeRequest) (*dto.BulkFreezeResponse, error)
	History(ctx context.Context, caller models.Caller, studentID string) (*dto.FreezeHistoryResponse, error)
}

// StudentService lists student profiles
type StudentService interface {
	List(ctx context.Context, filter repositories.StudentFilter, offset, limit uint64) ([]*models.Student, int64, error)
}

// callerOrAbort writes a 401 when JWTAuth did not run
func callerOrAbort(ctx *gin.Context) (models.Caller, bool) {
	caller, ok := middleware.GetCaller(ctx)
	if !ok {
		errorDetail := dto.NewErrorDetail(dto.ErrorCodeUnauthorized, "Authentication required")
		ctx.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewErrorResponse(errorDetail))
	}
	return caller, ok
}
