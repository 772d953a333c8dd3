package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yigit/placement/internal/app/models"
	"github.com/yigit/placement/internal/app/models/dto"
	"github.com/yigit/placement/internal/middleware"
	"github.com/yigit/placement/internal/pkg/helpers"
)

// JobController handles job postings
type JobController struct {
	jobService         JobService
	applicationService ApplicationService
}

// NewJobController creates a new JobController
func NewJobController(jobService JobService, applicationService ApplicationService) *JobController {
	return &JobController{
		jobService:         jobService,
		applicationService: applicationService,
	}
}

// ListJobs returns one page of jobs
// @Summary List jobs
// @Tags jobs
// @Produce json
// @Security BearerAuth
// @Param status query string false "active or closed"
// @Param page query int false "Page number (1-based)"
// @Param size query int false "Page size"
// @Success 200 {object} dto.APIResponse{data=dto.PaginatedResponse}
// @Failure 400 {object} dto.ErrorResponse "Unknown status"
// @Router /jobs [get]
func (c *JobController) ListJobs(ctx *gin.Context) {
	page, size := helpers.ParsePaginationParams(ctx)
	offset, limit := helpers.CalculateOffsetLimit(page, size)

	jobs, total, err := c.jobService.List(ctx, models.JobStatus(ctx.Query("status")), offset, limit)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	items := make([]dto.JobResponse, 0, len(jobs))
	for _, j := range jobs {
		items = append(items, dto.NewJobResponse(j))
	}
	ctx.JSON(http.StatusOK, dto.NewAPIResponse(dto.PaginatedResponse{
		Items:      items,
		Pagination: helpers.NewPaginationInfo(total, page, size),
	}))
}

// GetJob returns one job
// @Summary Get job by ID
// @Tags jobs
// @Produce json
// @Security BearerAuth
// @Param id path string true "Job ID"
// @Success 200 {object} dto.APIResponse{data=dto.JobResponse}
// @Failure 404 {object} dto.ErrorResponse "Job not found"
// @Router /jobs/{id} [get]
func (c *JobController) GetJob(ctx *gin.Context) {
	job, err := c.jobService.Get(ctx, ctx.Param("id"))
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewAPIResponse(dto.NewJobResponse(job)))
}

// CreateJob publishes a job
// @Summary Publish a job
// @Tags jobs
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.CreateJobRequest true "Job posting"
// @Success 201 {object} dto.APIResponse{data=dto.JobResponse}
// @Failure 400 {object} dto.ErrorResponse "Invalid job"
// @Failure 403 {object} dto.ErrorResponse "Admins only"
// @Failure 409 {object} dto.ErrorResponse "Job ID taken"
// @Router /jobs [post]
func (c *JobController) CreateJob(ctx *gin.Context) {
	caller, ok := callerOrAbort(ctx)
	if !ok {
		return
	}

	var req dto.CreateJobRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	job, err := c.jobService.Create(ctx, caller, req.ToModel())
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, dto.NewAPIResponse(dto.NewJobResponse(job)))
}

// CloseJob stops a job from accepting applications
// @Summary Close a job
// @Tags jobs
// @Produce json
// @Security BearerAuth
// @Param id path string true "Job ID"
// @Success 200 {object} dto.APIResponse{data=dto.JobResponse}
// @Failure 404 {object} dto.ErrorResponse "Job not found"
// @Router /jobs/{id}/close [post]
func (c *JobController) CloseJob(ctx *gin.Context) {
	caller, ok := callerOrAbort(ctx)
	if !ok {
		return
	}

	job, err := c.jobService.Close(ctx, caller, ctx.Param("id"))
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewAPIResponse(dto.NewJobResponse(job)))
}

// CheckEligibility reports whether the calling student meets the job's criteria
// @Summary Check eligibility
// @Tags jobs
// @Produce json
// @Security BearerAuth
// @Param id path string true "Job ID"
// @Success 200 {object} dto.APIResponse{data=dto.EligibilityResponse}
// @Failure 404 {object} dto.ErrorResponse "Job or student not found"
// @Router /jobs/{id}/eligibility [get]
func (c *JobController) CheckEligibility(ctx *gin.Context) {
	caller, ok := callerOrAbort(ctx)
	if !ok {
		return
	}

	resp, err := c.jobService.Eligibility(ctx, caller, ctx.Param("id"))
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewAPIResponse(resp))
}

// ListApplications returns one page of a job's applications
// @Summary List a job's applications
// @Tags jobs
// @Produce json
// @Security BearerAuth
// @Param id path string true "Job ID"
// @Param status query string false "Filter by top-level status"
// @Param page query int false "Page number (1-based)"
// @Param size query int false "Page size"
// @Success 200 {object} dto.APIResponse{data=dto.PaginatedResponse}
// @Failure 403 {object} dto.ErrorResponse "Admins only"
// @Router /jobs/{id}/applications [get]
func (c *JobController) ListApplications(ctx *gin.Context) {
	caller, ok := callerOrAbort(ctx)
	if !ok {
		return
	}

	page, size := helpers.ParsePaginationParams(ctx)
	offset, limit := helpers.CalculateOffsetLimit(page, size)
	status := models.ApplicationStatus(ctx.Query("status"))

	views, total, err := c.applicationService.ListByJob(ctx, caller, ctx.Param("id"), status, offset, limit)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewAPIResponse(dto.PaginatedResponse{
		Items:      views,
		Pagination: helpers.NewPaginationInfo(total, page, size),
	}))
}
