package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yigit/placement/internal/app/models/dto"
	"github.com/yigit/placement/internal/app/repositories"
	"github.com/yigit/placement/internal/middleware"
	"github.com/yigit/placement/internal/pkg/helpers"
)

// AdminController handles student administration
type AdminController struct {
	freezeService  FreezeService
	studentService StudentService
}

// NewAdminController creates a new AdminController
func NewAdminController(freezeService FreezeService, studentService StudentService) *AdminController {
	return &AdminController{
		freezeService:  freezeService,
		studentService: studentService,
	}
}

// BulkFreeze freezes or unfreezes a set of students
// @Summary Bulk freeze or unfreeze
// @Description Each student succeeds or fails independently; the successful ones are committed together.
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.BulkFreezeRequest true "Students and action"
// @Success 200 {object} dto.APIResponse{data=dto.BulkFreezeResponse}
// @Failure 400 {object} dto.ErrorResponse "Invalid request"
// @Failure 403 {object} dto.ErrorResponse "Admins only"
// @Router /admin/students/freeze [post]
func (c *AdminController) BulkFreeze(ctx *gin.Context) {
	caller, ok := callerOrAbort(ctx)
	if !ok {
		return
	}

	var req dto.BulkFreezeRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	resp, err := c.freezeService.BulkFreeze(ctx, caller, req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewAPIResponse(resp))
}

// FreezeHistory returns a student's freeze log
// @Summary Freeze history
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "Student ID"
// @Success 200 {object} dto.APIResponse{data=dto.FreezeHistoryResponse}
// @Failure 404 {object} dto.ErrorResponse "Student not found"
// @Router /admin/students/{id}/freeze-history [get]
func (c *AdminController) FreezeHistory(ctx *gin.Context) {
	caller, ok := callerOrAbort(ctx)
	if !ok {
		return
	}

	resp, err := c.freezeService.History(ctx, caller, ctx.Param("id"))
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewAPIResponse(resp))
}

// ListStudents returns one page of students
// @Summary List students
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param frozen query bool false "Only frozen students"
// @Param batch query string false "Filter by batch"
// @Param page query int false "Page number (1-based)"
// @Param size query int false "Page size"
// @Success 200 {object} dto.APIResponse{data=dto.PaginatedResponse}
// @Router /admin/students [get]
func (c *AdminController) ListStudents(ctx *gin.Context) {
	page, size := helpers.ParsePaginationParams(ctx)
	offset, limit := helpers.CalculateOffsetLimit(page, size)
	frozen, _ := strconv.ParseBool(ctx.DefaultQuery("frozen", "false"))

	filter := repositories.StudentFilter{FrozenOnly: frozen, Batch: ctx.Query("batch")}
	students, total, err := c.studentService.List(ctx, filter, offset, limit)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	items := make([]dto.StudentResponse, 0, len(students))
	for _, s := range students {
		items = append(items, dto.NewStudentResponse(s))
	}
	ctx.JSON(http.StatusOK, dto.NewAPIResponse(dto.PaginatedResponse{
		Items:      items,
		Pagination: helpers.NewPaginationInfo(total, page, size),
	}))
}
