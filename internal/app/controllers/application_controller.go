package controllers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yigit/placement/internal/app/models"
	"github.com/yigit/placement/internal/app/models/dto"
	"github.com/yigit/placement/internal/app/services"
	"github.com/yigit/placement/internal/middleware"
)

// ApplicationController handles the student and admin sides of an application
type ApplicationController struct {
	applicationService ApplicationService
	offerService       OfferService
}

// NewApplicationController creates a new ApplicationController
func NewApplicationController(applicationService ApplicationService, offerService OfferService) *ApplicationController {
	return &ApplicationController{
		applicationService: applicationService,
		offerService:       offerService,
	}
}

// Apply submits the calling student's application
// @Summary Apply to a job
// @Tags applications
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Job ID"
// @Param request body dto.ApplyRequest false "Screening answers"
// @Success 201 {object} dto.APIResponse{data=dto.ApplyResponse}
// @Failure 403 {object} dto.ErrorResponse "Account frozen"
// @Failure 404 {object} dto.ErrorResponse "Job not found"
// @Failure 409 {object} dto.ErrorResponse "Already applied"
// @Failure 412 {object} dto.ErrorResponse "Job closed, deadline passed or not eligible"
// @Router /jobs/{id}/applications [post]
func (c *ApplicationController) Apply(ctx *gin.Context) {
	caller, ok := callerOrAbort(ctx)
	if !ok {
		return
	}

	var req dto.ApplyRequest
	// The body is optional for jobs without screening questions
	if err := ctx.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		errorDetail := dto.NewErrorDetail(dto.ErrorCodeValidationFailed, "Invalid request format").WithDetails(err.Error())
		ctx.AbortWithStatusJSON(http.StatusBadRequest, dto.NewErrorResponse(errorDetail))
		return
	}

	id, err := c.applicationService.Apply(ctx, caller, ctx.Param("id"), req.Answers)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, dto.NewAPIResponse(dto.ApplyResponse{ApplicationID: id}))
}

// ListMine returns the calling student's applications
// @Summary List my applications
// @Tags applications
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=[]dto.ApplicationView}
// @Router /applications/me [get]
func (c *ApplicationController) ListMine(ctx *gin.Context) {
	caller, ok := callerOrAbort(ctx)
	if !ok {
		return
	}

	views, err := c.applicationService.ListMine(ctx, caller)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewAPIResponse(views))
}

// GetApplication returns one application with its derived lifecycle values
// @Summary Get application
// @Tags applications
// @Produce json
// @Security BearerAuth
// @Param id path string true "Application ID"
// @Success 200 {object} dto.APIResponse{data=dto.ApplicationView}
// @Failure 404 {object} dto.ErrorResponse "Application not found"
// @Router /applications/{id} [get]
func (c *ApplicationController) GetApplication(ctx *gin.Context) {
	caller, ok := callerOrAbort(ctx)
	if !ok {
		return
	}

	view, err := c.applicationService.Get(ctx, caller, ctx.Param("id"))
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewAPIResponse(view))
}

// Withdraw removes a pending application inside the withdrawal window
// @Summary Withdraw application
// @Tags applications
// @Produce json
// @Security BearerAuth
// @Param id path string true "Application ID"
// @Success 200 {object} dto.APIResponse
// @Failure 404 {object} dto.ErrorResponse "Application not found"
// @Failure 412 {object} dto.ErrorResponse "Withdrawal window closed"
// @Router /applications/{id} [delete]
func (c *ApplicationController) Withdraw(ctx *gin.Context) {
	caller, ok := callerOrAbort(ctx)
	if !ok {
		return
	}

	if err := c.applicationService.Withdraw(ctx, caller, ctx.Param("id")); err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	resp := dto.NewAPIResponse(nil)
	resp.Message = "Application withdrawn"
	ctx.JSON(http.StatusOK, resp)
}

// DecideOffer accepts or rejects a selection
// @Summary Accept or reject an offer
// @Tags applications
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Application ID"
// @Param request body dto.OfferDecisionRequest true "accept or reject"
// @Success 200 {object} dto.APIResponse{data=models.Placement}
// @Failure 412 {object} dto.ErrorResponse "Not selected or already decided"
// @Router /applications/{id}/offer [post]
func (c *ApplicationController) DecideOffer(ctx *gin.Context) {
	caller, ok := callerOrAbort(ctx)
	if !ok {
		return
	}

	var req dto.OfferDecisionRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}
	decision, err := services.ParseDecision(req.Decision)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	placement, err := c.offerService.Decide(ctx, caller, ctx.Param("id"), decision)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	resp := dto.NewAPIResponse(placement)
	resp.Message = "Offer " + string(decision)
	ctx.JSON(http.StatusOK, resp)
}

// UpdateRoundStatus records an admin verdict for one round
// @Summary Update round status
// @Tags applications
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Application ID"
// @Param round path string true "Round name"
// @Param request body dto.UpdateRoundStatusRequest true "New round status"
// @Success 200 {object} dto.APIResponse{data=dto.ApplicationView}
// @Failure 412 {object} dto.ErrorResponse "Invalid transition or concurrent update"
// @Router /applications/{id}/rounds/{round} [put]
func (c *ApplicationController) UpdateRoundStatus(ctx *gin.Context) {
	caller, ok := callerOrAbort(ctx)
	if !ok {
		return
	}

	var req dto.UpdateRoundStatusRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	view, err := c.applicationService.UpdateRoundStatus(ctx, caller, ctx.Param("id"), ctx.Param("round"), models.ApplicationStatus(req.Status))
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewAPIResponse(view))
}
