package controllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/yigit/placement/internal/app/identity"
	"github.com/yigit/placement/internal/app/models/dto"
	"github.com/yigit/placement/internal/middleware"
)

// IdentityCache is the cached identity profile of a student
type IdentityCache interface {
	Lookup(ctx context.Context, studentID string) (*identity.Profile, error)
	Invalidate(ctx context.Context, studentID string) error
}

// AuthController exposes the session endpoints. Tokens are issued by the portal's identity provider.
type AuthController struct {
	identities IdentityCache
	logger     zerolog.Logger
}

// NewAuthController creates a new AuthController. identities may be nil when redis is disabled.
func NewAuthController(identities IdentityCache, logger zerolog.Logger) *AuthController {
	return &AuthController{
		identities: identities,
		logger:     logger,
	}
}

// Me returns the authenticated caller
// @Summary Current caller
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Router /auth/me [get]
func (c *AuthController) Me(ctx *gin.Context) {
	caller, ok := callerOrAbort(ctx)
	if !ok {
		return
	}

	data := gin.H{
		"userId":     caller.UserID,
		"role":       caller.Role,
		"rollNumber": caller.RollNumber,
	}
	if c.identities != nil && !caller.IsAdmin() {
		if profile, err := c.identities.Lookup(ctx, caller.UserID); err == nil {
			data["name"] = profile.Name
			data["email"] = profile.Email
		}
	}
	ctx.JSON(http.StatusOK, dto.NewAPIResponse(data))
}

// Logout drops the caller's cached identity so the next request reads it fresh
// @Summary Logout
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Router /auth/logout [post]
func (c *AuthController) Logout(ctx *gin.Context) {
	caller, ok := callerOrAbort(ctx)
	if !ok {
		return
	}

	if c.identities != nil {
		if err := c.identities.Invalidate(ctx, caller.UserID); err != nil {
			c.logger.Warn().Err(err).Str("userID", caller.UserID).Msg("Failed to invalidate cached identity")
			middleware.HandleAPIError(ctx, err)
			return
		}
	}

	resp := dto.NewAPIResponse(nil)
	resp.Message = "Logged out"
	ctx.JSON(http.StatusOK, resp)
}
