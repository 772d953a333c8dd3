package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/yigit/placement/internal/app/identity"
	"github.com/yigit/placement/internal/app/models"
	"github.com/yigit/placement/internal/app/models/dto"
	"github.com/yigit/placement/internal/app/notify"
	"github.com/yigit/placement/internal/pkg/auth"
)

// Context keys set by JWTAuth
const (
	ContextUserID     = "userID"
	ContextEmail      = "email"
	ContextRoleType   = "roleType"
	ContextRollNumber = "rollNumber"
	contextCaller     = "caller"
)

// ProfileLookup enriches student tokens that omit the roll number
type ProfileLookup interface {
	Lookup(ctx context.Context, studentID string) (*identity.Profile, error)
}

// AuthMiddleware for authentication and authorization
type AuthMiddleware struct {
	jwtService *auth.JWTService
	profiles   ProfileLookup
	logger     zerolog.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware. profiles may be nil.
func NewAuthMiddleware(jwtService *auth.JWTService, profiles ProfileLookup, logger zerolog.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		jwtService: jwtService,
		profiles:   profiles,
		logger:     logger,
	}
}

func abortUnauthorized(c *gin.Context, code dto.ErrorCode, details string) {
	errorDetail := dto.NewErrorDetail(code, "Authentication required").WithDetails(details)
	c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewErrorResponse(errorDetail))
}

// JWTAuth middleware for JWT token validation
func (m *AuthMiddleware) JWTAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")

		// Browsers cannot set headers on a websocket handshake
		if authHeader == "" {
			authHeader = c.Query("token")
		}

		if authHeader == "" {
			abortUnauthorized(c, dto.ErrorCodeUnauthorized, "Authorization header missing")
			return
		}

		tokenString, err := auth.ExtractBearerToken(strings.Trim(authHeader, "\"'"))
		if err != nil {
			abortUnauthorized(c, dto.ErrorCodeUnauthorized, "Invalid token format")
			return
		}

		claims, err := m.jwtService.ValidateAndExtractClaims(tokenString)
		if err != nil {
			errorCode := dto.ErrorCodeInvalidToken
			details := "Invalid token"
			if errors.Is(err, auth.ErrExpiredToken) {
				errorCode = dto.ErrorCodeExpiredToken
				details = "Token has expired"
			}
			abortUnauthorized(c, errorCode, details)
			return
		}

		caller := models.Caller{
			UserID:     claims.UserID,
			Role:       models.RoleType(claims.Role),
			RollNumber: claims.RollNumber,
		}
		if caller.RollNumber == "" && !caller.IsAdmin() && m.profiles != nil {
			if p, err := m.profiles.Lookup(c.Request.Context(), caller.UserID); err == nil {
				caller.RollNumber = p.RollNumber
			} else {
				m.logger.Debug().Err(err).Str("userID", caller.UserID).Msg("Identity enrichment skipped")
			}
		}

		c.Set(ContextUserID, caller.UserID)
		c.Set(ContextEmail, claims.Email)
		c.Set(ContextRoleType, string(caller.Role))
		c.Set(ContextRollNumber, caller.RollNumber)
		c.Set(contextCaller, caller)

		c.Next()
	}
}

// RoleRequired middleware to check if user has required role
func (m *AuthMiddleware) RoleRequired(requiredRole models.RoleType) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := GetCaller(c)
		if !ok {
			abortUnauthorized(c, dto.ErrorCodeUnauthorized, "User role not found")
			return
		}

		if caller.Role != requiredRole {
			errorDetail := dto.NewErrorDetail(dto.ErrorCodeForbidden, "Access denied").
				WithDetails("You don't have sufficient permissions for this operation")
			c.AbortWithStatusJSON(http.StatusForbidden, dto.NewErrorResponse(errorDetail))
			return
		}

		c.Next()
	}
}

// GetCaller returns the identity JWTAuth attached to the request
func GetCaller(c *gin.Context) (models.Caller, bool) {
	v, exists := c.Get(contextCaller)
	if !exists {
		return models.Caller{}, false
	}
	caller, ok := v.(models.Caller)
	return caller, ok && caller.Authenticated()
}

// NotificationTopics resolves the websocket topics of the caller: their own id, plus the
// admin channel for admins
func NotificationTopics(c *gin.Context) ([]string, bool) {
	caller, ok := GetCaller(c)
	if !ok {
		return nil, false
	}
	topics := []string{caller.UserID}
	if caller.IsAdmin() {
		topics = append(topics, notify.AdminRecipient)
	}
	return topics, true
}
