package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/yigit/placement/internal/app/controllers"
	"github.com/yigit/placement/internal/app/models"
	"github.com/yigit/placement/internal/middleware"
	"github.com/yigit/placement/internal/pkg/websocket"
)

// Controllers groups every HTTP handler mounted by SetupRouter
type Controllers struct {
	Auth          *controllers.AuthController
	Jobs          *controllers.JobController
	Applications  *controllers.ApplicationController
	Admin         *controllers.AdminController
	Health        *controllers.HealthController
	Notifications *websocket.Handler
}

// SetupRouter configures all application routes
func SetupRouter(
	router *gin.Engine,
	c Controllers,
	authMiddleware *middleware.AuthMiddleware,
	applyLimiter middleware.Limiter,
) {
	router.GET("/ping", c.Health.Ping)
	router.GET("/health", c.Health.Health)

	// API version group
	v1 := router.Group("/api/v1")

	// --- Authenticated Routes Group ---
	authenticated := v1.Group("")
	authenticated.Use(authMiddleware.JWTAuth())

	auth := authenticated.Group("/auth")
	{
		auth.GET("/me", c.Auth.Me)
		auth.POST("/logout", c.Auth.Logout)
	}

	jobs := authenticated.Group("/jobs")
	{
		jobs.GET("", c.Jobs.ListJobs)
		jobs.GET("/:id", c.Jobs.GetJob)
		jobs.GET("/:id/eligibility", c.Jobs.CheckEligibility)
		jobs.POST("/:id/applications", middleware.RateLimit(applyLimiter), c.Applications.Apply)

		jobsAdmin := jobs.Group("")
		jobsAdmin.Use(authMiddleware.RoleRequired(models.RoleAdmin))
		{
			jobsAdmin.POST("", c.Jobs.CreateJob)
			jobsAdmin.POST("/:id/close", c.Jobs.CloseJob)
			jobsAdmin.GET("/:id/applications", c.Jobs.ListApplications)
		}
	}

	applications := authenticated.Group("/applications")
	{
		applications.GET("/me", c.Applications.ListMine)
		applications.GET("/:id", c.Applications.GetApplication)
		applications.DELETE("/:id", c.Applications.Withdraw)
		applications.POST("/:id/offer", c.Applications.DecideOffer)
		applications.PUT("/:id/rounds/:round", authMiddleware.RoleRequired(models.RoleAdmin), c.Applications.UpdateRoundStatus)
	}

	admin := authenticated.Group("/admin")
	admin.Use(authMiddleware.RoleRequired(models.RoleAdmin))
	{
		admin.GET("/students", c.Admin.ListStudents)
		admin.POST("/students/freeze", c.Admin.BulkFreeze)
		admin.GET("/students/:id/freeze-history", c.Admin.FreezeHistory)
	}

	if c.Notifications != nil {
		authenticated.GET("/notifications/ws", c.Notifications.HandleConnection)
	}
}
