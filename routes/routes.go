package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"loan-origination-api/controllers"
	"loan-origination-api/middleware"
)

// Deps carries the handlers and settings the router needs.
type Deps struct {
	LoanApplications *controllers.LoanApplicationController
	JWTSecret        []byte
}

func SetupRoutes(router *gin.Engine, deps Deps) {
	// API v1 group
	v1 := router.Group("/api/v1")
	{
		// Public routes
		v1.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"status":  "ok",
				"message": "Loan Origination API is running",
			})
		})

		// Protected routes (require authentication)
		protected := v1.Group("")
		protected.Use(middleware.AuthMiddleware(deps.JWTSecret))
		{
			loans := protected.Group("/loan-applications/:id")
			{
				// Any reviewer can read
				loans.GET("/assignments", deps.LoanApplications.GetAssignments)
				loans.GET("/history", deps.LoanApplications.GetHistory)
				loans.GET("/history/export", deps.LoanApplications.ExportHistory)

				// Only admins and credit admins assign reviewers
				loans.POST("/assignments",
					middleware.RequireRole(middleware.RoleAdmin, middleware.RoleCreditAdmin),
					deps.LoanApplications.RegisterAssignment)

				loans.POST("/history",
					middleware.RequireRole(middleware.RoleAdmin, middleware.RoleCreditAdmin, middleware.RoleCreditManager),
					deps.LoanApplications.RecordHistory)
			}
		}
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Endpoint not found"})
	})
}
