package routes

import (
	"stockwatch_backend/controllers"
	"stockwatch_backend/middleware"

	"github.com/gin-gonic/gin"
)

// SetupRoutes sets up all API routes
func SetupRoutes(router *gin.Engine, monitor *controllers.MonitorController) {
	// API v1 group
	api := router.Group("/api/v1")
	{
		alerts := api.Group("/alerts")
		{
			// Scheduler entry point: one monitoring pass per call
			alerts.POST("/check",
				middleware.MonitorRateLimitMiddleware(),
				middleware.CronAuthMiddleware(),
				monitor.RunCheck)

			// Recent run history
			alerts.GET("/status",
				middleware.CronAuthMiddleware(),
				monitor.Status)

			// Trigger-event websocket stream
			alerts.GET("/stream", monitor.Stream)
		}
	}
}
