package routes

import (
	"schoolbus_tracker/internal/controllers"
	"schoolbus_tracker/internal/middleware"

	"github.com/gin-gonic/gin"
)

func DriverRoutes(r *gin.Engine) {
	driver := r.Group("/driver")
	driver.Use(middleware.RequireAuthWithRole("driver"))
	{
		driver.GET("/profile", controllers.GetDriverProfile)
		driver.GET("/bus", controllers.GetMyBus)
		driver.GET("/buses/available", controllers.ListAvailableBuses)

		// Duty lifecycle
		driver.POST("/checkin", controllers.CheckIn)
		driver.POST("/duty-status", controllers.SetDutyStatus)
		driver.POST("/routes/:id/activate", controllers.ActivateRoute)
		driver.POST("/routes/:id/deactivate", controllers.DeactivateRoute)

		// Journey checkpoints
		driver.POST("/journey/events", controllers.RecordJourneyEvent)
		driver.GET("/journey/today", controllers.GetTodayJourney)

		// Stop progress
		driver.POST("/stops/:id/complete", controllers.MarkStopCompleted)
		driver.GET("/routes/:id/stops/completed", controllers.GetTodayCompletedStops)
		driver.POST("/routes/:id/stops/reset", controllers.ResetRouteStops)
		driver.POST("/students/:id/attendance", controllers.MarkAttendance)
	}
}
