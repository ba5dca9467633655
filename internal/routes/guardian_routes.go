package routes

import (
	"schoolbus_tracker/internal/controllers"
	"schoolbus_tracker/internal/middleware"

	"github.com/gin-gonic/gin"
)

func GuardianRoutes(r *gin.Engine) {
	guardian := r.Group("/guardian")
	guardian.Use(middleware.RequireAuthWithRole("guardian"))
	{
		guardian.GET("/students/:id/stops-away", controllers.GetStopsAway)
		guardian.GET("/notifications", controllers.ListMyNotifications)
	}
}
