package routes

import (
	"schoolbus_tracker/internal/controllers"
	"schoolbus_tracker/internal/middleware"

	"github.com/gin-gonic/gin"
)

func AdminRoutes(r *gin.Engine) {
	admin := r.Group("/admin")
	admin.Use(middleware.RequireAuthWithRole("admin"))
	{
		// Fleet
		admin.POST("/buses", controllers.CreateBus)
		admin.GET("/buses", controllers.ListBuses)
		admin.PUT("/buses/:id", controllers.UpdateBus)
		admin.DELETE("/buses/:id", controllers.DeleteBus)

		// Routes and stops
		admin.POST("/routes", controllers.CreateRoute)
		admin.GET("/routes", controllers.ListRoutes)
		admin.GET("/routes/:id", controllers.GetRoute)
		admin.PUT("/routes/:id", controllers.UpdateRoute)
		admin.DELETE("/routes/:id", controllers.DeleteRoute)
		admin.PATCH("/routes/:id/stops", controllers.AddStopsToRoute)

		// Schools and students
		admin.POST("/schools", controllers.CreateSchool)
		admin.GET("/schools", controllers.ListSchools)
		admin.DELETE("/schools/:id", controllers.DeleteSchool)
		admin.POST("/students", controllers.CreateStudent)
		admin.GET("/students", controllers.ListStudents)
		admin.PUT("/students/:id", controllers.UpdateStudent)
		admin.DELETE("/students/:id", controllers.DeleteStudent)

		// Drivers and reporting
		admin.GET("/drivers", controllers.ListDrivers)
		admin.GET("/drivers/:id", controllers.GetDriver)
		admin.PUT("/drivers/:id", controllers.UpdateDriver)
		admin.DELETE("/drivers/:id", controllers.DeleteDriver)
		admin.GET("/shift-reports", controllers.ListShiftReports)
		admin.GET("/notifications", controllers.ListMyNotifications)
	}
}
