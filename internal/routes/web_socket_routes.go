package routes

import (
	"schoolbus_tracker/internal/controllers"

	"github.com/gin-gonic/gin"
)

func WebSocketRoutes(r *gin.Engine) {
	ws := r.Group("/ws")
	{
		ws.GET("/location", controllers.HandleLocationWebSocket)
	}
}
