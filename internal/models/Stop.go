package models

import (
	"gorm.io/gorm"
)

// Stop is a pickup/dropoff location along a route.
// Seq indicates order along the route.
type Stop struct {
	gorm.Model

	Name          string  `json:"name" binding:"required"`
	Address       string  `json:"address"`
	Seq           int     `json:"seq" binding:"required"`
	Lat           float64 `json:"lat" binding:"required"`
	Lng           float64 `json:"lng" binding:"required"`
	ScheduledTime string  `json:"scheduled_time"` // "15:04" local wall clock

	// Foreign key to route
	RouteID uint `json:"route_id"`
}
