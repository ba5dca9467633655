package models

import (
	"gorm.io/gorm"
)

// Bus statuses. A bus in maintenance or inactive is not eligible for
// assignment.
const (
	BusIdle        = "idle"
	BusOnRoute     = "on_route"
	BusMaintenance = "maintenance"
	BusEmergency   = "emergency"
	BusInactive    = "inactive"
)

type Bus struct {
	gorm.Model
	CompanyID   uint   `json:"company_id" gorm:"uniqueIndex:idx_company_plate"`
	NumberPlate string `json:"number_plate" gorm:"uniqueIndex:idx_company_plate"`
	Capacity    int    `json:"capacity"`

	// Exclusive back-reference: at most one driver holds a bus at any
	// instant. Nil while unassigned.
	DriverID *uint `json:"driver_id" gorm:"index"`

	Status         string `json:"status" gorm:"default:idle"`
	CurrentRouteID *uint  `json:"current_route_id"`

	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Speed     float64 `json:"speed"`
	FuelLevel string  `json:"fuel_level"`
}

// AssignableStatus reports whether the bus status permits assignment.
func (b *Bus) AssignableStatus() bool {
	return b.Status != BusMaintenance && b.Status != BusInactive
}
