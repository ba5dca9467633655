package models

import (
	"gorm.io/gorm"
)

// Route represents a service path operated by a company.
// A company can have multiple routes; each route has ordered stops and
// at most one active driver.
type Route struct {
	gorm.Model

	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	CompanyID   uint   `json:"company_id"`
	SchoolID    *uint  `json:"school_id"`

	// At most one active driver per route. Nil while unassigned.
	DriverID *uint `json:"driver_id" gorm:"index"`

	// Geometry stored as WKB (SRID 4326 LINESTRING). The API speaks
	// GeoJSON; controllers convert with go-geom.
	Geometry []byte `gorm:"type:bytea" json:"-"`

	// Associations
	Stops []Stop `gorm:"foreignKey:RouteID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL;" json:"stops,omitempty"`
}
