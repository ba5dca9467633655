package models

import (
	"time"

	"gorm.io/gorm"
)

// Journey event types accepted by the tracker.
const (
	EventDepartHomebase = "depart_homebase"
	EventArriveSchool   = "arrive_school"
	EventDepartSchool   = "depart_school"
	EventArriveHomebase = "arrive_homebase"
)

// Journey is the per-bus-per-day record of checkpoint timestamps.
// At most one row exists per (bus, calendar day); starting a journey
// that already exists returns the existing row unchanged.
type Journey struct {
	gorm.Model
	CompanyID uint  `json:"company_id"`
	BusID     uint  `json:"bus_id" gorm:"uniqueIndex:idx_bus_day"`
	DriverID  uint  `json:"driver_id"`
	RouteID   uint  `json:"route_id"`
	SchoolID  *uint `json:"school_id"`

	// Calendar day in "2006-01-02" form, UTC.
	JourneyDate string `json:"journey_date" gorm:"uniqueIndex:idx_bus_day"`

	HomebaseAddress string `json:"homebase_address"`

	DepartHomebaseAt *time.Time `json:"depart_homebase_at"`
	ArriveSchoolAt   *time.Time `json:"arrive_school_at"`
	DepartSchoolAt   *time.Time `json:"depart_school_at"`
	ArriveHomebaseAt *time.Time `json:"arrive_homebase_at"`

	// Derived on arrive_homebase when depart_homebase_at is set.
	TotalDurationMinutes int `json:"total_duration_minutes"`
}
