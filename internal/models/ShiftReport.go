package models

import (
	"time"

	"gorm.io/gorm"
)

// ShiftReport is an immutable end-of-duty summary synthesized once
// per check-out transition. Never updated after insert.
type ShiftReport struct {
	gorm.Model
	CompanyID uint  `json:"company_id"`
	DriverID  uint  `json:"driver_id" gorm:"index"`
	BusID     uint  `json:"bus_id"`
	RouteID   *uint `json:"route_id"`

	DutyStartTime   time.Time `json:"duty_start_time"`
	DutyEndTime     time.Time `json:"duty_end_time"`
	DurationMinutes int       `json:"duration_minutes"`

	StartFuelLevel string `json:"start_fuel_level"`
	EndFuelLevel   string `json:"end_fuel_level"`

	SchoolsVisited  int `json:"schools_visited"`
	StudentsPresent int `json:"students_present"`
	StudentsDropped int `json:"students_dropped"`
	StopsCompleted  int `json:"stops_completed"`

	Summary string `json:"summary"`
}
