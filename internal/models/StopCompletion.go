package models

import (
	"time"

	"gorm.io/gorm"
)

// StopCompletion records a bus reaching a route stop, once per stop
// per calendar day. Rows are only ever removed by the explicit
// "reset route stops" operation, which clears the current day.
type StopCompletion struct {
	gorm.Model
	CompanyID uint `json:"company_id"`
	RouteID   uint `json:"route_id" gorm:"index"`
	StopID    uint `json:"stop_id" gorm:"uniqueIndex:idx_stop_day"`
	DriverID  uint `json:"driver_id"`
	BusID     uint `json:"bus_id"`

	StopSequence int `json:"stop_sequence"`

	// Calendar day in "2006-01-02" form, UTC.
	CompletionDate string `json:"completion_date" gorm:"uniqueIndex:idx_stop_day"`

	ArrivedAt  time.Time  `json:"arrived_at"`
	DepartedAt *time.Time `json:"departed_at"`
}
