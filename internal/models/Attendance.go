package models

import (
	"time"

	"gorm.io/gorm"
)

// Attendance statuses.
const (
	AttendancePresent    = "present"
	AttendanceAbsent     = "absent"
	AttendanceDroppedOff = "dropped_off"
)

// Attendance is a per-student per-day roll call row, written by the
// driver during a run and aggregated into the shift report.
type Attendance struct {
	gorm.Model
	CompanyID uint  `json:"company_id"`
	StudentID uint  `json:"student_id" gorm:"uniqueIndex:idx_student_day"`
	DriverID  uint  `json:"driver_id" gorm:"index"`
	RouteID   *uint `json:"route_id"`

	// Calendar day in "2006-01-02" form, UTC.
	AttendanceDate string `json:"attendance_date" gorm:"uniqueIndex:idx_student_day"`

	Status   string    `json:"status"`
	MarkedAt time.Time `json:"marked_at"`
}
