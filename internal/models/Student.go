package models

import (
	"gorm.io/gorm"
)

// Student is a rider assigned to a stop on a route. Guardians are
// guardian-role users who receive stop arrival notifications.
type Student struct {
	gorm.Model
	CompanyID uint   `json:"company_id"`
	Name      string `json:"name" binding:"required"`
	Grade     string `json:"grade"`

	RouteID  *uint `json:"route_id"`
	StopID   *uint `json:"stop_id" gorm:"index"`
	SchoolID *uint `json:"school_id"`

	Guardians []User `gorm:"many2many:student_guardians;" json:"guardians,omitempty"`
}
