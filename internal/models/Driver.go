package models

import (
	"time"

	"gorm.io/gorm"
)

// Valid fuel level readings submitted with the check-in inspection.
const (
	FuelEmpty        = "empty"
	FuelQuarter      = "quarter"
	FuelHalf         = "half"
	FuelThreeQuarter = "three_quarter"
	FuelFull         = "full"
)

// ValidFuelLevel reports whether s is one of the accepted readings.
func ValidFuelLevel(s string) bool {
	switch s {
	case FuelEmpty, FuelQuarter, FuelHalf, FuelThreeQuarter, FuelFull:
		return true
	}
	return false
}

type Driver struct {
	gorm.Model
	UserID    uint    `json:"user_id" gorm:"unique"` // Foreign key to User
	User      User    `gorm:"foreignKey:UserID"`
	CompanyID uint    `json:"company_id"`
	Company   Company `gorm:"foreignKey:CompanyID"`

	Name          string `json:"name"`
	Phone         string `json:"phone"`
	LicenseNumber string `json:"license_number"`

	// Duty state, mutated only by the duty and assignment services.
	IsOnDuty        bool       `json:"is_on_duty" gorm:"default:false"`
	DutyStartTime   *time.Time `json:"duty_start_time"`
	AssignedRouteID *uint      `json:"assigned_route_id"`

	// Inspection snapshot captured at check-in, cleared at check-out.
	FuelLevel     string     `json:"fuel_level"`
	InteriorClean bool       `json:"interior_clean"`
	ExteriorClean bool       `json:"exterior_clean"`
	CheckInTime   *time.Time `json:"check_in_time"`
	// Email, Password and Role live on the User model.
}
