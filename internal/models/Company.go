package models

import (
	"gorm.io/gorm"
)

// Company represents a transport operator running school buses on
// fixed routes. Every other entity is scoped to a company.
type Company struct {
	gorm.Model
	UserID uint `gorm:"uniqueIndex" json:"user_id"` // owning admin account

	Name    string `json:"name" binding:"required"`
	Email   string `gorm:"unique;not null" json:"email" binding:"required,email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`

	Buses  []Bus   `gorm:"foreignKey:CompanyID" json:"buses,omitempty"`
	Routes []Route `gorm:"foreignKey:CompanyID" json:"routes,omitempty"`
}
