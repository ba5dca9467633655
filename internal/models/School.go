package models

import (
	"gorm.io/gorm"
)

type School struct {
	gorm.Model
	CompanyID uint    `json:"company_id"`
	Name      string  `json:"name" binding:"required"`
	Address   string  `json:"address"`
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
}
