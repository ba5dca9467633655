package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"schoolbus_tracker/internal/config"
	"schoolbus_tracker/internal/models"
)

// CreateBus allows an admin to register a new bus; defaults to idle.
func CreateBus(c *gin.Context) {
	company, ok := currentCompany(c)
	if !ok {
		return
	}

	var input struct {
		NumberPlate string `json:"number_plate" binding:"required"`
		Capacity    int    `json:"capacity"`
		FuelLevel   string `json:"fuel_level"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid bus input: " + err.Error()})
		return
	}

	bus := models.Bus{
		CompanyID:   company.ID,
		NumberPlate: input.NumberPlate,
		Capacity:    input.Capacity,
		Status:      models.BusIdle,
		FuelLevel:   input.FuelLevel,
	}
	if err := config.DB.Create(&bus).Error; err != nil {
		if isUniqueViolation(err) {
			c.JSON(http.StatusConflict, gin.H{"error": "a bus with this number plate already exists"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create bus: " + err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"bus": bus})
}

// ListBuses lists the caller's company fleet.
func ListBuses(c *gin.Context) {
	company, ok := currentCompany(c)
	if !ok {
		return
	}

	var buses []models.Bus
	if err := config.DB.Where("company_id = ?", company.ID).Find(&buses).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error listing buses"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": buses})
}

// UpdateBus modifies bus metadata and status. Company-scoped.
func UpdateBus(c *gin.Context) {
	company, ok := currentCompany(c)
	if !ok {
		return
	}
	id := c.Param("id")

	var bus models.Bus
	if err := config.DB.Where("id = ? AND company_id = ?", id, company.ID).First(&bus).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Bus not found"})
		return
	}

	var input struct {
		NumberPlate *string `json:"number_plate"`
		Capacity    *int    `json:"capacity"`
		Status      *string `json:"status"`
		FuelLevel   *string `json:"fuel_level"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid update"})
		return
	}

	if input.NumberPlate != nil {
		bus.NumberPlate = *input.NumberPlate
	}
	if input.Capacity != nil {
		bus.Capacity = *input.Capacity
	}
	if input.Status != nil {
		switch *input.Status {
		case models.BusIdle, models.BusOnRoute, models.BusMaintenance, models.BusEmergency, models.BusInactive:
			bus.Status = *input.Status
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid bus status: " + *input.Status})
			return
		}
	}
	if input.FuelLevel != nil {
		bus.FuelLevel = *input.FuelLevel
	}

	if err := config.DB.Save(&bus).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update bus"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"bus": bus})
}

// DeleteBus removes a bus from the fleet.
func DeleteBus(c *gin.Context) {
	company, ok := currentCompany(c)
	if !ok {
		return
	}
	id := c.Param("id")

	var bus models.Bus
	if err := config.DB.Where("id = ? AND company_id = ?", id, company.ID).First(&bus).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Bus not found"})
		return
	}

	config.DB.Delete(&bus)
	c.JSON(http.StatusOK, gin.H{"message": "Bus deleted"})
}

// GetMyBus fetches the bus currently assigned to the authenticated
// driver.
func GetMyBus(c *gin.Context) {
	caller, ok := currentDriver(c)
	if !ok {
		return
	}

	var bus models.Bus
	if err := config.DB.Where("driver_id = ?", caller.ID).First(&bus).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "No bus assigned to this driver."})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch bus data."})
		return
	}
	c.JSON(http.StatusOK, gin.H{"bus": bus})
}
