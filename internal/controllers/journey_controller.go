package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"schoolbus_tracker/internal/config"
	"schoolbus_tracker/internal/models"
)

type journeyEventPayload struct {
	EventType string `json:"event_type" binding:"required"`
	SchoolID  *uint  `json:"school_id"`
}

// RecordJourneyEvent stamps one of the four checkpoint events on
// today's journey for the caller's bus.
func RecordJourneyEvent(c *gin.Context) {
	caller, ok := currentDriver(c)
	if !ok {
		return
	}

	var payload journeyEventPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid journey event payload: " + err.Error()})
		return
	}

	bus, ok := busHeldBy(c, caller.ID)
	if !ok {
		return
	}

	journey, err := journeyTracker().RecordEvent(bus.ID, payload.EventType, payload.SchoolID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"journey": journey})
}

// GetTodayJourney returns today's journey for the caller's bus.
func GetTodayJourney(c *gin.Context) {
	caller, ok := currentDriver(c)
	if !ok {
		return
	}

	bus, ok := busHeldBy(c, caller.ID)
	if !ok {
		return
	}

	journey, err := journeyTracker().GetTodayJourney(bus.ID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"journey": journey})
}

// busHeldBy fetches the bus currently bound to the driver, answering
// 404 when there is none.
func busHeldBy(c *gin.Context, driverID uint) (*models.Bus, bool) {
	var bus models.Bus
	if err := config.DB.Where("driver_id = ?", driverID).First(&bus).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "No bus assigned to this driver."})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch bus."})
		}
		return nil, false
	}
	return &bus, true
}
