package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"schoolbus_tracker/internal/config"
	"schoolbus_tracker/internal/models"
)

type markStopPayload struct {
	RouteID      uint `json:"route_id" binding:"required"`
	StopSequence int  `json:"stop_sequence" binding:"required"`
}

// MarkStopCompleted records arrival at the stop in the URL and fans
// notifications out to the guardians of every student assigned there.
// Resubmitting the same stop on the same day returns the original
// completion without a second notification round.
func MarkStopCompleted(c *gin.Context) {
	caller, ok := currentDriver(c)
	if !ok {
		return
	}

	stopID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid stop ID format."})
		return
	}

	var payload markStopPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid stop completion payload: " + err.Error()})
		return
	}

	bus, ok := busHeldBy(c, caller.ID)
	if !ok {
		return
	}

	completion, created, err := stopService().MarkStopCompleted(
		uint(stopID), payload.RouteID, caller.ID, bus.ID, caller.CompanyID, payload.StopSequence)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"completion": completion, "created": created})
}

// GetTodayCompletedStops lists today's completions for one of the
// caller's company's routes.
func GetTodayCompletedStops(c *gin.Context) {
	caller, ok := currentDriver(c)
	if !ok {
		return
	}

	routeID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid route ID format."})
		return
	}

	completions, err := stopService().GetTodayCompletedStops(caller.CompanyID, uint(routeID))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"completions": completions})
}

// ResetRouteStops clears today's completions so a second run of the
// day starts from a clean slate.
func ResetRouteStops(c *gin.Context) {
	caller, ok := currentDriver(c)
	if !ok {
		return
	}

	routeID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid route ID format."})
		return
	}

	if err := stopService().ResetRouteStops(caller.CompanyID, uint(routeID)); err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Route stops reset for today."})
}

type attendancePayload struct {
	Status string `json:"status" binding:"required"`
}

// MarkAttendance records a student's roll call status for today.
func MarkAttendance(c *gin.Context) {
	caller, ok := currentDriver(c)
	if !ok {
		return
	}

	studentID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid student ID format."})
		return
	}

	var payload attendancePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid attendance payload: " + err.Error()})
		return
	}

	attendance, err := stopService().MarkAttendance(uint(studentID), caller.ID, caller.CompanyID, payload.Status)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"attendance": attendance})
}

// GetStopsAway answers a guardian's "how far is the bus" query for one
// of their students.
func GetStopsAway(c *gin.Context) {
	userID := uint(c.MustGet("user_id").(float64))

	studentID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid student ID format."})
		return
	}

	// Guardians may only query their own students.
	var count int64
	config.DB.Table("student_guardians").
		Where("student_id = ? AND user_id = ?", uint(studentID), userID).
		Count(&count)
	if count == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Student not found."})
		return
	}

	away, err := stopService().ComputeStopsAway(uint(studentID))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, away)
}

// ListMyNotifications returns the caller's notifications, newest
// first.
func ListMyNotifications(c *gin.Context) {
	userID := uint(c.MustGet("user_id").(float64))
	role := c.MustGet("role").(string)

	var notifications []models.Notification
	err := config.DB.
		Where("recipient_id = ? OR (recipient_id IS NULL AND recipient_role = ?)", userID, role).
		Order("created_at desc").
		Limit(100).
		Find(&notifications).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error listing notifications: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": notifications})
}
