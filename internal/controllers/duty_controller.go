package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"schoolbus_tracker/internal/services"
)

// checkInPayload is the inspection form submitted when going on duty.
// driver_id is optional: shared-device kiosks may check in a colleague
// from the same company; it defaults to the caller's own profile.
type checkInPayload struct {
	DriverID        uint   `json:"driver_id"`
	BusID           uint   `json:"bus_id" binding:"required"`
	RouteID         uint   `json:"route_id" binding:"required"`
	FuelLevel       string `json:"fuel_level" binding:"required"`
	InteriorClean   *bool  `json:"interior_clean" binding:"required"`
	ExteriorClean   *bool  `json:"exterior_clean" binding:"required"`
	HomebaseAddress string `json:"homebase_address"`
}

type dutyStatusPayload struct {
	DriverID uint  `json:"driver_id"`
	OnDuty   *bool `json:"on_duty" binding:"required"`
}

// CheckIn puts a driver on duty: inspection snapshot, route and bus
// binding, bus status, and today's journey. The response carries the
// per-step outcome so partially degraded check-ins stay observable.
func CheckIn(c *gin.Context) {
	caller, ok := currentDriver(c)
	if !ok {
		return
	}

	var payload checkInPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid check-in payload: " + err.Error()})
		return
	}

	targetID := payload.DriverID
	if targetID == 0 {
		targetID = caller.ID
	}

	outcome, err := dutyService().CheckIn(caller.CompanyID, services.CheckInInput{
		DriverID:        targetID,
		BusID:           payload.BusID,
		RouteID:         payload.RouteID,
		FuelLevel:       payload.FuelLevel,
		InteriorClean:   *payload.InteriorClean,
		ExteriorClean:   *payload.ExteriorClean,
		HomebaseAddress: payload.HomebaseAddress,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Checked in successfully.",
		"driver":  outcome.Driver,
		"steps":   stepSummary(outcome),
	})
}

// SetDutyStatus flips duty on or off. Going off duty synthesizes the
// shift report and releases the bus and route.
func SetDutyStatus(c *gin.Context) {
	caller, ok := currentDriver(c)
	if !ok {
		return
	}

	var payload dutyStatusPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid duty status payload: " + err.Error()})
		return
	}

	targetID := payload.DriverID
	if targetID == 0 {
		targetID = caller.ID
	}

	outcome, err := dutyService().SetDutyStatus(caller.CompanyID, targetID, *payload.OnDuty)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	message := "Driver is now off duty."
	if *payload.OnDuty {
		message = "Driver is now on duty."
	}
	c.JSON(http.StatusOK, gin.H{
		"message": message,
		"driver":  outcome.Driver,
		"steps":   stepSummary(outcome),
	})
}

// ActivateRoute resumes a paused route without a full re-inspection.
func ActivateRoute(c *gin.Context) {
	toggleRoute(c, true)
}

// DeactivateRoute pauses the driver's current route.
func DeactivateRoute(c *gin.Context) {
	toggleRoute(c, false)
}

func toggleRoute(c *gin.Context, active bool) {
	caller, ok := currentDriver(c)
	if !ok {
		return
	}

	routeID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid route ID format."})
		return
	}

	svc := dutyService()
	var bus interface{}
	if active {
		bus, err = svc.ActivateRoute(caller.CompanyID, caller.ID, uint(routeID))
	} else {
		bus, err = svc.DeactivateRoute(caller.CompanyID, caller.ID, uint(routeID))
	}
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"bus": bus})
}

// ListAvailableBuses returns the buses the caller could check in with:
// assignable status, unheld or held by an off-duty driver.
func ListAvailableBuses(c *gin.Context) {
	caller, ok := currentDriver(c)
	if !ok {
		return
	}

	buses, err := dutyService().AvailableBuses(caller.CompanyID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"buses": buses})
}
