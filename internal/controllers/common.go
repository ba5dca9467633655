package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"schoolbus_tracker/internal/config"
	"schoolbus_tracker/internal/models"
	"schoolbus_tracker/internal/services"
)

// Service constructors over the global DB handle. The services are
// cheap stateless structs; building them per call keeps the handlers
// free of init ordering concerns.

func assignmentManager() *services.AssignmentManager {
	return services.NewAssignmentManager(config.DB)
}

func journeyTracker() *services.JourneyTracker {
	return services.NewJourneyTracker(config.DB)
}

func dutyService() *services.DutyService {
	return services.NewDutyService(config.DB, assignmentManager(), journeyTracker())
}

func stopService() *services.StopProgressService {
	return services.NewStopProgressService(config.DB, services.NewDBNotifier(config.DB))
}

// respondServiceError maps the service error taxonomy to HTTP codes.
// Anything untyped is a 500 and gets logged.
func respondServiceError(c *gin.Context, err error) {
	var nf *services.NotFoundError
	var conflict *services.ConflictError
	var validation *services.ValidationError
	var unauthorized *services.UnauthorizedError

	switch {
	case errors.As(err, &nf):
		c.JSON(http.StatusNotFound, gin.H{"error": nf.Error()})
	case errors.As(err, &conflict):
		c.JSON(http.StatusConflict, gin.H{"error": conflict.Error()})
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"error": validation.Error()})
	case errors.As(err, &unauthorized):
		c.JSON(http.StatusForbidden, gin.H{"error": unauthorized.Error()})
	default:
		logrus.WithError(err).Error("Unhandled service error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// currentDriver resolves the authenticated user's driver profile.
func currentDriver(c *gin.Context) (*models.Driver, bool) {
	userID := uint(c.MustGet("user_id").(float64))

	var driver models.Driver
	if err := config.DB.Preload("User").Where("user_id = ?", userID).First(&driver).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Driver profile not found for the authenticated user."})
		} else {
			logrus.WithError(err).Error("Database error fetching driver profile")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch driver profile."})
		}
		return nil, false
	}
	return &driver, true
}

// currentCompany resolves the authenticated admin's company.
func currentCompany(c *gin.Context) (*models.Company, bool) {
	userID := uint(c.MustGet("user_id").(float64))

	var company models.Company
	if err := config.DB.Where("user_id = ?", userID).First(&company).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Company profile not found for the authenticated user."})
		} else {
			logrus.WithError(err).Error("Database error fetching company profile")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch company profile."})
		}
		return nil, false
	}
	return &company, true
}

// stepSummary flattens a duty outcome's secondary steps for the
// response body so callers can observe partial failure.
func stepSummary(outcome *services.Outcome) []gin.H {
	steps := make([]gin.H, 0, len(outcome.Steps))
	for _, s := range outcome.Steps {
		entry := gin.H{"name": s.Name, "ok": s.Err == nil}
		if s.Err != nil {
			entry["error"] = s.Err.Error()
		}
		steps = append(steps, entry)
	}
	return steps
}
