package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"schoolbus_tracker/internal/config"
	"schoolbus_tracker/internal/models"
)

// updateDriverInput defines the fields an admin can change on a
// driver. User-level fields land on the associated User.
type updateDriverInput struct {
	UserName     *string `json:"name"`
	UserEmail    *string `json:"email"`
	UserPhone    *string `json:"phone"`
	UserPassword *string `json:"password"`

	DriverPhone   *string `json:"driver_phone"`
	LicenseNumber *string `json:"license_number"`
}

// GetDriverProfile returns the authenticated driver's own profile,
// including current duty state. This is the reconciliation read a
// client issues after a degraded check-in.
func GetDriverProfile(c *gin.Context) {
	caller, ok := currentDriver(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"driver": caller})
}

// ListDrivers lists the company's drivers with duty state.
func ListDrivers(c *gin.Context) {
	company, ok := currentCompany(c)
	if !ok {
		return
	}

	var drivers []models.Driver
	if err := config.DB.Where("company_id = ?", company.ID).
		Preload("User").
		Find(&drivers).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error listing drivers: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": drivers})
}

// GetDriver fetches one driver by profile ID, company-scoped.
func GetDriver(c *gin.Context) {
	company, ok := currentCompany(c)
	if !ok {
		return
	}

	driverID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid driver ID format."})
		return
	}

	var driver models.Driver
	if err := config.DB.Where("id = ? AND company_id = ?", uint(driverID), company.ID).
		Preload("User").
		First(&driver).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Driver not found."})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error: " + err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"driver": driver})
}

// UpdateDriver modifies driver details (user-level and
// driver-specific).
func UpdateDriver(c *gin.Context) {
	company, ok := currentCompany(c)
	if !ok {
		return
	}

	driverID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid driver ID format."})
		return
	}

	var driver models.Driver
	if err := config.DB.Where("id = ? AND company_id = ?", uint(driverID), company.ID).
		Preload("User").
		First(&driver).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Driver not found."})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error: " + err.Error()})
		}
		return
	}

	var input updateDriverInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	tx := config.DB.Begin()
	if tx.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not start transaction."})
		return
	}

	if input.UserName != nil {
		driver.User.Name = *input.UserName
		driver.Name = *input.UserName
	}
	if input.UserEmail != nil {
		driver.User.Email = *input.UserEmail
	}
	if input.UserPhone != nil {
		driver.User.Phone = *input.UserPhone
	}
	if input.UserPassword != nil {
		hashedPassword, hashErr := bcrypt.GenerateFromPassword([]byte(*input.UserPassword), bcrypt.DefaultCost)
		if hashErr != nil {
			tx.Rollback()
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password."})
			return
		}
		driver.User.Password = string(hashedPassword)
	}

	if err := tx.Save(&driver.User).Error; err != nil {
		tx.Rollback()
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update user details: " + err.Error()})
		return
	}

	if input.DriverPhone != nil {
		driver.Phone = *input.DriverPhone
	}
	if input.LicenseNumber != nil {
		driver.LicenseNumber = *input.LicenseNumber
	}
	if err := tx.Save(&driver).Error; err != nil {
		tx.Rollback()
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update driver details: " + err.Error()})
		return
	}

	if err := tx.Commit().Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not commit transaction: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Driver details updated successfully.",
		"driver":  driver,
	})
}

// DeleteDriver removes a driver profile and its user account.
func DeleteDriver(c *gin.Context) {
	company, ok := currentCompany(c)
	if !ok {
		return
	}

	driverID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid driver ID format."})
		return
	}

	var driver models.Driver
	if err := config.DB.Where("id = ? AND company_id = ?", uint(driverID), company.ID).First(&driver).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Driver not found."})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error: " + err.Error()})
		}
		return
	}

	if err := config.DB.Delete(&models.User{}, driver.UserID).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete driver user: " + err.Error()})
		return
	}
	config.DB.Delete(&driver)

	c.JSON(http.StatusOK, gin.H{"message": "Driver and associated user account deleted successfully."})
}

// ListShiftReports lists the company's shift reports, optionally
// filtered by driver_id, newest first.
func ListShiftReports(c *gin.Context) {
	company, ok := currentCompany(c)
	if !ok {
		return
	}

	query := config.DB.Where("company_id = ?", company.ID)
	if driverID := c.Query("driver_id"); driverID != "" {
		query = query.Where("driver_id = ?", driverID)
	}

	var reports []models.ShiftReport
	if err := query.Order("created_at desc").Limit(200).Find(&reports).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error listing shift reports: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": reports})
}
