package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"schoolbus_tracker/internal/config"
	"schoolbus_tracker/internal/models"
)

// CreateSchool registers a school served by the company's routes.
func CreateSchool(c *gin.Context) {
	company, ok := currentCompany(c)
	if !ok {
		return
	}

	var input struct {
		Name    string  `json:"name" binding:"required"`
		Address string  `json:"address"`
		Lat     float64 `json:"lat"`
		Lng     float64 `json:"lng"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid school input: " + err.Error()})
		return
	}

	school := models.School{
		CompanyID: company.ID,
		Name:      input.Name,
		Address:   input.Address,
		Lat:       input.Lat,
		Lng:       input.Lng,
	}
	if err := config.DB.Create(&school).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create school: " + err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"school": school})
}

// ListSchools lists the company's schools.
func ListSchools(c *gin.Context) {
	company, ok := currentCompany(c)
	if !ok {
		return
	}

	var schools []models.School
	if err := config.DB.Where("company_id = ?", company.ID).Find(&schools).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error listing schools"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": schools})
}

// DeleteSchool removes a school.
func DeleteSchool(c *gin.Context) {
	company, ok := currentCompany(c)
	if !ok {
		return
	}
	id := c.Param("id")

	var school models.School
	if err := config.DB.Where("id = ? AND company_id = ?", id, company.ID).First(&school).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "School not found"})
		return
	}

	config.DB.Delete(&school)
	c.JSON(http.StatusOK, gin.H{"message": "School deleted"})
}

type studentPayload struct {
	Name        string `json:"name" binding:"required"`
	Grade       string `json:"grade"`
	RouteID     *uint  `json:"route_id"`
	StopID      *uint  `json:"stop_id"`
	SchoolID    *uint  `json:"school_id"`
	GuardianIDs []uint `json:"guardian_ids"`
}

// CreateStudent registers a rider with their stop, school and
// guardians.
func CreateStudent(c *gin.Context) {
	company, ok := currentCompany(c)
	if !ok {
		return
	}

	var payload studentPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid student input: " + err.Error()})
		return
	}

	guardians, err := loadGuardians(payload.GuardianIDs)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	student := models.Student{
		CompanyID: company.ID,
		Name:      payload.Name,
		Grade:     payload.Grade,
		RouteID:   payload.RouteID,
		StopID:    payload.StopID,
		SchoolID:  payload.SchoolID,
		Guardians: guardians,
	}
	if err := config.DB.Create(&student).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create student: " + err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"student": student})
}

// UpdateStudent modifies a rider's assignment or guardian links.
func UpdateStudent(c *gin.Context) {
	company, ok := currentCompany(c)
	if !ok {
		return
	}

	studentID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid student ID format."})
		return
	}

	var student models.Student
	if err := config.DB.Where("id = ? AND company_id = ?", uint(studentID), company.ID).First(&student).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Student not found."})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error: " + err.Error()})
		}
		return
	}

	var payload struct {
		Name        *string `json:"name"`
		Grade       *string `json:"grade"`
		RouteID     *uint   `json:"route_id"`
		StopID      *uint   `json:"stop_id"`
		SchoolID    *uint   `json:"school_id"`
		GuardianIDs []uint  `json:"guardian_ids"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid update payload: " + err.Error()})
		return
	}

	if payload.Name != nil {
		student.Name = *payload.Name
	}
	if payload.Grade != nil {
		student.Grade = *payload.Grade
	}
	if payload.RouteID != nil {
		student.RouteID = payload.RouteID
	}
	if payload.StopID != nil {
		student.StopID = payload.StopID
	}
	if payload.SchoolID != nil {
		student.SchoolID = payload.SchoolID
	}

	if err := config.DB.Save(&student).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update student: " + err.Error()})
		return
	}

	if payload.GuardianIDs != nil {
		guardians, err := loadGuardians(payload.GuardianIDs)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := config.DB.Model(&student).Association("Guardians").Replace(guardians); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update guardians: " + err.Error()})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"student": student})
}

// ListStudents lists the company's riders with guardians preloaded.
func ListStudents(c *gin.Context) {
	company, ok := currentCompany(c)
	if !ok {
		return
	}

	var students []models.Student
	if err := config.DB.Where("company_id = ?", company.ID).
		Preload("Guardians").
		Find(&students).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error listing students"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": students})
}

// DeleteStudent removes a rider.
func DeleteStudent(c *gin.Context) {
	company, ok := currentCompany(c)
	if !ok {
		return
	}
	id := c.Param("id")

	var student models.Student
	if err := config.DB.Where("id = ? AND company_id = ?", id, company.ID).First(&student).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Student not found"})
		return
	}

	config.DB.Delete(&student)
	c.JSON(http.StatusOK, gin.H{"message": "Student deleted"})
}

// loadGuardians resolves guardian-role users by ID, rejecting any
// other role.
func loadGuardians(ids []uint) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var guardians []models.User
	if err := config.DB.Where("id IN ? AND role = ?", ids, "guardian").Find(&guardians).Error; err != nil {
		return nil, err
	}
	if len(guardians) != len(ids) {
		return nil, errors.New("one or more guardian IDs do not reference guardian users")
	}
	return guardians, nil
}
