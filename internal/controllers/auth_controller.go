package controllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"schoolbus_tracker/internal/config"
	"schoolbus_tracker/internal/middleware"
	"schoolbus_tracker/internal/models"
)

type signupInput struct {
	Name          string `json:"name" binding:"required"`
	Email         string `json:"email" binding:"required,email"`
	Password      string `json:"password" binding:"required"`
	Phone         string `json:"phone"`
	Role          string `json:"role"`
	CompanyName   string `json:"company_name"`
	DriverPhone   string `json:"driver_phone"`
	LicenseNumber string `json:"license_number"`
	CompanyID     uint   `json:"company_id"`
}

func SignupUser(c *gin.Context) {
	var input signupInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	role, err := validateAndNormalizeRole(input.Role)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	input.Role = role

	hashedPassword, err := hashPassword(input.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not hash password"})
		return
	}

	tx := config.DB.Begin()
	if tx.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not start transaction"})
		return
	}

	user, err := createUserRecord(tx, input, hashedPassword)
	if err != nil {
		tx.Rollback()
		if isUniqueViolation(err) {
			c.JSON(http.StatusConflict, gin.H{"error": "email already in use"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create user: " + err.Error()})
		return
	}

	err = createActorRecord(tx, &user, input)
	if err != nil {
		tx.Rollback()
		if strings.Contains(err.Error(), "required for") ||
			strings.Contains(err.Error(), "must be assigned to a company_id") ||
			strings.Contains(err.Error(), "does not exist") {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create actor record: " + err.Error()})
		}
		return
	}

	if err := tx.Commit().Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not commit transaction: " + err.Error()})
		return
	}

	token, err := middleware.GenerateToken(user.ID, user.Role)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not generate token"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"token": token,
		"user":  prepareUserResponse(user),
	})
}

func LoginUser(c *gin.Context) {
	var body struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var user models.User
	query := config.DB.Where("email = ?", body.Email).
		Preload("Company").
		Preload("Driver").
		Preload("Driver.Company")

	if err := query.First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found or invalid credentials"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error: " + err.Error()})
		}
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(body.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "incorrect password"})
		return
	}

	token, err := middleware.GenerateToken(user.ID, user.Role)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not generate token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user":  prepareUserResponse(user),
	})
}

func validateAndNormalizeRole(roleInput string) (string, error) {
	role := strings.ToLower(strings.TrimSpace(roleInput))
	if role == "" {
		role = "guardian"
	}
	switch role {
	case "guardian", "admin", "driver":
		return role, nil
	default:
		return "", errors.New("invalid role")
	}
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pq.Error
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func createUserRecord(tx *gorm.DB, input signupInput, hashedPassword string) (models.User, error) {
	user := models.User{
		Name:     input.Name,
		Email:    input.Email,
		Password: hashedPassword,
		Phone:    input.Phone,
		Role:     input.Role,
	}
	if err := tx.Create(&user).Error; err != nil {
		return models.User{}, err
	}
	return user, nil
}

func createActorRecord(tx *gorm.DB, user *models.User, input signupInput) error {
	switch user.Role {
	case "admin":
		if input.CompanyName == "" {
			return errors.New("company_name is required for admin role")
		}

		company := models.Company{
			UserID: user.ID,
			Name:   input.CompanyName,
			Email:  input.Email,
			Phone:  input.Phone,
		}
		if err := tx.Create(&company).Error; err != nil {
			return err
		}
		user.Company = &company
	case "driver":
		if input.LicenseNumber == "" {
			return errors.New("license_number is required for driver role")
		}
		if input.CompanyID == 0 {
			return errors.New("driver must be assigned to a company_id")
		}

		var existingCompany models.Company
		if result := tx.First(&existingCompany, input.CompanyID); result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return errors.New("company with the provided company_id does not exist")
			}
			return result.Error
		}

		driver := models.Driver{
			UserID:        user.ID,
			Name:          input.Name,
			Phone:         input.DriverPhone,
			LicenseNumber: input.LicenseNumber,
			CompanyID:     input.CompanyID,
		}
		if err := tx.Create(&driver).Error; err != nil {
			return err
		}
		user.Driver = &driver
	}
	return nil
}

func prepareUserResponse(user models.User) gin.H {
	responseUser := gin.H{
		"ID":        user.ID,
		"CreatedAt": user.CreatedAt,
		"UpdatedAt": user.UpdatedAt,
		"name":      user.Name,
		"email":     user.Email,
		"phone":     user.Phone,
		"role":      user.Role,
	}

	if user.Company != nil {
		responseUser["company"] = gin.H{
			"ID":      user.Company.ID,
			"name":    user.Company.Name,
			"email":   user.Company.Email,
			"phone":   user.Company.Phone,
			"address": user.Company.Address,
		}
		responseUser["company_id"] = user.Company.ID
	}
	if user.Driver != nil {
		driverMap := gin.H{
			"ID":                user.Driver.ID,
			"name":              user.Driver.Name,
			"phone":             user.Driver.Phone,
			"license_number":    user.Driver.LicenseNumber,
			"company_id":        user.Driver.CompanyID,
			"is_on_duty":        user.Driver.IsOnDuty,
			"duty_start_time":   user.Driver.DutyStartTime,
			"assigned_route_id": user.Driver.AssignedRouteID,
		}
		if user.Driver.Company.ID != 0 {
			driverMap["company"] = gin.H{
				"ID":   user.Driver.Company.ID,
				"name": user.Driver.Company.Name,
			}
		}
		responseUser["driver"] = driverMap
		if user.Driver.CompanyID != 0 {
			responseUser["company_id"] = user.Driver.CompanyID
		}
	}
	return responseUser
}
