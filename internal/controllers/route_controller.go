package controllers

import (
	"encoding/binary"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"schoolbus_tracker/internal/config"
	"schoolbus_tracker/internal/models"

	"github.com/twpayne/go-geom"
	gjson "github.com/twpayne/go-geom/encoding/geojson"
	"github.com/twpayne/go-geom/encoding/wkb"
)

// RouteResponse mirrors models.Route with Geometry as a GeoJSON
// string for API output.
type RouteResponse struct {
	ID          uint           `json:"ID"`
	CreatedAt   time.Time      `json:"CreatedAt"`
	UpdatedAt   time.Time      `json:"UpdatedAt"`
	DeletedAt   gorm.DeletedAt `json:"DeletedAt,omitempty"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	CompanyID   uint           `json:"company_id"`
	SchoolID    *uint          `json:"school_id"`
	DriverID    *uint          `json:"driver_id"`
	Geometry    string         `json:"geometry"`
	Stops       []models.Stop  `json:"stops"`
}

func toRouteResponse(route models.Route) RouteResponse {
	jsonGeom, _ := convertWKBToGeoJSON(route.Geometry)
	return RouteResponse{
		ID:          route.ID,
		CreatedAt:   route.CreatedAt,
		UpdatedAt:   route.UpdatedAt,
		DeletedAt:   route.DeletedAt,
		Name:        route.Name,
		Description: route.Description,
		CompanyID:   route.CompanyID,
		SchoolID:    route.SchoolID,
		DriverID:    route.DriverID,
		Geometry:    jsonGeom,
		Stops:       route.Stops,
	}
}

// parseAndConvertGeometry parses a GeoJSON string into WKB bytes.
func parseAndConvertGeometry(raw string) ([]byte, error) {
	if raw == "" {
		return nil, nil
	}
	var g geom.T
	if err := gjson.Unmarshal([]byte(raw), &g); err != nil {
		return nil, err
	}
	return wkb.Marshal(g, binary.LittleEndian)
}

// convertWKBToGeoJSON converts WKB bytes into a GeoJSON string.
func convertWKBToGeoJSON(wkbBytes []byte) (string, error) {
	if len(wkbBytes) == 0 {
		return "", nil
	}
	g, err := wkb.Unmarshal(wkbBytes)
	if err != nil {
		return "", err
	}
	b, err := gjson.Marshal(g)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

type createRoutePayload struct {
	Name        string        `json:"name" binding:"required"`
	Description string        `json:"description"`
	SchoolID    *uint         `json:"school_id"`
	Geometry    string        `json:"geometry"` // GeoJSON
	Stops       []models.Stop `json:"stops"`
}

// CreateRoute registers a route with its ordered stops and optional
// GeoJSON geometry.
func CreateRoute(c *gin.Context) {
	company, ok := currentCompany(c)
	if !ok {
		return
	}

	var payload createRoutePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid route input: " + err.Error()})
		return
	}

	wkbBytes, err := parseAndConvertGeometry(payload.Geometry)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid GeoJSON geometry: " + err.Error()})
		return
	}

	route := models.Route{
		Name:        payload.Name,
		Description: payload.Description,
		CompanyID:   company.ID,
		SchoolID:    payload.SchoolID,
		Geometry:    wkbBytes,
		Stops:       payload.Stops,
	}
	if err := config.DB.Create(&route).Error; err != nil {
		logrus.WithError(err).Error("Failed to create route")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create route: " + err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"route": toRouteResponse(route)})
}

// AddStopsToRoute replaces or extends the ordered stop list of a
// route.
func AddStopsToRoute(c *gin.Context) {
	company, ok := currentCompany(c)
	if !ok {
		return
	}

	routeID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid route ID format."})
		return
	}

	var route models.Route
	if err := config.DB.Where("id = ? AND company_id = ?", uint(routeID), company.ID).First(&route).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Route not found."})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error: " + err.Error()})
		}
		return
	}

	var payload struct {
		Stops   []models.Stop `json:"stops" binding:"required"`
		Replace bool          `json:"replace"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid stops payload: " + err.Error()})
		return
	}

	tx := config.DB.Begin()
	if payload.Replace {
		if err := tx.Where("route_id = ?", route.ID).Delete(&models.Stop{}).Error; err != nil {
			tx.Rollback()
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to clear existing stops: " + err.Error()})
			return
		}
	}
	for i := range payload.Stops {
		payload.Stops[i].RouteID = route.ID
		if err := tx.Create(&payload.Stops[i]).Error; err != nil {
			tx.Rollback()
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add stop: " + err.Error()})
			return
		}
	}
	if err := tx.Commit().Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not commit transaction: " + err.Error()})
		return
	}

	config.DB.Preload("Stops", func(db *gorm.DB) *gorm.DB {
		return db.Order("stops.seq asc")
	}).First(&route, route.ID)

	c.JSON(http.StatusOK, gin.H{"route": toRouteResponse(route)})
}

// ListRoutes lists the company's routes with stops in order.
func ListRoutes(c *gin.Context) {
	company, ok := currentCompany(c)
	if !ok {
		return
	}

	var routes []models.Route
	if err := config.DB.Where("company_id = ?", company.ID).
		Preload("Stops", func(db *gorm.DB) *gorm.DB {
			return db.Order("stops.seq asc")
		}).
		Find(&routes).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error listing routes: " + err.Error()})
		return
	}

	responses := make([]RouteResponse, 0, len(routes))
	for _, route := range routes {
		responses = append(responses, toRouteResponse(route))
	}
	c.JSON(http.StatusOK, gin.H{"data": responses})
}

// GetRoute fetches one route, company-scoped.
func GetRoute(c *gin.Context) {
	company, ok := currentCompany(c)
	if !ok {
		return
	}

	routeID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid route ID format."})
		return
	}

	var route models.Route
	if err := config.DB.Where("id = ? AND company_id = ?", uint(routeID), company.ID).
		Preload("Stops", func(db *gorm.DB) *gorm.DB {
			return db.Order("stops.seq asc")
		}).
		First(&route).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Route not found."})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error: " + err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"route": toRouteResponse(route)})
}

// UpdateRoute modifies route metadata and geometry.
func UpdateRoute(c *gin.Context) {
	company, ok := currentCompany(c)
	if !ok {
		return
	}

	routeID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid route ID format."})
		return
	}

	var route models.Route
	if err := config.DB.Where("id = ? AND company_id = ?", uint(routeID), company.ID).First(&route).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Route not found."})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error: " + err.Error()})
		}
		return
	}

	var payload struct {
		Name        *string `json:"name"`
		Description *string `json:"description"`
		SchoolID    *uint   `json:"school_id"`
		Geometry    *string `json:"geometry"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid update payload: " + err.Error()})
		return
	}

	if payload.Name != nil {
		route.Name = *payload.Name
	}
	if payload.Description != nil {
		route.Description = *payload.Description
	}
	if payload.SchoolID != nil {
		route.SchoolID = payload.SchoolID
	}
	if payload.Geometry != nil {
		wkbBytes, err := parseAndConvertGeometry(*payload.Geometry)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid GeoJSON geometry: " + err.Error()})
			return
		}
		route.Geometry = wkbBytes
	}

	if err := config.DB.Save(&route).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update route: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"route": toRouteResponse(route)})
}

// DeleteRoute removes a route. Its stops are detached by the FK
// constraint.
func DeleteRoute(c *gin.Context) {
	company, ok := currentCompany(c)
	if !ok {
		return
	}

	routeID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid route ID format."})
		return
	}

	var route models.Route
	if err := config.DB.Where("id = ? AND company_id = ?", uint(routeID), company.ID).First(&route).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Route not found."})
		return
	}

	config.DB.Delete(&route)
	c.JSON(http.StatusOK, gin.H{"message": "Route deleted"})
}
