package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"schoolbus_tracker/internal/config"
	"schoolbus_tracker/internal/middleware"
	"schoolbus_tracker/internal/models"
)

// upgrader configures the WebSocket connection.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all for development (restrict in production!)
	},
}

// LocationData is the incoming JSON from the driver app.
type LocationData struct {
	DriverID  uint      `json:"driver_id"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Accuracy  float64   `json:"accuracy"` // GPS accuracy in meters
	Speed     float64   `json:"speed"`    // Speed in m/s
	Bearing   float64   `json:"bearing"`  // Direction in degrees
	Altitude  float64   `json:"altitude"` // Altitude in meters
	Timestamp time.Time `json:"timestamp"`
}

// UnmarshalJSON tolerates timestamps with or without a timezone
// suffix; the driver app has shipped both.
func (ld *LocationData) UnmarshalJSON(data []byte) error {
	type alias LocationData
	aux := &struct {
		Timestamp string `json:"timestamp"`
		*alias
	}{alias: (*alias)(ld)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	ts := aux.Timestamp
	if len(ts) >= 6 && !(strings.HasSuffix(ts, "Z") || strings.ContainsAny(ts[len(ts)-6:], "+-")) {
		ts += "Z"
	}

	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return fmt.Errorf("invalid timestamp %q: %w", aux.Timestamp, err)
	}
	ld.Timestamp = t
	return nil
}

// LocationHub fans live location updates out to a company's monitoring
// clients.
type LocationHub struct {
	companyClients map[uint]map[*websocket.Conn]bool
	broadcast      chan map[string]interface{}
	mu             sync.Mutex
}

// NewLocationHub creates a hub and starts its broadcast loop.
func NewLocationHub() *LocationHub {
	hub := &LocationHub{
		companyClients: make(map[uint]map[*websocket.Conn]bool),
		broadcast:      make(chan map[string]interface{}, 100),
	}
	go hub.run()
	return hub
}

func (h *LocationHub) run() {
	for msg := range h.broadcast {
		h.mu.Lock()
		companyIDFloat, ok := msg["company_id"].(float64)
		if !ok {
			logrus.Warn("Broadcast message missing 'company_id'. Skipping broadcast.")
			h.mu.Unlock()
			continue
		}
		companyID := uint(companyIDFloat)

		if clients, exists := h.companyClients[companyID]; exists {
			for conn := range clients {
				go func(c *websocket.Conn, m map[string]interface{}) {
					if err := c.WriteJSON(m); err != nil {
						if websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
							h.UnregisterClient(companyID, c)
						} else {
							logrus.WithError(err).WithField("company_id", companyID).Warn("Failed to send broadcast message to client.")
						}
					}
				}(conn, msg)
			}
		}
		h.mu.Unlock()
	}
}

// RegisterClient registers a monitoring client connection.
func (h *LocationHub) RegisterClient(companyID uint, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.companyClients[companyID]; !ok {
		h.companyClients[companyID] = make(map[*websocket.Conn]bool)
	}
	h.companyClients[companyID][conn] = true
	logrus.WithField("company_id", companyID).Info("Client registered with LocationHub.")
}

// UnregisterClient removes a disconnected client connection.
func (h *LocationHub) UnregisterClient(companyID uint, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if clients, ok := h.companyClients[companyID]; ok {
		delete(clients, conn)
		if len(clients) == 0 {
			delete(h.companyClients, companyID)
		}
	}
	logrus.WithField("company_id", companyID).Info("Client unregistered from LocationHub.")
}

// PublishLocation queues a location update for broadcast.
func (h *LocationHub) PublishLocation(data map[string]interface{}) {
	select {
	case h.broadcast <- data:
	default:
		logrus.Warn("Location broadcast channel full, dropping message.")
	}
}

var locationHub = NewLocationHub()

// authenticateUserForWebSocket validates the JWT in the query string
// and resolves the caller's company scope per role.
func authenticateUserForWebSocket(c *gin.Context) (userID uint, role string, companyID uint, driverID uint, err error) {
	tokenString := c.Query("token")
	if tokenString == "" {
		return 0, "", 0, 0, errors.New("missing authentication token")
	}

	claims, err := middleware.ValidateToken(tokenString)
	if err != nil {
		return 0, "", 0, 0, fmt.Errorf("invalid token: %w", err)
	}

	userID = claims.UserID
	role = claims.Role

	switch role {
	case "driver":
		var driver models.Driver
		if err := config.DB.Where("user_id = ?", userID).First(&driver).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return 0, "", 0, 0, fmt.Errorf("driver profile not found for user ID %d", userID)
			}
			return 0, "", 0, 0, fmt.Errorf("database error fetching driver profile for user ID %d: %w", userID, err)
		}
		driverID = driver.ID
		companyID = driver.CompanyID
	case "admin":
		var company models.Company
		if err := config.DB.Where("user_id = ?", userID).First(&company).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return 0, "", 0, 0, fmt.Errorf("company profile not found for user ID %d", userID)
			}
			return 0, "", 0, 0, fmt.Errorf("database error fetching company profile for user ID %d: %w", userID, err)
		}
		companyID = company.ID
	case "guardian":
		companyIDString := c.Query("company_id")
		if companyIDString == "" {
			return 0, "", 0, 0, errors.New("missing 'company_id' query parameter for guardian connection")
		}
		parsed, perr := strconv.ParseUint(companyIDString, 10, 64)
		if perr != nil {
			return 0, "", 0, 0, fmt.Errorf("invalid 'company_id' parameter: %w", perr)
		}
		companyID = uint(parsed)
	default:
		return 0, "", 0, 0, errors.New("unauthorized role for WebSocket connection")
	}
	return userID, role, companyID, driverID, nil
}

// HandleLocationWebSocket is the gin handler for all location
// websocket connections: drivers send positions, admins and guardians
// receive them.
func HandleLocationWebSocket(c *gin.Context) {
	userID, role, companyID, driverID, authErr := authenticateUserForWebSocket(c)
	if authErr != nil {
		logrus.WithError(authErr).Warnf("WebSocket connection attempt failed for User ID %d, Role %s", userID, role)
		c.JSON(http.StatusUnauthorized, gin.H{"error": authErr.Error()})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Error("Failed to upgrade WebSocket connection.")
		return
	}
	defer conn.Close()

	if role == "driver" {
		handleDriverWebSocket(conn, driverID, companyID)
	} else {
		handleMonitorWebSocket(conn, role, companyID)
	}
}

// handleDriverWebSocket reads a driver's location stream.
func handleDriverWebSocket(conn *websocket.Conn, driverID, companyID uint) {
	logrus.WithFields(logrus.Fields{
		"driver_id":  driverID,
		"company_id": companyID,
	}).Info("Driver WebSocket connection established.")

	for {
		messageType, p, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logrus.WithError(err).Errorf("Error reading WebSocket message from Driver ID %d", driverID)
			}
			break
		}
		if messageType == websocket.TextMessage {
			processDriverLocation(conn, p, driverID, companyID)
		}
	}
	logrus.WithField("driver_id", driverID).Info("Driver WebSocket connection closed.")
}

// handleMonitorWebSocket keeps a read loop open for an admin or
// guardian monitoring client.
func handleMonitorWebSocket(conn *websocket.Conn, role string, companyID uint) {
	logrus.WithFields(logrus.Fields{
		"role":       role,
		"company_id": companyID,
	}).Info("Monitoring WebSocket connection established.")

	locationHub.RegisterClient(companyID, conn)
	defer locationHub.UnregisterClient(companyID, conn)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logrus.WithError(err).Errorf("Error reading WebSocket message from %s (company %d)", role, companyID)
			}
			break
		}
	}
}

// processDriverLocation validates, filters and persists one incoming
// location sample, then broadcasts it.
func processDriverLocation(driverConn *websocket.Conn, p []byte, authenticatedDriverID uint, companyID uint) {
	var locData LocationData
	if err := json.Unmarshal(p, &locData); err != nil {
		logrus.WithError(err).WithField("driver_id", authenticatedDriverID).Error("Error unmarshaling location data from driver.")
		driverConn.WriteJSON(gin.H{"error": "Invalid location data format. Check timestamp format."})
		return
	}

	// The payload must be about the authenticated driver.
	if locData.DriverID != authenticatedDriverID {
		logrus.WithFields(logrus.Fields{
			"authenticated_driver_id": authenticatedDriverID,
			"payload_driver_id":       locData.DriverID,
		}).Warn("Driver attempted to send location for a different driver ID. Denying.")
		driverConn.WriteJSON(gin.H{"error": "Unauthorized location update."})
		return
	}

	var lastLocation models.LocationHistory
	err := config.DB.Where("driver_id = ?", locData.DriverID).Order("created_at desc").First(&lastLocation).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		saveAndPublishLocation(driverConn, locData, 0, 0, true, "initial", companyID)
		return
	} else if err != nil {
		logrus.WithError(err).Errorf("Database error fetching last location for Driver ID %d", locData.DriverID)
		driverConn.WriteJSON(gin.H{"error": "Database error fetching last location."})
		return
	}

	distance := calculateDistance(lastLocation.Latitude, lastLocation.Longitude, locData.Latitude, locData.Longitude)
	timeDiff := locData.Timestamp.Sub(lastLocation.Timestamp).Seconds()

	currentSpeed := locData.Speed
	if currentSpeed < 0 {
		currentSpeed = 0
	}

	bearing := calculateBearing(lastLocation.Latitude, lastLocation.Longitude, locData.Latitude, locData.Longitude)

	isSignificant, eventType := shouldSaveLocation(distance, currentSpeed, timeDiff, lastLocation)

	if isSignificant {
		saveAndPublishLocation(driverConn, locData, distance, bearing, currentSpeed > 0.5, eventType, companyID)
	} else {
		driverConn.WriteMessage(websocket.TextMessage, []byte("Location received - no significant change"))
	}
}

// saveAndPublishLocation persists the sample, mirrors it onto the
// driver's bus, and broadcasts to the company's monitors.
func saveAndPublishLocation(driverConn *websocket.Conn, locData LocationData, distance, bearing float64, isMoving bool, eventType string, companyID uint) {
	locationRecord := models.LocationHistory{
		DriverID:         locData.DriverID,
		Latitude:         locData.Latitude,
		Longitude:        locData.Longitude,
		Accuracy:         locData.Accuracy,
		Speed:            locData.Speed,
		Bearing:          bearing,
		Altitude:         locData.Altitude,
		IsMoving:         isMoving,
		DistanceFromLast: distance,
		Timestamp:        locData.Timestamp,
		EventType:        eventType,
	}

	if err := config.DB.Create(&locationRecord).Error; err != nil {
		logrus.WithError(err).Errorf("Failed to save location for Driver ID %d", locData.DriverID)
		driverConn.WriteJSON(gin.H{"error": "Failed to save location."})
		return
	}

	driverConn.WriteJSON(map[string]interface{}{
		"status":      "saved",
		"event_type":  eventType,
		"distance":    distance,
		"is_moving":   isMoving,
		"timestamp":   locData.Timestamp.Format(time.RFC3339Nano),
		"sequence_id": locationRecord.ID,
	})

	// Mirror the sample onto the driver's bus so plain REST reads see
	// the live position too.
	var bus models.Bus
	var busID uint
	if err := config.DB.Where("driver_id = ?", locData.DriverID).First(&bus).Error; err == nil {
		busID = bus.ID
		config.DB.Model(&bus).Updates(map[string]interface{}{
			"latitude":  locData.Latitude,
			"longitude": locData.Longitude,
			"speed":     locData.Speed,
		})
	}

	locationHub.PublishLocation(map[string]interface{}{
		"driver_id":   locData.DriverID,
		"bus_id":      busID,
		"latitude":    locData.Latitude,
		"longitude":   locData.Longitude,
		"accuracy":    locData.Accuracy,
		"speed":       locData.Speed,
		"bearing":     bearing,
		"altitude":    locData.Altitude,
		"timestamp":   locData.Timestamp.Format(time.RFC3339Nano),
		"event_type":  eventType,
		"is_moving":   isMoving,
		"company_id":  float64(companyID),
		"sequence_id": locationRecord.ID,
	})
}

// shouldSaveLocation decides whether a sample is significant enough to
// persist.
func shouldSaveLocation(distance, speed, timeDiff float64, lastLocation models.LocationHistory) (bool, string) {
	const minDistanceForSave = 5.0
	const minTimeDiffForSave = 10.0
	const minSpeedForMoving = 0.5
	const maxSpeedForStopped = 1.0

	if lastLocation.ID == 0 {
		return true, "initial"
	}

	if distance >= minDistanceForSave {
		return true, "move"
	}

	if lastLocation.IsMoving && speed < maxSpeedForStopped && timeDiff >= minTimeDiffForSave {
		return true, "stopped"
	}

	if !lastLocation.IsMoving && speed >= minSpeedForMoving && timeDiff >= minTimeDiffForSave {
		return true, "started"
	}

	const periodicSaveInterval = 60 * time.Second
	if time.Since(lastLocation.Timestamp) >= periodicSaveInterval {
		return true, "periodic"
	}

	return false, "insignificant"
}

// calculateDistance is the haversine distance in meters.
func calculateDistance(lat1, lon1, lat2, lon2 float64) float64 {
	const R = 6371000 // Earth's radius in meters.
	dLat := toRadians(lat2 - lat1)
	dLon := toRadians(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return R * c
}

// calculateBearing is the initial bearing in degrees.
func calculateBearing(lat1, lon1, lat2, lon2 float64) float64 {
	lat1Rad := toRadians(lat1)
	lon1Rad := toRadians(lon1)
	lat2Rad := toRadians(lat2)
	lon2Rad := toRadians(lon2)

	deltaLon := lon2Rad - lon1Rad

	y := math.Sin(deltaLon) * math.Cos(lat2Rad)
	x := math.Cos(lat1Rad)*math.Sin(lat2Rad) -
		math.Sin(lat1Rad)*math.Cos(lat2Rad)*math.Cos(deltaLon)
	bearingDeg := toDegrees(math.Atan2(y, x))

	return math.Mod(bearingDeg+360, 360)
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

func toDegrees(rad float64) float64 {
	return rad * 180 / math.Pi
}
