package services

import (
	"errors"
	"math"
	"time"

	"gorm.io/gorm"

	"schoolbus_tracker/internal/models"
)

// JourneyTracker owns the per-bus-per-day journey record and its four
// checkpoint events. Events are stamps, not a strict order: a driver
// may skip the school visit some days, so any event type is accepted
// at any time and simply fills its field.
type JourneyTracker struct {
	db  *gorm.DB
	now func() time.Time
}

func NewJourneyTracker(db *gorm.DB) *JourneyTracker {
	return &JourneyTracker{db: db, now: time.Now}
}

// StartJourney opens today's journey for the bus, stamping the
// homebase departure. Idempotent: when a journey already exists for
// (bus, today) the existing row is returned unchanged.
func (t *JourneyTracker) StartJourney(busID, driverID, routeID, companyID uint, homebaseAddress string) (*models.Journey, error) {
	now := t.now()
	today := dayKey(now)

	var existing models.Journey
	err := t.db.Where("bus_id = ? AND journey_date = ?", busID, today).First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	journey := models.Journey{
		CompanyID:        companyID,
		BusID:            busID,
		DriverID:         driverID,
		RouteID:          routeID,
		JourneyDate:      today,
		HomebaseAddress:  homebaseAddress,
		DepartHomebaseAt: &now,
	}
	if err := t.db.Create(&journey).Error; err != nil {
		// A concurrent start may have won the unique (bus, day) race;
		// fall back to the row it inserted.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			if ferr := t.db.Where("bus_id = ? AND journey_date = ?", busID, today).First(&existing).Error; ferr == nil {
				return &existing, nil
			}
		}
		return nil, err
	}
	return &journey, nil
}

// RecordEvent stamps one of the four checkpoint fields on today's
// journey. Fails with NotFoundError when no journey exists yet for
// (bus, today); callers must StartJourney first. Only arrive_homebase
// has a computed side effect: total duration, when the homebase
// departure was stamped.
func (t *JourneyTracker) RecordEvent(busID uint, eventType string, schoolID *uint) (*models.Journey, error) {
	now := t.now()

	var journey models.Journey
	err := t.db.Where("bus_id = ? AND journey_date = ?", busID, dayKey(now)).First(&journey).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Resource: "journey for bus", ID: busID}
		}
		return nil, err
	}

	switch eventType {
	case models.EventDepartHomebase:
		journey.DepartHomebaseAt = &now
	case models.EventArriveSchool:
		journey.ArriveSchoolAt = &now
		if schoolID != nil {
			journey.SchoolID = schoolID
		}
	case models.EventDepartSchool:
		journey.DepartSchoolAt = &now
	case models.EventArriveHomebase:
		journey.ArriveHomebaseAt = &now
		if journey.DepartHomebaseAt != nil {
			journey.TotalDurationMinutes = int(math.Round(now.Sub(*journey.DepartHomebaseAt).Minutes()))
		}
	default:
		return nil, &ValidationError{Message: "unknown journey event type: " + eventType}
	}

	if err := t.db.Save(&journey).Error; err != nil {
		return nil, err
	}
	return &journey, nil
}

// GetTodayJourney returns today's journey for the bus, or a
// NotFoundError when none has been started.
func (t *JourneyTracker) GetTodayJourney(busID uint) (*models.Journey, error) {
	var journey models.Journey
	err := t.db.Where("bus_id = ? AND journey_date = ?", busID, dayKey(t.now())).First(&journey).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Resource: "journey for bus", ID: busID}
		}
		return nil, err
	}
	return &journey, nil
}
