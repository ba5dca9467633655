package services

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"schoolbus_tracker/internal/models"
)

// AssignmentManager enforces the exclusivity invariant: one driver
// holds at most one bus and one route at any instant. It is duty-blind
// on purpose; whether an off-duty holder's bus may be taken over is
// the duty service's call.
type AssignmentManager struct {
	db *gorm.DB
}

func NewAssignmentManager(db *gorm.DB) *AssignmentManager {
	return &AssignmentManager{db: db}
}

// BindDriverToBus gives the driver exclusive hold of the bus. Any bus
// the driver previously held is released (driver cleared, status set
// to idle) before the new hold is written, so the one-bus-per-driver
// invariant needs no separate uniqueness check. The target bus's
// status is left untouched; status transitions belong to the duty
// service.
//
// A bus already held by a different driver is rejected with a
// ConflictError naming the bus.
func (m *AssignmentManager) BindDriverToBus(driverID, busID uint) error {
	var bus models.Bus
	if err := m.db.First(&bus, busID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &NotFoundError{Resource: "bus", ID: busID}
		}
		return err
	}

	if bus.DriverID != nil && *bus.DriverID != driverID {
		return &ConflictError{
			Resource: "bus",
			ID:       bus.ID,
			Message:  fmt.Sprintf("bus %s (#%d) is already assigned to another driver", bus.NumberPlate, bus.ID),
		}
	}

	// Release any other bus this driver currently holds.
	if err := m.releaseBuses(driverID, bus.ID); err != nil {
		return err
	}

	bus.DriverID = &driverID
	return m.db.Save(&bus).Error
}

// UnbindDriverFromBus releases whichever bus the driver holds, setting
// it idle. A driver holding no bus is a successful no-op.
func (m *AssignmentManager) UnbindDriverFromBus(driverID uint) error {
	return m.releaseBuses(driverID, 0)
}

// releaseBuses clears the hold on every bus the driver has, except the
// one identified by keepID (0 keeps nothing).
func (m *AssignmentManager) releaseBuses(driverID, keepID uint) error {
	var held []models.Bus
	if err := m.db.Where("driver_id = ?", driverID).Find(&held).Error; err != nil {
		return err
	}
	for i := range held {
		if held[i].ID == keepID {
			continue
		}
		held[i].DriverID = nil
		held[i].Status = models.BusIdle
		held[i].CurrentRouteID = nil
		if err := m.db.Save(&held[i]).Error; err != nil {
			return err
		}
	}
	return nil
}

// BindDriverToRoute makes the driver the route's active driver,
// releasing any route the driver previously held. No status side
// effect; routes have none.
func (m *AssignmentManager) BindDriverToRoute(driverID, routeID uint) error {
	var route models.Route
	if err := m.db.First(&route, routeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &NotFoundError{Resource: "route", ID: routeID}
		}
		return err
	}

	if route.DriverID != nil && *route.DriverID != driverID {
		return &ConflictError{
			Resource: "route",
			ID:       route.ID,
			Message:  fmt.Sprintf("route %s (#%d) already has an active driver", route.Name, route.ID),
		}
	}

	if err := m.db.Model(&models.Route{}).
		Where("driver_id = ? AND id <> ?", driverID, route.ID).
		Update("driver_id", nil).Error; err != nil {
		return err
	}

	route.DriverID = &driverID
	if err := m.db.Save(&route).Error; err != nil {
		return err
	}

	return m.db.Model(&models.Driver{}).
		Where("id = ?", driverID).
		Update("assigned_route_id", route.ID).Error
}

// UnbindDriverFromRoute clears the driver's route hold on both sides.
// Idempotent.
func (m *AssignmentManager) UnbindDriverFromRoute(driverID uint) error {
	if err := m.db.Model(&models.Route{}).
		Where("driver_id = ?", driverID).
		Update("driver_id", nil).Error; err != nil {
		return err
	}
	return m.db.Model(&models.Driver{}).
		Where("id = ?", driverID).
		Update("assigned_route_id", nil).Error
}
