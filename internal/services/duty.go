package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"schoolbus_tracker/internal/models"
)

// DutyService drives the check-in / check-out lifecycle. The duty
// status flip is the primary effect; assignment binding, bus updates,
// journey events and shift report synthesis are secondary steps that
// fail independently. A secondary failure is logged, recorded on the
// Outcome and skipped, never rolled back: a driver must not be left
// stuck on duty because report generation broke.
type DutyService struct {
	db          *gorm.DB
	assignments *AssignmentManager
	journeys    *JourneyTracker
	now         func() time.Time
}

func NewDutyService(db *gorm.DB, assignments *AssignmentManager, journeys *JourneyTracker) *DutyService {
	return &DutyService{
		db:          db,
		assignments: assignments,
		journeys:    journeys,
		now:         time.Now,
	}
}

// StepResult is the observed fate of one secondary step.
type StepResult struct {
	Name string
	Err  error
}

// Outcome is the structured result of a check-in or check-out: the
// primary effect succeeded (or the call errored), and each secondary
// step either ran clean or carries its failure.
type Outcome struct {
	Driver *models.Driver
	Steps  []StepResult
}

// FailedSteps lists the names of secondary steps that did not run
// clean.
func (o *Outcome) FailedSteps() []string {
	var failed []string
	for _, s := range o.Steps {
		if s.Err != nil {
			failed = append(failed, s.Name)
		}
	}
	return failed
}

func (o *Outcome) runStep(name string, fn func() error) {
	err := fn()
	if err != nil {
		logrus.WithError(err).WithField("step", name).Warn("Duty lifecycle secondary step failed; continuing")
	}
	o.Steps = append(o.Steps, StepResult{Name: name, Err: err})
}

// CheckInInput is the inspection form a driver submits when going on
// duty. The target driver may differ from the authenticated caller:
// shared-device kiosks select which driver record to activate.
type CheckInInput struct {
	DriverID        uint
	BusID           uint
	RouteID         uint
	FuelLevel       string
	InteriorClean   bool
	ExteriorClean   bool
	HomebaseAddress string
}

// CheckIn puts the driver on duty and best-effort wires up the
// secondary state: route binding, bus binding, bus status/fuel, and
// today's journey. Only validation and the duty flip itself can fail
// the call.
func (s *DutyService) CheckIn(callerCompanyID uint, input CheckInInput) (*Outcome, error) {
	driver, err := s.loadCompanyDriver(callerCompanyID, input.DriverID)
	if err != nil {
		return nil, err
	}

	if !models.ValidFuelLevel(input.FuelLevel) {
		return nil, &ValidationError{Message: "invalid fuel level: " + input.FuelLevel}
	}

	// Primary effect: inspection snapshot + duty flip.
	now := s.now()
	driver.FuelLevel = input.FuelLevel
	driver.InteriorClean = input.InteriorClean
	driver.ExteriorClean = input.ExteriorClean
	driver.CheckInTime = &now
	driver.IsOnDuty = true
	driver.DutyStartTime = &now
	if err := s.db.Save(driver).Error; err != nil {
		return nil, err
	}

	outcome := &Outcome{Driver: driver}

	outcome.runStep("bind_route", func() error {
		return s.assignments.BindDriverToRoute(driver.ID, input.RouteID)
	})

	busBound := false
	outcome.runStep("bind_bus", func() error {
		if err := s.bindBusResolvingOffDutyHolder(driver.ID, input.BusID); err != nil {
			return err
		}
		busBound = true
		return nil
	})

	// The bus update and journey start only make sense on a bus this
	// driver actually holds; a failed bind must not touch someone
	// else's bus.
	if busBound {
		outcome.runStep("update_bus", func() error {
			routeID := input.RouteID
			return s.db.Model(&models.Bus{}).
				Where("id = ?", input.BusID).
				Updates(map[string]interface{}{
					"fuel_level":       input.FuelLevel,
					"status":           models.BusOnRoute,
					"current_route_id": routeID,
				}).Error
		})

		outcome.runStep("start_journey", func() error {
			_, err := s.journeys.StartJourney(input.BusID, driver.ID, input.RouteID, driver.CompanyID, input.HomebaseAddress)
			return err
		})
	}

	return outcome, nil
}

// bindBusResolvingOffDutyHolder applies the duty-aware takeover rule
// the assignment manager deliberately doesn't know about: a bus held
// by a driver who is off duty counts as free, so the stale hold is
// released before binding. An on-duty holder still means conflict.
func (s *DutyService) bindBusResolvingOffDutyHolder(driverID, busID uint) error {
	var bus models.Bus
	if err := s.db.First(&bus, busID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &NotFoundError{Resource: "bus", ID: busID}
		}
		return err
	}

	if !bus.AssignableStatus() {
		return &ConflictError{
			Resource: "bus",
			ID:       bus.ID,
			Message:  fmt.Sprintf("bus %s (#%d) is %s and not eligible for assignment", bus.NumberPlate, bus.ID, bus.Status),
		}
	}

	if bus.DriverID != nil && *bus.DriverID != driverID {
		var holder models.Driver
		if err := s.db.First(&holder, *bus.DriverID).Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if holder.ID != 0 && holder.IsOnDuty {
			return &ConflictError{
				Resource: "bus",
				ID:       bus.ID,
				Message:  fmt.Sprintf("bus %s (#%d) is already assigned to an on-duty driver", bus.NumberPlate, bus.ID),
			}
		}
		// Stale hold by an off-duty driver; release it.
		if err := s.assignments.UnbindDriverFromBus(*bus.DriverID); err != nil {
			return err
		}
	}

	return s.assignments.BindDriverToBus(driverID, busID)
}

// SetDutyStatus flips the driver's duty flag. Going off duty runs the
// check-out chain; going on duty without an inspection is the kiosk
// "resume" path and touches nothing but the flag and start time.
func (s *DutyService) SetDutyStatus(callerCompanyID, driverID uint, onDuty bool) (*Outcome, error) {
	driver, err := s.loadCompanyDriver(callerCompanyID, driverID)
	if err != nil {
		return nil, err
	}

	if onDuty {
		if !driver.IsOnDuty {
			now := s.now()
			driver.IsOnDuty = true
			driver.DutyStartTime = &now
			if err := s.db.Save(driver).Error; err != nil {
				return nil, err
			}
		}
		return &Outcome{Driver: driver}, nil
	}

	return s.checkOut(driver)
}

// checkOut synthesizes the shift report, closes the journey and
// releases assignments, then flips the driver off duty. The flip
// always runs; each earlier step is best-effort. A driver who is
// already off duty gets the flip re-applied and nothing else, which
// also makes a retried check-out harmless: the report step is gated
// on duty state the second call no longer has.
func (s *DutyService) checkOut(driver *models.Driver) (*Outcome, error) {
	outcome := &Outcome{Driver: driver}
	now := s.now()

	wasOnDuty := driver.IsOnDuty && driver.DutyStartTime != nil

	var heldBus models.Bus
	hasBus := s.db.Where("driver_id = ?", driver.ID).First(&heldBus).Error == nil

	if wasOnDuty {
		outcome.runStep("shift_report", func() error {
			return s.createShiftReport(driver, &heldBus, hasBus, now)
		})

		if hasBus {
			outcome.runStep("close_journey", func() error {
				_, err := s.journeys.RecordEvent(heldBus.ID, models.EventArriveHomebase, nil)
				var nf *NotFoundError
				if errors.As(err, &nf) {
					// No journey was ever started today; nothing to close.
					return nil
				}
				return err
			})
		}
	}

	outcome.runStep("unbind_bus", func() error {
		return s.assignments.UnbindDriverFromBus(driver.ID)
	})

	outcome.runStep("unbind_route", func() error {
		return s.assignments.UnbindDriverFromRoute(driver.ID)
	})

	// Primary effect: clear the snapshot and flip off duty. Runs even
	// when every step above failed.
	driver.IsOnDuty = false
	driver.DutyStartTime = nil
	driver.AssignedRouteID = nil
	driver.FuelLevel = ""
	driver.InteriorClean = false
	driver.ExteriorClean = false
	driver.CheckInTime = nil
	if err := s.db.Model(driver).Select(
		"is_on_duty", "duty_start_time", "assigned_route_id",
		"fuel_level", "interior_clean", "exterior_clean", "check_in_time",
	).Updates(driver).Error; err != nil {
		return nil, err
	}

	return outcome, nil
}

// createShiftReport writes the immutable end-of-duty summary from
// today's journeys, completions and attendance.
func (s *DutyService) createShiftReport(driver *models.Driver, bus *models.Bus, hasBus bool, now time.Time) error {
	today := dayKey(now)
	duration := int(now.Sub(*driver.DutyStartTime).Minutes())

	var schoolsVisited int64
	s.db.Model(&models.Journey{}).
		Where("driver_id = ? AND journey_date = ? AND arrive_school_at IS NOT NULL", driver.ID, today).
		Count(&schoolsVisited)

	var stopsCompleted int64
	s.db.Model(&models.StopCompletion{}).
		Where("driver_id = ? AND completion_date = ?", driver.ID, today).
		Count(&stopsCompleted)

	var present, dropped int64
	s.db.Model(&models.Attendance{}).
		Where("driver_id = ? AND attendance_date = ? AND status = ?", driver.ID, today, models.AttendancePresent).
		Count(&present)
	s.db.Model(&models.Attendance{}).
		Where("driver_id = ? AND attendance_date = ? AND status = ?", driver.ID, today, models.AttendanceDroppedOff).
		Count(&dropped)

	report := models.ShiftReport{
		CompanyID:       driver.CompanyID,
		DriverID:        driver.ID,
		RouteID:         driver.AssignedRouteID,
		DutyStartTime:   *driver.DutyStartTime,
		DutyEndTime:     now,
		DurationMinutes: duration,
		StartFuelLevel:  driver.FuelLevel,
		SchoolsVisited:  int(schoolsVisited),
		StudentsPresent: int(present),
		StudentsDropped: int(dropped),
		StopsCompleted:  int(stopsCompleted),
	}
	if hasBus {
		report.BusID = bus.ID
		report.EndFuelLevel = bus.FuelLevel
	}
	report.Summary = fmt.Sprintf(
		"Shift of %d min: %d stops completed, %d schools visited, %d students picked up, %d dropped off.",
		duration, report.StopsCompleted, report.SchoolsVisited, report.StudentsPresent, report.StudentsDropped,
	)

	return s.db.Create(&report).Error
}

// ActivateRoute resumes a route without a full re-inspection: the
// driver's bus goes on_route with the route set. The snapshot is not
// touched.
func (s *DutyService) ActivateRoute(callerCompanyID, driverID, routeID uint) (*models.Bus, error) {
	return s.toggleRoute(callerCompanyID, driverID, routeID, true)
}

// DeactivateRoute pauses a route: the driver's bus goes idle and the
// current route is cleared.
func (s *DutyService) DeactivateRoute(callerCompanyID, driverID, routeID uint) (*models.Bus, error) {
	return s.toggleRoute(callerCompanyID, driverID, routeID, false)
}

func (s *DutyService) toggleRoute(callerCompanyID, driverID, routeID uint, active bool) (*models.Bus, error) {
	driver, err := s.loadCompanyDriver(callerCompanyID, driverID)
	if err != nil {
		return nil, err
	}

	var bus models.Bus
	if err := s.db.Where("driver_id = ?", driver.ID).First(&bus).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Resource: "bus for driver", ID: driver.ID}
		}
		return nil, err
	}

	if active {
		bus.Status = models.BusOnRoute
		bus.CurrentRouteID = &routeID
	} else {
		bus.Status = models.BusIdle
		bus.CurrentRouteID = nil
	}
	if err := s.db.Save(&bus).Error; err != nil {
		return nil, err
	}
	return &bus, nil
}

// AvailableBuses lists the company's buses eligible for check-in:
// assignable status and either unheld or held by an off-duty driver.
func (s *DutyService) AvailableBuses(companyID uint) ([]models.Bus, error) {
	var buses []models.Bus
	err := s.db.Where("company_id = ? AND status NOT IN ?", companyID,
		[]string{models.BusMaintenance, models.BusInactive}).
		Find(&buses).Error
	if err != nil {
		return nil, err
	}

	available := make([]models.Bus, 0, len(buses))
	for _, bus := range buses {
		if bus.DriverID == nil {
			available = append(available, bus)
			continue
		}
		var holder models.Driver
		if err := s.db.First(&holder, *bus.DriverID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				available = append(available, bus)
				continue
			}
			return nil, err
		}
		if !holder.IsOnDuty {
			available = append(available, bus)
		}
	}
	return available, nil
}

// loadCompanyDriver fetches a driver profile and enforces the tenant
// boundary: callers only ever see their own company's drivers.
func (s *DutyService) loadCompanyDriver(callerCompanyID, driverID uint) (*models.Driver, error) {
	var driver models.Driver
	if err := s.db.Preload("User").First(&driver, driverID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Resource: "driver", ID: driverID}
		}
		return nil, err
	}
	if driver.CompanyID != callerCompanyID {
		return nil, &NotFoundError{Resource: "driver", ID: driverID}
	}
	if driver.User.ID != 0 && driver.User.Role != "driver" {
		return nil, &UnauthorizedError{Message: "target user is not a driver"}
	}
	return &driver, nil
}
