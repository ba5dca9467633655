package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"schoolbus_tracker/internal/models"
)

// StopProgressService records stop arrivals, fans notifications out to
// guardians, and answers "how many stops away is the bus" queries.
type StopProgressService struct {
	db       *gorm.DB
	notifier Notifier
	now      func() time.Time
}

func NewStopProgressService(db *gorm.DB, notifier Notifier) *StopProgressService {
	return &StopProgressService{db: db, notifier: notifier, now: time.Now}
}

// StopsAway is the answer to a guardian's "where is the bus" query.
type StopsAway struct {
	HasArrived bool `json:"has_arrived"`
	StopsAway  int  `json:"stops_away"`
}

// MarkStopCompleted records arrival at a route stop. The route must
// belong to the caller's company and the stop must belong to the route
// with the submitted sequence. The (stop, day) pair is unique: a
// resubmission returns the existing completion row unchanged,
// created=false, and sends no second round of notifications. On first
// insert, every guardian of every student assigned to the stop gets
// one notification carrying the stop address and the student's name.
func (s *StopProgressService) MarkStopCompleted(stopID, routeID, driverID, busID, companyID uint, stopSequence int) (*models.StopCompletion, bool, error) {
	now := s.now()
	today := dayKey(now)

	if _, err := s.loadCompanyRoute(companyID, routeID); err != nil {
		return nil, false, err
	}

	var stop models.Stop
	if err := s.db.First(&stop, stopID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, &NotFoundError{Resource: "stop", ID: stopID}
		}
		return nil, false, err
	}
	if stop.RouteID != routeID {
		return nil, false, &ValidationError{Message: "stop does not belong to the submitted route"}
	}
	if stop.Seq != stopSequence {
		return nil, false, &ValidationError{Message: "stop sequence does not match the submitted value"}
	}

	var existing models.StopCompletion
	err := s.db.Where("stop_id = ? AND completion_date = ?", stopID, today).First(&existing).Error
	if err == nil {
		return &existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	completion := models.StopCompletion{
		CompanyID:      companyID,
		RouteID:        routeID,
		StopID:         stopID,
		DriverID:       driverID,
		BusID:          busID,
		StopSequence:   stopSequence,
		CompletionDate: today,
		ArrivedAt:      now,
	}
	if err := s.db.Create(&completion).Error; err != nil {
		// Lost a race against a concurrent submission; the unique
		// (stop, day) index kept the table clean, return the winner.
		if isDuplicateKey(err) {
			if ferr := s.db.Where("stop_id = ? AND completion_date = ?", stopID, today).First(&existing).Error; ferr == nil {
				return &existing, false, nil
			}
		}
		return nil, false, err
	}

	s.notifyGuardians(&stop, routeID, driverID, companyID)

	return &completion, true, nil
}

// notifyGuardians emits one notification per (student, guardian) pair
// for the stop. Fan-out failures are logged, never surfaced: arrival
// is already recorded and a missed message must not undo that.
func (s *StopProgressService) notifyGuardians(stop *models.Stop, routeID, driverID, companyID uint) {
	var students []models.Student
	if err := s.db.Preload("Guardians").Where("stop_id = ?", stop.ID).Find(&students).Error; err != nil {
		logrus.WithError(err).WithField("stop_id", stop.ID).Error("Failed to resolve students for stop arrival fan-out")
		return
	}

	address := stop.Address
	if address == "" {
		address = stop.Name
	}

	for _, student := range students {
		for _, guardian := range student.Guardians {
			recipientID := guardian.ID
			rID := routeID
			message := fmt.Sprintf("The bus has arrived at %s. %s will be picked up shortly.", address, student.Name)
			err := s.notifier.CreateSystemNotification(
				companyID, driverID, "driver", "guardian",
				&recipientID, &rID,
				"Bus arrived at stop", message,
				models.NotificationStopArrival,
			)
			if err != nil {
				logrus.WithError(err).WithFields(logrus.Fields{
					"stop_id":     stop.ID,
					"student_id":  student.ID,
					"guardian_id": guardian.ID,
				}).Error("Failed to create stop arrival notification")
			}
		}
	}
}

// GetTodayCompletedStops lists today's completions for the route in
// sequence order. The route must belong to the caller's company.
func (s *StopProgressService) GetTodayCompletedStops(companyID, routeID uint) ([]models.StopCompletion, error) {
	if _, err := s.loadCompanyRoute(companyID, routeID); err != nil {
		return nil, err
	}
	return s.todayCompletions(routeID)
}

func (s *StopProgressService) todayCompletions(routeID uint) ([]models.StopCompletion, error) {
	var completions []models.StopCompletion
	err := s.db.Where("route_id = ? AND completion_date = ?", routeID, dayKey(s.now())).
		Order("stop_sequence asc").
		Find(&completions).Error
	return completions, err
}

// ResetRouteStops clears today's completions for the route, used when
// a driver restarts a run (e.g. the afternoon run on the same day).
// The route must belong to the caller's company; other days are never
// touched.
func (s *StopProgressService) ResetRouteStops(companyID, routeID uint) error {
	if _, err := s.loadCompanyRoute(companyID, routeID); err != nil {
		return err
	}
	return s.db.Unscoped().
		Where("route_id = ? AND completion_date = ?", routeID, dayKey(s.now())).
		Delete(&models.StopCompletion{}).Error
}

// loadCompanyRoute fetches a route and enforces the tenant boundary:
// a route outside the caller's company reads as missing.
func (s *StopProgressService) loadCompanyRoute(companyID, routeID uint) (*models.Route, error) {
	var route models.Route
	if err := s.db.First(&route, routeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Resource: "route", ID: routeID}
		}
		return nil, err
	}
	if route.CompanyID != companyID {
		return nil, &NotFoundError{Resource: "route", ID: routeID}
	}
	return &route, nil
}

// ComputeStopsAway reports how many uncompleted stops remain before
// the student's own, or HasArrived when the student's stop already has
// a completion today. Pure read, no side effects.
func (s *StopProgressService) ComputeStopsAway(studentID uint) (*StopsAway, error) {
	var student models.Student
	if err := s.db.First(&student, studentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Resource: "student", ID: studentID}
		}
		return nil, err
	}
	if student.StopID == nil || student.RouteID == nil {
		return nil, &ValidationError{Message: "student has no stop or route assigned"}
	}

	var stop models.Stop
	if err := s.db.First(&stop, *student.StopID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Resource: "stop", ID: *student.StopID}
		}
		return nil, err
	}

	completions, err := s.todayCompletions(*student.RouteID)
	if err != nil {
		return nil, err
	}

	lastCompleted := 0
	for _, c := range completions {
		if c.StopID == stop.ID {
			return &StopsAway{HasArrived: true, StopsAway: 0}, nil
		}
		if c.StopSequence > lastCompleted {
			lastCompleted = c.StopSequence
		}
	}

	away := stop.Seq - lastCompleted - 1
	if away < 0 {
		away = 0
	}
	return &StopsAway{StopsAway: away}, nil
}

// MarkAttendance upserts today's roll call row for the student.
func (s *StopProgressService) MarkAttendance(studentID, driverID, companyID uint, status string) (*models.Attendance, error) {
	switch status {
	case models.AttendancePresent, models.AttendanceAbsent, models.AttendanceDroppedOff:
	default:
		return nil, &ValidationError{Message: "invalid attendance status: " + status}
	}

	var student models.Student
	if err := s.db.First(&student, studentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Resource: "student", ID: studentID}
		}
		return nil, err
	}
	if student.CompanyID != companyID {
		return nil, &NotFoundError{Resource: "student", ID: studentID}
	}

	now := s.now()
	today := dayKey(now)

	var attendance models.Attendance
	err := s.db.Where("student_id = ? AND attendance_date = ?", studentID, today).First(&attendance).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		attendance = models.Attendance{
			CompanyID:      companyID,
			StudentID:      studentID,
			DriverID:       driverID,
			RouteID:        student.RouteID,
			AttendanceDate: today,
			Status:         status,
			MarkedAt:       now,
		}
		if err := s.db.Create(&attendance).Error; err != nil {
			return nil, err
		}
		return &attendance, nil
	}
	if err != nil {
		return nil, err
	}

	attendance.Status = status
	attendance.DriverID = driverID
	attendance.MarkedAt = now
	if err := s.db.Save(&attendance).Error; err != nil {
		return nil, err
	}
	return &attendance, nil
}

// isDuplicateKey matches unique-violation errors from both the
// postgres driver (code 23505) and gorm's translated sentinel.
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pq.Error
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	return false
}
