package services

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"schoolbus_tracker/internal/models"
)

func TestMarkStopCompletedNotifiesEveryGuardianOnce(t *testing.T) {
	db := newTestDB(t)
	company := seedCompany(t, db)
	driver := seedDriver(t, db, company.ID, "amina")
	bus := seedBus(t, db, company.ID, "KDA 020A")
	route := seedRoute(t, db, company.ID, 3)
	stop1 := route.Stops[0]

	g1 := seedGuardian(t, db, "wanjiru")
	g2 := seedGuardian(t, db, "otieno")
	g3 := seedGuardian(t, db, "njeri")
	// Two riders at stop 1, one with two guardians.
	seedStudent(t, db, company.ID, "Lilian", route.ID, stop1.ID, g1, g2)
	seedStudent(t, db, company.ID, "Mark", route.ID, stop1.ID, g3)
	// A rider at a different stop must not be notified.
	seedStudent(t, db, company.ID, "Faith", route.ID, route.Stops[1].ID, g3)

	notifier := &fakeNotifier{}
	svc := NewStopProgressService(db, notifier)
	svc.now = fixedClock(time.Date(2026, 3, 9, 7, 5, 0, 0, time.UTC))

	completion, created, err := svc.MarkStopCompleted(stop1.ID, route.ID, driver.ID, bus.ID, company.ID, stop1.Seq)
	if err != nil {
		t.Fatalf("mark: %v", err)
	}
	if !created {
		t.Fatal("created = false on first submission")
	}
	if completion.CompletionDate != "2026-03-09" {
		t.Fatalf("completion_date = %q, want 2026-03-09", completion.CompletionDate)
	}

	if len(notifier.calls) != 3 {
		t.Fatalf("notifications sent = %d, want 3", len(notifier.calls))
	}
	var lilianMsgs int
	for _, call := range notifier.calls {
		if call.Type != models.NotificationStopArrival {
			t.Fatalf("notification type = %q, want %q", call.Type, models.NotificationStopArrival)
		}
		if !strings.Contains(call.Message, stop1.Address) {
			t.Fatalf("message %q missing stop address %q", call.Message, stop1.Address)
		}
		if strings.Contains(call.Message, "Lilian") {
			lilianMsgs++
		}
	}
	if lilianMsgs != 2 {
		t.Fatalf("messages naming Lilian = %d, want 2 (one per guardian)", lilianMsgs)
	}

	// Resubmission: same row back, no second fan-out.
	again, created, err := svc.MarkStopCompleted(stop1.ID, route.ID, driver.ID, bus.ID, company.ID, stop1.Seq)
	if err != nil {
		t.Fatalf("re-mark: %v", err)
	}
	if created {
		t.Fatal("created = true on resubmission")
	}
	if again.ID != completion.ID {
		t.Fatalf("resubmission returned row %d, want %d", again.ID, completion.ID)
	}
	if len(notifier.calls) != 3 {
		t.Fatalf("notifications after resubmission = %d, want still 3", len(notifier.calls))
	}
}

func TestMarkStopCompletedMissingStop(t *testing.T) {
	db := newTestDB(t)
	company := seedCompany(t, db)
	driver := seedDriver(t, db, company.ID, "amina")
	bus := seedBus(t, db, company.ID, "KDA 021B")
	route := seedRoute(t, db, company.ID, 1)

	svc := NewStopProgressService(db, &fakeNotifier{})

	_, _, err := svc.MarkStopCompleted(9999, route.ID, driver.ID, bus.ID, company.ID, 1)
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("err = %v, want NotFoundError", err)
	}
}

func TestGetTodayCompletedStopsOrdered(t *testing.T) {
	db := newTestDB(t)
	company := seedCompany(t, db)
	driver := seedDriver(t, db, company.ID, "amina")
	bus := seedBus(t, db, company.ID, "KDA 022C")
	route := seedRoute(t, db, company.ID, 3)

	svc := NewStopProgressService(db, &fakeNotifier{})
	svc.now = fixedClock(time.Date(2026, 3, 9, 7, 5, 0, 0, time.UTC))

	// Completed out of order; listing comes back in sequence order.
	for _, i := range []int{1, 0} {
		stop := route.Stops[i]
		if _, _, err := svc.MarkStopCompleted(stop.ID, route.ID, driver.ID, bus.ID, company.ID, stop.Seq); err != nil {
			t.Fatalf("mark stop %d: %v", stop.Seq, err)
		}
	}

	completions, err := svc.GetTodayCompletedStops(company.ID, route.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(completions) != 2 {
		t.Fatalf("completions = %d, want 2", len(completions))
	}
	if completions[0].StopSequence != 1 || completions[1].StopSequence != 2 {
		t.Fatalf("sequence order = [%d %d], want [1 2]", completions[0].StopSequence, completions[1].StopSequence)
	}
}

func TestResetRouteStopsClearsOnlyToday(t *testing.T) {
	db := newTestDB(t)
	company := seedCompany(t, db)
	driver := seedDriver(t, db, company.ID, "amina")
	bus := seedBus(t, db, company.ID, "KDA 023D")
	route := seedRoute(t, db, company.ID, 2)
	stop1 := route.Stops[0]

	svc := NewStopProgressService(db, &fakeNotifier{})

	day1 := time.Date(2026, 3, 9, 7, 5, 0, 0, time.UTC)
	svc.now = fixedClock(day1)
	if _, _, err := svc.MarkStopCompleted(stop1.ID, route.ID, driver.ID, bus.ID, company.ID, stop1.Seq); err != nil {
		t.Fatalf("mark day1: %v", err)
	}

	day2 := day1.Add(24 * time.Hour)
	svc.now = fixedClock(day2)
	if _, _, err := svc.MarkStopCompleted(stop1.ID, route.ID, driver.ID, bus.ID, company.ID, stop1.Seq); err != nil {
		t.Fatalf("mark day2: %v", err)
	}

	if err := svc.ResetRouteStops(company.ID, route.ID); err != nil {
		t.Fatalf("reset: %v", err)
	}

	today, err := svc.GetTodayCompletedStops(company.ID, route.ID)
	if err != nil {
		t.Fatalf("list day2: %v", err)
	}
	if len(today) != 0 {
		t.Fatalf("day2 completions after reset = %d, want 0", len(today))
	}

	svc.now = fixedClock(day1)
	yesterday, err := svc.GetTodayCompletedStops(company.ID, route.ID)
	if err != nil {
		t.Fatalf("list day1: %v", err)
	}
	if len(yesterday) != 1 {
		t.Fatalf("day1 completions = %d, want 1 untouched", len(yesterday))
	}

	// After a reset the stop can be completed again the same day.
	svc.now = fixedClock(day2)
	_, created, err := svc.MarkStopCompleted(stop1.ID, route.ID, driver.ID, bus.ID, company.ID, stop1.Seq)
	if err != nil {
		t.Fatalf("re-mark after reset: %v", err)
	}
	if !created {
		t.Fatal("created = false after reset, want fresh row")
	}
}

func TestComputeStopsAway(t *testing.T) {
	db := newTestDB(t)
	company := seedCompany(t, db)
	driver := seedDriver(t, db, company.ID, "amina")
	bus := seedBus(t, db, company.ID, "KDA 024E")
	route := seedRoute(t, db, company.ID, 4)
	guardian := seedGuardian(t, db, "wanjiru")
	student := seedStudent(t, db, company.ID, "Lilian", route.ID, route.Stops[2].ID, guardian)

	svc := NewStopProgressService(db, &fakeNotifier{})
	svc.now = fixedClock(time.Date(2026, 3, 9, 7, 5, 0, 0, time.UTC))

	// Nothing completed: stops 1 and 2 are still ahead of stop 3.
	away, err := svc.ComputeStopsAway(student.ID)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if away.HasArrived || away.StopsAway != 2 {
		t.Fatalf("got %+v, want 2 stops away", away)
	}

	stop1 := route.Stops[0]
	if _, _, err := svc.MarkStopCompleted(stop1.ID, route.ID, driver.ID, bus.ID, company.ID, stop1.Seq); err != nil {
		t.Fatalf("mark stop1: %v", err)
	}

	away, err = svc.ComputeStopsAway(student.ID)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if away.HasArrived || away.StopsAway != 1 {
		t.Fatalf("got %+v, want 1 stop away", away)
	}

	stop3 := route.Stops[2]
	if _, _, err := svc.MarkStopCompleted(stop3.ID, route.ID, driver.ID, bus.ID, company.ID, stop3.Seq); err != nil {
		t.Fatalf("mark stop3: %v", err)
	}

	away, err = svc.ComputeStopsAway(student.ID)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if !away.HasArrived || away.StopsAway != 0 {
		t.Fatalf("got %+v, want arrived", away)
	}
}

func TestComputeStopsAwayUnassignedStudent(t *testing.T) {
	db := newTestDB(t)
	company := seedCompany(t, db)

	student := models.Student{CompanyID: company.ID, Name: "Drifter"}
	if err := db.Create(&student).Error; err != nil {
		t.Fatalf("seed student: %v", err)
	}

	svc := NewStopProgressService(db, &fakeNotifier{})

	_, err := svc.ComputeStopsAway(student.ID)
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
}

func TestMarkAttendanceUpsert(t *testing.T) {
	db := newTestDB(t)
	company := seedCompany(t, db)
	driver := seedDriver(t, db, company.ID, "amina")
	route := seedRoute(t, db, company.ID, 1)
	guardian := seedGuardian(t, db, "wanjiru")
	student := seedStudent(t, db, company.ID, "Lilian", route.ID, route.Stops[0].ID, guardian)

	svc := NewStopProgressService(db, &fakeNotifier{})
	svc.now = fixedClock(time.Date(2026, 3, 9, 7, 5, 0, 0, time.UTC))

	first, err := svc.MarkAttendance(student.ID, driver.ID, company.ID, models.AttendancePresent)
	if err != nil {
		t.Fatalf("mark present: %v", err)
	}

	second, err := svc.MarkAttendance(student.ID, driver.ID, company.ID, models.AttendanceDroppedOff)
	if err != nil {
		t.Fatalf("mark dropped: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("second mark created row %d, want update of %d", second.ID, first.ID)
	}
	if second.Status != models.AttendanceDroppedOff {
		t.Fatalf("status = %q, want %q", second.Status, models.AttendanceDroppedOff)
	}

	var count int64
	db.Model(&models.Attendance{}).Where("student_id = ?", student.ID).Count(&count)
	if count != 1 {
		t.Fatalf("attendance rows = %d, want 1", count)
	}

	_, err = svc.MarkAttendance(student.ID, driver.ID, company.ID, "vanished")
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
}

func TestStopProgressScopedToCompany(t *testing.T) {
	db := newTestDB(t)
	companyA := seedCompany(t, db)
	intruder := seedDriver(t, db, companyA.ID, "amina")
	intruderBus := seedBus(t, db, companyA.ID, "KDA 050A")

	ownerB := models.User{Name: "OpsB", Email: fmt.Sprintf("ops-b-%s@example.com", t.Name()), Role: "admin"}
	if err := db.Create(&ownerB).Error; err != nil {
		t.Fatalf("seed owner b: %v", err)
	}
	companyB := models.Company{UserID: ownerB.ID, Name: "Moonlight Transit", Email: fmt.Sprintf("co-b-%s@example.com", t.Name())}
	if err := db.Create(&companyB).Error; err != nil {
		t.Fatalf("seed company b: %v", err)
	}
	driverB := seedDriver(t, db, companyB.ID, "brian")
	busB := seedBus(t, db, companyB.ID, "KDB 051B")
	routeB := seedRoute(t, db, companyB.ID, 2)
	stopB := routeB.Stops[0]
	guardianB := seedGuardian(t, db, "wanjiru")
	studentB := seedStudent(t, db, companyB.ID, "Lilian", routeB.ID, stopB.ID, guardianB)

	notifier := &fakeNotifier{}
	svc := NewStopProgressService(db, notifier)
	svc.now = fixedClock(time.Date(2026, 3, 9, 7, 5, 0, 0, time.UTC))

	if _, _, err := svc.MarkStopCompleted(stopB.ID, routeB.ID, driverB.ID, busB.ID, companyB.ID, stopB.Seq); err != nil {
		t.Fatalf("own-company mark: %v", err)
	}
	sent := len(notifier.calls)

	// Another company's route reads as missing in every direction.
	var nf *NotFoundError

	stopB2 := routeB.Stops[1]
	_, _, err := svc.MarkStopCompleted(stopB2.ID, routeB.ID, intruder.ID, intruderBus.ID, companyA.ID, stopB2.Seq)
	if !errors.As(err, &nf) {
		t.Fatalf("cross-company mark err = %v, want NotFoundError", err)
	}
	if len(notifier.calls) != sent {
		t.Fatalf("cross-company mark sent %d notifications", len(notifier.calls)-sent)
	}

	if _, err := svc.GetTodayCompletedStops(companyA.ID, routeB.ID); !errors.As(err, &nf) {
		t.Fatalf("cross-company list err = %v, want NotFoundError", err)
	}

	if err := svc.ResetRouteStops(companyA.ID, routeB.ID); !errors.As(err, &nf) {
		t.Fatalf("cross-company reset err = %v, want NotFoundError", err)
	}
	survivors, err := svc.GetTodayCompletedStops(companyB.ID, routeB.ID)
	if err != nil {
		t.Fatalf("list after blocked reset: %v", err)
	}
	if len(survivors) != 1 {
		t.Fatalf("completions after blocked reset = %d, want 1", len(survivors))
	}

	if _, err := svc.MarkAttendance(studentB.ID, intruder.ID, companyA.ID, models.AttendancePresent); !errors.As(err, &nf) {
		t.Fatalf("cross-company attendance err = %v, want NotFoundError", err)
	}
}

func TestMarkStopCompletedRejectsMismatchedPayload(t *testing.T) {
	db := newTestDB(t)
	company := seedCompany(t, db)
	driver := seedDriver(t, db, company.ID, "amina")
	bus := seedBus(t, db, company.ID, "KDA 052C")
	route1 := seedRoute(t, db, company.ID, 2)
	route2 := seedRoute(t, db, company.ID, 2)
	stop1 := route1.Stops[0]

	svc := NewStopProgressService(db, &fakeNotifier{})
	svc.now = fixedClock(time.Date(2026, 3, 9, 7, 5, 0, 0, time.UTC))

	var ve *ValidationError

	_, _, err := svc.MarkStopCompleted(stop1.ID, route2.ID, driver.ID, bus.ID, company.ID, stop1.Seq)
	if !errors.As(err, &ve) {
		t.Fatalf("wrong route err = %v, want ValidationError", err)
	}

	_, _, err = svc.MarkStopCompleted(stop1.ID, route1.ID, driver.ID, bus.ID, company.ID, stop1.Seq+1)
	if !errors.As(err, &ve) {
		t.Fatalf("wrong sequence err = %v, want ValidationError", err)
	}

	var count int64
	db.Model(&models.StopCompletion{}).Where("stop_id = ?", stop1.ID).Count(&count)
	if count != 0 {
		t.Fatalf("completion rows = %d, want 0 after rejected submissions", count)
	}
}
