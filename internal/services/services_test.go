package services

import (
	"fmt"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"schoolbus_tracker/internal/config"
	"schoolbus_tracker/internal/models"
)

// newTestDB opens a fresh in-memory sqlite database with the full
// schema applied. Each test gets its own named memory database so
// parallel tests cannot see each other's rows.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := config.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// fixedClock returns a now func pinned to the given instant.
func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

// fakeNotifier records every fan-out call instead of writing rows.
type fakeNotifier struct {
	calls []fakeNotification
}

type fakeNotification struct {
	CompanyID     uint
	SenderID      uint
	SenderRole    string
	RecipientRole string
	RecipientID   *uint
	RouteID       *uint
	Title         string
	Message       string
	Type          string
}

func (f *fakeNotifier) CreateSystemNotification(companyID, senderID uint, senderRole, recipientRole string, recipientID, routeID *uint, title, message, ntype string) error {
	f.calls = append(f.calls, fakeNotification{
		CompanyID:     companyID,
		SenderID:      senderID,
		SenderRole:    senderRole,
		RecipientRole: recipientRole,
		RecipientID:   recipientID,
		RouteID:       routeID,
		Title:         title,
		Message:       message,
		Type:          ntype,
	})
	return nil
}

// --- fixture helpers ---

func seedCompany(t *testing.T, db *gorm.DB) *models.Company {
	t.Helper()
	owner := models.User{Name: "Ops", Email: fmt.Sprintf("ops-%s@example.com", t.Name()), Role: "admin"}
	if err := db.Create(&owner).Error; err != nil {
		t.Fatalf("seed owner: %v", err)
	}
	company := models.Company{UserID: owner.ID, Name: "Sunrise Transit", Email: fmt.Sprintf("co-%s@example.com", t.Name())}
	if err := db.Create(&company).Error; err != nil {
		t.Fatalf("seed company: %v", err)
	}
	return &company
}

func seedDriver(t *testing.T, db *gorm.DB, companyID uint, name string) *models.Driver {
	t.Helper()
	user := models.User{Name: name, Email: fmt.Sprintf("%s-%s@example.com", name, t.Name()), Role: "driver"}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("seed driver user: %v", err)
	}
	driver := models.Driver{UserID: user.ID, CompanyID: companyID, Name: name, LicenseNumber: "DL-" + name}
	if err := db.Create(&driver).Error; err != nil {
		t.Fatalf("seed driver: %v", err)
	}
	return &driver
}

func seedBus(t *testing.T, db *gorm.DB, companyID uint, plate string) *models.Bus {
	t.Helper()
	bus := models.Bus{CompanyID: companyID, NumberPlate: plate, Capacity: 33, Status: models.BusIdle, FuelLevel: models.FuelHalf}
	if err := db.Create(&bus).Error; err != nil {
		t.Fatalf("seed bus: %v", err)
	}
	return &bus
}

// seedRoute creates a route with stops numbered 1..stopCount.
func seedRoute(t *testing.T, db *gorm.DB, companyID uint, stopCount int) *models.Route {
	t.Helper()
	route := models.Route{CompanyID: companyID, Name: "Morning Run"}
	for i := 1; i <= stopCount; i++ {
		route.Stops = append(route.Stops, models.Stop{
			Name:    fmt.Sprintf("Stop %d", i),
			Address: fmt.Sprintf("%d Main St", i),
			Seq:     i,
			Lat:     1.0 + float64(i),
			Lng:     36.0 + float64(i),
		})
	}
	if err := db.Create(&route).Error; err != nil {
		t.Fatalf("seed route: %v", err)
	}
	return &route
}

func seedGuardian(t *testing.T, db *gorm.DB, name string) *models.User {
	t.Helper()
	guardian := models.User{Name: name, Email: fmt.Sprintf("%s-%s@example.com", name, t.Name()), Role: "guardian"}
	if err := db.Create(&guardian).Error; err != nil {
		t.Fatalf("seed guardian: %v", err)
	}
	return &guardian
}

func seedStudent(t *testing.T, db *gorm.DB, companyID uint, name string, routeID, stopID uint, guardians ...*models.User) *models.Student {
	t.Helper()
	student := models.Student{
		CompanyID: companyID,
		Name:      name,
		RouteID:   &routeID,
		StopID:    &stopID,
	}
	for _, g := range guardians {
		student.Guardians = append(student.Guardians, *g)
	}
	if err := db.Create(&student).Error; err != nil {
		t.Fatalf("seed student: %v", err)
	}
	return &student
}

func reloadBus(t *testing.T, db *gorm.DB, id uint) *models.Bus {
	t.Helper()
	var bus models.Bus
	if err := db.First(&bus, id).Error; err != nil {
		t.Fatalf("reload bus %d: %v", id, err)
	}
	return &bus
}

func reloadDriver(t *testing.T, db *gorm.DB, id uint) *models.Driver {
	t.Helper()
	var driver models.Driver
	if err := db.First(&driver, id).Error; err != nil {
		t.Fatalf("reload driver %d: %v", id, err)
	}
	return &driver
}
