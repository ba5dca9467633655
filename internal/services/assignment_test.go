package services

import (
	"errors"
	"testing"
)

func TestBindDriverToBusReleasesPreviousHold(t *testing.T) {
	db := newTestDB(t)
	company := seedCompany(t, db)
	driver := seedDriver(t, db, company.ID, "amina")
	bus1 := seedBus(t, db, company.ID, "KDA 001A")
	bus2 := seedBus(t, db, company.ID, "KDA 002B")

	am := NewAssignmentManager(db)

	if err := am.BindDriverToBus(driver.ID, bus1.ID); err != nil {
		t.Fatalf("bind bus1: %v", err)
	}
	if err := am.BindDriverToBus(driver.ID, bus2.ID); err != nil {
		t.Fatalf("bind bus2: %v", err)
	}

	got1 := reloadBus(t, db, bus1.ID)
	if got1.DriverID != nil {
		t.Fatalf("bus1 driver_id = %v, want released", *got1.DriverID)
	}
	if got1.Status != "idle" {
		t.Fatalf("bus1 status = %q, want idle", got1.Status)
	}

	got2 := reloadBus(t, db, bus2.ID)
	if got2.DriverID == nil || *got2.DriverID != driver.ID {
		t.Fatalf("bus2 driver_id = %v, want %d", got2.DriverID, driver.ID)
	}
}

func TestBindDriverToBusHeldByOther(t *testing.T) {
	db := newTestDB(t)
	company := seedCompany(t, db)
	d1 := seedDriver(t, db, company.ID, "amina")
	d2 := seedDriver(t, db, company.ID, "brian")
	bus := seedBus(t, db, company.ID, "KDA 003C")

	am := NewAssignmentManager(db)

	if err := am.BindDriverToBus(d1.ID, bus.ID); err != nil {
		t.Fatalf("bind d1: %v", err)
	}

	err := am.BindDriverToBus(d2.ID, bus.ID)
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("bind d2 err = %v, want ConflictError", err)
	}

	got := reloadBus(t, db, bus.ID)
	if got.DriverID == nil || *got.DriverID != d1.ID {
		t.Fatalf("bus driver_id = %v, want still %d", got.DriverID, d1.ID)
	}
}

func TestBindDriverToBusMissing(t *testing.T) {
	db := newTestDB(t)
	company := seedCompany(t, db)
	driver := seedDriver(t, db, company.ID, "amina")

	am := NewAssignmentManager(db)

	err := am.BindDriverToBus(driver.ID, 9999)
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("err = %v, want NotFoundError", err)
	}
}

func TestUnbindDriverFromBusIdempotent(t *testing.T) {
	db := newTestDB(t)
	company := seedCompany(t, db)
	driver := seedDriver(t, db, company.ID, "amina")
	bus := seedBus(t, db, company.ID, "KDA 004D")

	am := NewAssignmentManager(db)

	if err := am.BindDriverToBus(driver.ID, bus.ID); err != nil {
		t.Fatalf("bind: %v", err)
	}
	if err := am.UnbindDriverFromBus(driver.ID); err != nil {
		t.Fatalf("first unbind: %v", err)
	}
	if err := am.UnbindDriverFromBus(driver.ID); err != nil {
		t.Fatalf("second unbind: %v", err)
	}

	got := reloadBus(t, db, bus.ID)
	if got.DriverID != nil {
		t.Fatalf("bus driver_id = %v, want nil", *got.DriverID)
	}
	if got.Status != "idle" {
		t.Fatalf("bus status = %q, want idle", got.Status)
	}
}

func TestBindDriverToRouteReplacesPrevious(t *testing.T) {
	db := newTestDB(t)
	company := seedCompany(t, db)
	driver := seedDriver(t, db, company.ID, "amina")
	r1 := seedRoute(t, db, company.ID, 2)
	r2 := seedRoute(t, db, company.ID, 2)

	am := NewAssignmentManager(db)

	if err := am.BindDriverToRoute(driver.ID, r1.ID); err != nil {
		t.Fatalf("bind r1: %v", err)
	}
	if err := am.BindDriverToRoute(driver.ID, r2.ID); err != nil {
		t.Fatalf("bind r2: %v", err)
	}

	var count int64
	db.Table("routes").Where("driver_id = ?", driver.ID).Count(&count)
	if count != 1 {
		t.Fatalf("driver holds %d routes, want 1", count)
	}

	got := reloadDriver(t, db, driver.ID)
	if got.AssignedRouteID == nil || *got.AssignedRouteID != r2.ID {
		t.Fatalf("driver assigned_route_id = %v, want %d", got.AssignedRouteID, r2.ID)
	}
}

func TestBindDriverToRouteHeldByOther(t *testing.T) {
	db := newTestDB(t)
	company := seedCompany(t, db)
	d1 := seedDriver(t, db, company.ID, "amina")
	d2 := seedDriver(t, db, company.ID, "brian")
	route := seedRoute(t, db, company.ID, 2)

	am := NewAssignmentManager(db)

	if err := am.BindDriverToRoute(d1.ID, route.ID); err != nil {
		t.Fatalf("bind d1: %v", err)
	}

	err := am.BindDriverToRoute(d2.ID, route.ID)
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("bind d2 err = %v, want ConflictError", err)
	}
}

func TestUnbindDriverFromRoute(t *testing.T) {
	db := newTestDB(t)
	company := seedCompany(t, db)
	driver := seedDriver(t, db, company.ID, "amina")
	route := seedRoute(t, db, company.ID, 2)

	am := NewAssignmentManager(db)

	if err := am.BindDriverToRoute(driver.ID, route.ID); err != nil {
		t.Fatalf("bind: %v", err)
	}
	if err := am.UnbindDriverFromRoute(driver.ID); err != nil {
		t.Fatalf("unbind: %v", err)
	}

	got := reloadDriver(t, db, driver.ID)
	if got.AssignedRouteID != nil {
		t.Fatalf("driver assigned_route_id = %v, want nil", *got.AssignedRouteID)
	}

	var count int64
	db.Table("routes").Where("driver_id = ?", driver.ID).Count(&count)
	if count != 0 {
		t.Fatalf("driver still holds %d routes", count)
	}
}
