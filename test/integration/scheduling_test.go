package integration

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/clinicdesk/frontdesk/internal/domain/patient"
	"github.com/clinicdesk/frontdesk/internal/domain/scheduling"
	"github.com/clinicdesk/frontdesk/internal/platform/apperr"
	"github.com/clinicdesk/frontdesk/internal/platform/db"
	"github.com/clinicdesk/frontdesk/migrations"
)

func newScheduler(t *testing.T) (*scheduling.Service, scheduling.Repository) {
	t.Helper()
	pool := newSchema(t)
	patients := patient.NewService(patient.NewRepo(pool), nopLogger(), nil)
	repo := scheduling.NewRepo(pool)
	return scheduling.NewService(repo, patients, time.UTC, nopLogger(), nil), repo
}

func TestBooking_JaneDoe(t *testing.T) {
	svc, _ := newScheduler(t)
	ctx := context.Background()

	a, p, err := svc.Book(ctx, reception, scheduling.BookingRequest{
		Selector: patient.Selector{NewPatient: &patient.NewPatient{
			PatientCode: "H001240", FullName: "Jane Doe", Sex: "F", Age: "34",
		}},
		Date:       "2026-03-12",
		Time:       "10:30",
		DoctorName: "Dr. Mehta",
		Department: "Cardiology",
	})
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	if a.PatientID != p.ID || a.Status != scheduling.StatusWaiting {
		t.Errorf("unexpected appointment: %+v", a)
	}

	list, err := svc.List(ctx, reception, "All", "time")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 appointment, got %d", len(list))
	}
	got := list[0]
	if got.Patient == nil || got.Patient.PatientCode != "H001240" || got.Patient.FullName != "Jane Doe" {
		t.Errorf("expected joined patient summary, got %+v", got.Patient)
	}
	if got.Patient.Age == nil || *got.Patient.Age != 34 || got.Patient.Sex != "F" {
		t.Errorf("unexpected summary: %+v", got.Patient)
	}
	if !got.StartsAt.Equal(time.Date(2026, 3, 12, 10, 30, 0, 0, time.UTC)) {
		t.Errorf("unexpected starts_at %v", got.StartsAt)
	}
}

func TestBooking_StatusOrdering(t *testing.T) {
	svc, _ := newScheduler(t)
	ctx := context.Background()

	book := func(code, clock, status string) {
		t.Helper()
		_, _, err := svc.Book(ctx, reception, scheduling.BookingRequest{
			Selector:   patient.Selector{NewPatient: &patient.NewPatient{PatientCode: code, FullName: code}},
			Date:       "2026-03-12",
			Time:       clock,
			DoctorName: "Dr. Mehta",
			Department: "OPD",
			Status:     status,
		})
		if err != nil {
			t.Fatalf("book %s: %v", code, err)
		}
	}
	book("P1", "09:00", "Cancelled")
	book("P2", "10:00", "Waiting")
	book("P3", "08:00", "Confirmed")
	book("P4", "11:00", "Waiting")

	list, err := svc.List(ctx, reception, "", "status")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var codes []string
	for _, a := range list {
		codes = append(codes, a.Patient.PatientCode)
	}
	want := []string{"P2", "P4", "P3", "P1"}
	for i := range want {
		if i >= len(codes) || codes[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, codes)
		}
	}

	waiting, _ := svc.List(ctx, reception, "Waiting", "time")
	if len(waiting) != 2 {
		t.Errorf("expected 2 waiting, got %d", len(waiting))
	}
}

func TestAppointmentRepo_UpdateStatus(t *testing.T) {
	svc, repo := newScheduler(t)
	ctx := context.Background()

	a, _, err := svc.Book(ctx, reception, scheduling.BookingRequest{
		Selector:   patient.Selector{NewPatient: &patient.NewPatient{PatientCode: "U1", FullName: "Update Me"}},
		Date:       "2026-03-12",
		Time:       "10:00",
		DoctorName: "Dr. Mehta",
		Department: "OPD",
	})
	if err != nil {
		t.Fatalf("book: %v", err)
	}

	if err := repo.UpdateStatus(ctx, a.ID, scheduling.StatusCancelled); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := repo.UpdateStatus(ctx, a.ID, scheduling.StatusWaiting); err != nil {
		t.Fatalf("cancelled back to waiting: %v", err)
	}
	if err := repo.UpdateStatus(ctx, uuid.New(), scheduling.StatusWaiting); !errors.Is(err, scheduling.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := repo.UpdateStatus(ctx, a.ID, scheduling.Status("Done")); err == nil {
		t.Error("expected the store to reject an unknown status")
	}
}

func TestAppointmentRepo_RequiresPatient(t *testing.T) {
	_, repo := newScheduler(t)

	err := repo.Create(context.Background(), &scheduling.Appointment{
		PatientID:  uuid.New(),
		StartsAt:   time.Now(),
		DoctorName: "Dr. Mehta",
		Department: "OPD",
		Status:     scheduling.StatusWaiting,
	})
	if err == nil {
		t.Error("an appointment must not exist without its patient")
	}
}

func TestBooking_UnknownExistingPatient(t *testing.T) {
	svc, _ := newScheduler(t)

	_, _, err := svc.Book(context.Background(), reception, scheduling.BookingRequest{
		Selector:   patient.Selector{PatientID: uuid.NewString()},
		Date:       "2026-03-12",
		Time:       "10:00",
		DoctorName: "Dr. Mehta",
		Department: "OPD",
	})
	if !apperr.IsKind(err, apperr.KindNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestMigrator_Status(t *testing.T) {
	if adminPool == nil {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	schema := "it_st_" + strings.ReplaceAll(uuid.NewString()[:8], "-", "")
	m := db.NewMigrator(adminPool, migrations.FS)
	t.Cleanup(func() { _ = db.DropSchema(context.Background(), adminPool, schema) })

	before, err := m.Status(ctx, schema)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if len(before) == 0 || before[0].Applied {
		t.Fatalf("expected pending migrations on a fresh schema, got %+v", before)
	}

	n, err := m.Up(ctx, schema)
	if err != nil {
		t.Fatalf("up: %v", err)
	}
	if n != len(before) {
		t.Errorf("expected %d applied, got %d", len(before), n)
	}
	if n, _ := m.Up(ctx, schema); n != 0 {
		t.Errorf("second run applied %d migrations", n)
	}

	after, err := m.Status(ctx, schema)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	for _, st := range after {
		if !st.Applied || st.AppliedAt == nil {
			t.Errorf("migration %d not applied", st.Version)
		}
	}
}
