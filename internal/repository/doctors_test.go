package repository

import (
	"testing"

	"github.com/prenatal-care/appointment-booking/backend/internal/domain"
)

func TestDoctorRowToDomain(t *testing.T) {
	row := doctorRow{ID: 4, Name: "Dr. David Kim", Start: "09:30:00", End: "17:30:00"}

	doctor, err := row.toDomain()
	if err != nil {
		t.Fatalf("toDomain: %v", err)
	}
	if doctor.WorkingHours.Start != domain.NewTimeOfDay(9, 30) || doctor.WorkingHours.End != domain.NewTimeOfDay(17, 30) {
		t.Errorf("unexpected working hours %+v", doctor.WorkingHours)
	}
}

func TestDoctorRowToDomainBadTime(t *testing.T) {
	row := doctorRow{ID: 1, Start: "nine", End: "17:00:00"}

	if _, err := row.toDomain(); err == nil {
		t.Fatal("expected an error for a malformed start time")
	}
}
