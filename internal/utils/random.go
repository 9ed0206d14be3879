package utils

import (
	"fmt"
	"math/rand"
	"slices"
	"time"

	"github.com/prenatal-care/appointment-booking/backend/internal/domain"
)

var firstNames = []string{
	"Emma", "Olivia", "Ava", "Sophia", "Isabella", "Mia", "Amelia", "Harper",
	"Evelyn", "Abigail", "Grace", "Chloe", "Zoe", "Nora", "Lily", "Hannah",
}
var lastNames = []string{
	"Smith", "Johnson", "Williams", "Brown", "Jones", "Garcia", "Miller", "Davis",
	"Martinez", "Lopez", "Wilson", "Anderson", "Thomas", "Moore", "Clark", "Lewis",
}

func GenerateRandomPatientName() string {
	return firstNames[rand.Intn(len(firstNames))] + " " + lastNames[rand.Intn(len(lastNames))]
}

func GenerateRandomAppointmentType() domain.AppointmentType {
	return domain.AppointmentTypes[rand.Intn(len(domain.AppointmentTypes))]
}

// GenerateRandomAppointment 从 slots 中随机挑一个号源，生成一条占用 1~2 个号源宽度的预约，
// 生成的预约不会与 slots 之外的时间段重叠。slots 为空时返回 nil。
func GenerateRandomAppointment(doctor *domain.Doctor, day time.Time, slots []string, slotWidth int) (*domain.Appointment, error) {
	if len(slots) == 0 {
		return nil, nil
	}

	slot := slots[rand.Intn(len(slots))]
	tod, err := domain.ParseTimeOfDay(slot)
	if err != nil {
		return nil, err
	}

	start := tod.On(day)
	duration := slotWidth
	// 只有紧接着的号源也空闲时才占用两个号源
	next := (tod + domain.TimeOfDay(slotWidth)).String()
	if rand.Intn(2) == 1 && slices.Contains(slots, next) {
		duration = 2 * slotWidth
	}

	return &domain.Appointment{
		DoctorID:        doctor.ID,
		Date:            start,
		Duration:        duration,
		AppointmentType: GenerateRandomAppointmentType(),
		PatientName:     GenerateRandomPatientName(),
		Notes:           fmt.Sprintf("seed-%s", start.Format("20060102T1504")),
	}, nil
}
