package domain

import (
	"errors"
	"time"
)

var (
	ErrSlotUnavailable     = errors.New("该时间段不可预约")
	ErrInvalidWorkingHours = errors.New("医生的工作时间无效")
)

type AppointmentType string

const (
	AppointmentTypeRoutineCheckUp  AppointmentType = "Routine Check-Up"
	AppointmentTypeUltrasound      AppointmentType = "Ultrasound"
	AppointmentTypePrenatalTesting AppointmentType = "Prenatal Testing"
)

var AppointmentTypes = []AppointmentType{
	AppointmentTypeRoutineCheckUp,
	AppointmentTypeUltrasound,
	AppointmentTypePrenatalTesting,
}

// AppointmentInterval 是排期引擎唯一关心的预约信息
type AppointmentInterval struct {
	ID              int64
	DoctorID        int64
	Start           time.Time
	DurationMinutes int
}

// End 返回半开区间 [Start, End) 的右端点
func (ai AppointmentInterval) End() time.Time {
	return ai.Start.Add(time.Duration(ai.DurationMinutes) * time.Minute)
}

type Appointment struct {
	ID              int64           `json:"id"`
	DoctorID        int64           `json:"doctorID"`
	Doctor          *Doctor         `json:"doctor,omitempty"`
	Date            time.Time       `json:"date"`     // 不带时区的本地时间
	Duration        int             `json:"duration"` // 分钟
	AppointmentType AppointmentType `json:"appointmentType"`
	PatientName     string          `json:"patientName"`
	PatientEmail    string          `json:"patientEmail,omitempty"`
	Notes           string          `json:"notes"`
	CreatedAt       time.Time       `json:"createdAt"`
	Version         int32           `json:"-"`
}

func (a *Appointment) Interval() AppointmentInterval {
	return AppointmentInterval{
		ID:              a.ID,
		DoctorID:        a.DoctorID,
		Start:           a.Date,
		DurationMinutes: a.Duration,
	}
}
