package domain

import "time"

type AppointmentEventType string

const (
	AppointmentCreated AppointmentEventType = "appointment.created"
	AppointmentUpdated AppointmentEventType = "appointment.updated"
	AppointmentDeleted AppointmentEventType = "appointment.deleted"
)

// AppointmentEvent 通过 rabbitmq 在各个 api 实例之间广播，再经 websocket 推送给客户端
type AppointmentEvent struct {
	ID               string               `json:"id"`
	Type             AppointmentEventType `json:"type"`
	DoctorID         int64                `json:"doctorID"`
	PreviousDoctorID int64                `json:"previousDoctorID,omitempty"` // 改约到其他医生时，原医生的订阅者也需要刷新号源
	Appointment      *Appointment         `json:"appointment"`
	OccurredAt       time.Time            `json:"occurredAt"`
}
