package handler

type ContextKey string

var (
	DoctorCtx      ContextKey = "doctor"
	AppointmentCtx ContextKey = "appointment"
)
