package domain

const (
	MailTypeAppointmentBooked      = "appointment_booked"
	MailTypeAppointmentRescheduled = "appointment_rescheduled"
	MailTypeAppointmentCancelled   = "appointment_cancelled"
)

type MailMessage struct {
	Type string `json:"type"`
	To   string `json:"to"`
	Data any    `json:"data"`
}

type AppointmentMailData struct {
	PatientName     string `json:"patientName"`
	DoctorName      string `json:"doctorName"`
	AppointmentType string `json:"appointmentType"`
	Date            string `json:"date"`
	Time            string `json:"time"`
	Duration        int    `json:"duration"`
}
