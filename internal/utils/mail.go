package utils

import "github.com/prenatal-care/appointment-booking/backend/internal/domain"

func NewAppointmentMail(mailType string, a *domain.Appointment) domain.MailMessage {
	data := domain.AppointmentMailData{
		PatientName:     a.PatientName,
		AppointmentType: string(a.AppointmentType),
		Date:            a.Date.Format(DayLayout),
		Time:            a.Date.Format("15:04"),
		Duration:        a.Duration,
	}
	if a.Doctor != nil {
		data.DoctorName = a.Doctor.Name
	}

	return domain.MailMessage{
		Type: mailType,
		To:   a.PatientEmail,
		Data: data,
	}
}
