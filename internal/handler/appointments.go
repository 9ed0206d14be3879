package handler

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prenatal-care/appointment-booking/backend/internal/domain"
	"github.com/prenatal-care/appointment-booking/backend/internal/utils"
)

func (h *Handler) GetAllAppointments(w http.ResponseWriter, r *http.Request) {
	appointments, err := h.repository.GetAllAppointments()
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取预约列表成功", appointments)
}

func (h *Handler) GetAppointment(w http.ResponseWriter, r *http.Request) {
	appointment := r.Context().Value(AppointmentCtx).(*domain.Appointment)
	h.successResponse(w, r, "获取预约信息成功", appointment)
}

func (h *Handler) CreateAppointment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DoctorID        int64  `json:"doctorID" validate:"required,gt=0"`
		Date            string `json:"date" validate:"required"`
		Duration        int    `json:"duration" validate:"required,gt=0"`
		AppointmentType string `json:"appointmentType" validate:"required,oneof='Routine Check-Up' 'Ultrasound' 'Prenatal Testing'"`
		PatientName     string `json:"patientName" validate:"required,max=100"`
		PatientEmail    string `json:"patientEmail" validate:"omitempty,email"`
		Notes           string `json:"notes" validate:"max=1000"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	date, err := utils.ParseWallClock(req.Date)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}

	doctor, err := h.getDoctor(req.DoctorID)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			h.notFound(w, r, "医生不存在")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	appointment := &domain.Appointment{
		DoctorID:        doctor.ID,
		Doctor:          doctor,
		Date:            date,
		Duration:        req.Duration,
		AppointmentType: domain.AppointmentType(req.AppointmentType),
		PatientName:     req.PatientName,
		PatientEmail:    req.PatientEmail,
		Notes:           req.Notes,
	}

	if err := utils.ValidateAppointment(appointment, doctor, h.config.Booking.SlotWidth, h.config.Booking.MaxDuration); err != nil {
		h.badRequest(w, r, err)
		return
	}

	if err := h.repository.CreateAppointment(appointment); err != nil {
		h.appointmentWriteError(w, r, err)
		return
	}

	h.publishEvent(domain.AppointmentCreated, appointment, 0)
	h.publishMail(domain.MailTypeAppointmentBooked, appointment)

	h.createdResponse(w, r, "预约成功", appointment)
}

func (h *Handler) UpdateAppointment(w http.ResponseWriter, r *http.Request) {
	appointment := r.Context().Value(AppointmentCtx).(*domain.Appointment)

	var req struct {
		DoctorID        *int64  `json:"doctorID" validate:"omitempty,gt=0"`
		Date            *string `json:"date"`
		Duration        *int    `json:"duration" validate:"omitempty,gt=0"`
		AppointmentType *string `json:"appointmentType" validate:"omitempty,oneof='Routine Check-Up' 'Ultrasound' 'Prenatal Testing'"`
		PatientName     *string `json:"patientName" validate:"omitempty,max=100"`
		PatientEmail    *string `json:"patientEmail" validate:"omitempty,email"`
		Notes           *string `json:"notes" validate:"omitempty,max=1000"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	previousDoctorID := appointment.DoctorID
	previousDate := appointment.Date
	previousDuration := appointment.Duration

	doctor := appointment.Doctor
	if req.DoctorID != nil && *req.DoctorID != appointment.DoctorID {
		d, err := h.getDoctor(*req.DoctorID)
		if err != nil {
			switch {
			case errors.Is(err, sql.ErrNoRows):
				h.notFound(w, r, "医生不存在")
			default:
				h.internalServerError(w, r, err)
			}
			return
		}
		doctor = d
		appointment.DoctorID = d.ID
		appointment.Doctor = d
	}
	if req.Date != nil {
		date, err := utils.ParseWallClock(*req.Date)
		if err != nil {
			h.badRequest(w, r, err)
			return
		}
		appointment.Date = date
	}
	if req.Duration != nil {
		appointment.Duration = *req.Duration
	}
	if req.AppointmentType != nil {
		appointment.AppointmentType = domain.AppointmentType(*req.AppointmentType)
	}
	if req.PatientName != nil {
		appointment.PatientName = *req.PatientName
	}
	if req.PatientEmail != nil {
		appointment.PatientEmail = *req.PatientEmail
	}
	if req.Notes != nil {
		appointment.Notes = *req.Notes
	}

	if err := utils.ValidateAppointment(appointment, doctor, h.config.Booking.SlotWidth, h.config.Booking.MaxDuration); err != nil {
		h.badRequest(w, r, err)
		return
	}

	if err := h.repository.UpdateAppointment(appointment); err != nil {
		h.appointmentWriteError(w, r, err)
		return
	}

	movedFrom := int64(0)
	if previousDoctorID != appointment.DoctorID {
		movedFrom = previousDoctorID
	}
	h.publishEvent(domain.AppointmentUpdated, appointment, movedFrom)

	// 只有时间或医生发生变化时才通知患者改约
	if movedFrom != 0 || !previousDate.Equal(appointment.Date) || previousDuration != appointment.Duration {
		h.publishMail(domain.MailTypeAppointmentRescheduled, appointment)
	}

	h.successResponse(w, r, "预约更新成功", appointment)
}

func (h *Handler) DeleteAppointment(w http.ResponseWriter, r *http.Request) {
	appointment := r.Context().Value(AppointmentCtx).(*domain.Appointment)

	if err := h.repository.DeleteAppointment(appointment.ID); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.publishEvent(domain.AppointmentDeleted, appointment, 0)
	h.publishMail(domain.MailTypeAppointmentCancelled, appointment)

	h.successResponse(w, r, "预约已取消", nil)
}

// appointmentWriteError 把写预约时的错误映射成响应
func (h *Handler) appointmentWriteError(w http.ResponseWriter, r *http.Request, err error) {
	var pgErr *pgconn.PgError
	switch {
	case errors.Is(err, domain.ErrSlotUnavailable):
		h.conflict(w, r, domain.ErrSlotUnavailable.Error())
	case errors.Is(err, sql.ErrNoRows):
		// 医生被锁之前就不存在，或者预约在读取之后被其他请求修改/删除
		h.conflict(w, r, "预约已被修改或删除，请刷新后重试")
	case errors.As(err, &pgErr):
		switch pgErr.ConstraintName {
		case "appointments_no_overlap":
			h.conflict(w, r, domain.ErrSlotUnavailable.Error())
		case "appointments_doctor_id_fkey":
			h.notFound(w, r, "医生不存在")
		default:
			h.internalServerError(w, r, err)
		}
	default:
		h.internalServerError(w, r, err)
	}
}

// publishEvent 在事务提交之后发布预约变更，发布失败不影响本次请求的结果
func (h *Handler) publishEvent(eventType domain.AppointmentEventType, a *domain.Appointment, previousDoctorID int64) {
	if h.publisher == nil {
		return
	}

	event := domain.AppointmentEvent{
		ID:               uuid.NewString(),
		Type:             eventType,
		DoctorID:         a.DoctorID,
		PreviousDoctorID: previousDoctorID,
		Appointment:      a,
		OccurredAt:       time.Now().UTC(),
	}
	if err := h.publisher.PublishEvent(event); err != nil {
		slog.Error("无法发布预约事件", "event", event.ID, "type", eventType, "appointmentID", a.ID, "error", err)
	}
}

func (h *Handler) publishMail(mailType string, a *domain.Appointment) {
	if h.publisher == nil || a.PatientEmail == "" {
		return
	}

	if err := h.publisher.PublishMail(utils.NewAppointmentMail(mailType, a)); err != nil {
		slog.Error("无法发送邮件到消息队列", "type", mailType, "appointmentID", a.ID, "error", err)
	}
}
