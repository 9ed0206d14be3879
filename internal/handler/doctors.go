package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prenatal-care/appointment-booking/backend/internal/domain"
	"github.com/prenatal-care/appointment-booking/backend/internal/scheduler"
	"github.com/prenatal-care/appointment-booking/backend/internal/utils"
)

func (h *Handler) GetAllDoctors(w http.ResponseWriter, r *http.Request) {
	doctors, err := h.getAllDoctors()
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取医生列表成功", doctors)
}

func (h *Handler) GetDoctor(w http.ResponseWriter, r *http.Request) {
	doctor := r.Context().Value(DoctorCtx).(*domain.Doctor)
	h.successResponse(w, r, "获取医生信息成功", doctor)
}

type doctorSlotsResponse struct {
	DoctorID     int64               `json:"doctorID"`
	Date         string              `json:"date"`
	WorkingHours domain.WorkingHours `json:"workingHours"`
	SlotWidth    int                 `json:"slotWidth"`
	Slots        []string            `json:"slots"`
}

func (h *Handler) GetDoctorSlots(w http.ResponseWriter, r *http.Request) {
	doctor := r.Context().Value(DoctorCtx).(*domain.Doctor)

	dateParam := r.URL.Query().Get("date")
	if dateParam == "" {
		h.badRequest(w, r, errors.New("缺少日期参数"))
		return
	}
	day, err := utils.ParseDay(dateParam)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}

	// 编辑预约时，需要把正在编辑的预约从已占用的时间段中去掉
	var excludeID *int64
	if excludeParam := r.URL.Query().Get("exclude"); excludeParam != "" {
		id, err := strconv.ParseInt(excludeParam, 10, 64)
		if err != nil {
			h.badRequest(w, r, errors.New("预约ID无效"))
			return
		}
		excludeID = &id
	}

	width := h.config.Booking.SlotWidth
	resp := doctorSlotsResponse{
		DoctorID:     doctor.ID,
		Date:         day.Format(utils.DayLayout),
		WorkingHours: doctor.WorkingHours,
		SlotWidth:    width,
		Slots:        []string{},
	}

	if !doctor.WorkingHours.Valid() {
		slog.Warn("医生的工作时间无效", "doctorID", doctor.ID, "start", doctor.WorkingHours.Start, "end", doctor.WorkingHours.End)
		h.successResponse(w, r, "获取可预约时间段成功", resp)
		return
	}

	booked, err := h.repository.GetAppointmentsOverlappingWindow(doctor.ID, doctor.WorkingHours.Start.On(day), doctor.WorkingHours.End.On(day))
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}
	if excludeID != nil {
		filtered := booked[:0]
		for _, b := range booked {
			if b.ID != *excludeID {
				filtered = append(filtered, b)
			}
		}
		booked = filtered
	}

	resp.Slots = scheduler.GenerateSlots(doctor.WorkingHours, day, booked, width)
	h.successResponse(w, r, "获取可预约时间段成功", resp)
}

func (h *Handler) CheckConflict(w http.ResponseWriter, r *http.Request) {
	doctor := r.Context().Value(DoctorCtx).(*domain.Doctor)

	var req struct {
		Start                string `json:"start" validate:"required"`
		Duration             int    `json:"duration" validate:"required,gt=0"`
		ExcludeAppointmentID *int64 `json:"excludeAppointmentID"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	// 时长必须受上限约束，过大的时长会让区间右端点溢出到开始时间之前
	if err := utils.ValidateAppointmentDuration(req.Duration, h.config.Booking.SlotWidth, h.config.Booking.MaxDuration); err != nil {
		h.badRequest(w, r, err)
		return
	}

	start, err := utils.ParseWallClock(req.Start)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}

	proposed := domain.AppointmentInterval{
		DoctorID:        doctor.ID,
		Start:           start,
		DurationMinutes: req.Duration,
	}

	existing, err := h.repository.GetAppointmentsOverlappingWindow(doctor.ID, proposed.Start, proposed.End())
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	conflict := scheduler.HasConflict(doctor.ID, proposed, existing, req.ExcludeAppointmentID)
	h.successResponse(w, r, "冲突检测完成", map[string]any{
		"conflict": conflict,
		"start":    proposed.Start.Format(time.DateTime),
		"end":      proposed.End().Format(time.DateTime),
	})
}
