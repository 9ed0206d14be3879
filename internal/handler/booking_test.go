package handler

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prenatal-care/appointment-booking/backend/internal/domain"
	"github.com/prenatal-care/appointment-booking/backend/internal/scheduler"
)

// memoryStore 在内存中模拟仓储，写操作的冲突检测与数据库事务中的一致
type memoryStore struct {
	doctors      map[int64]*domain.Doctor
	appointments map[int64]*domain.Appointment
	nextID       int64
}

func newMemoryStore(doctors ...*domain.Doctor) *memoryStore {
	s := &memoryStore{
		doctors:      make(map[int64]*domain.Doctor),
		appointments: make(map[int64]*domain.Appointment),
	}
	for _, d := range doctors {
		s.doctors[d.ID] = d
	}
	return s
}

func (s *memoryStore) GetAllDoctors() ([]*domain.Doctor, error) {
	doctors := make([]*domain.Doctor, 0, len(s.doctors))
	for _, d := range s.doctors {
		doctors = append(doctors, d)
	}
	slices.SortFunc(doctors, func(a, b *domain.Doctor) int { return int(a.ID - b.ID) })
	return doctors, nil
}

func (s *memoryStore) GetDoctorByID(id int64) (*domain.Doctor, error) {
	d, ok := s.doctors[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return d, nil
}

func (s *memoryStore) GetAllAppointments() ([]*domain.Appointment, error) {
	appointments := make([]*domain.Appointment, 0, len(s.appointments))
	for _, a := range s.appointments {
		c := *a
		appointments = append(appointments, &c)
	}
	return appointments, nil
}

func (s *memoryStore) GetAppointmentByID(id int64) (*domain.Appointment, error) {
	a, ok := s.appointments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	c := *a
	c.Doctor = s.doctors[a.DoctorID]
	return &c, nil
}

func (s *memoryStore) GetAppointmentsOverlappingWindow(doctorID int64, windowStart, windowEnd time.Time) ([]domain.AppointmentInterval, error) {
	intervals := make([]domain.AppointmentInterval, 0)
	for _, a := range s.appointments {
		ai := a.Interval()
		if ai.DoctorID == doctorID && ai.Start.Before(windowEnd) && windowStart.Before(ai.End()) {
			intervals = append(intervals, ai)
		}
	}
	return intervals, nil
}

func (s *memoryStore) checkConflict(a *domain.Appointment, excludeID *int64) error {
	interval := a.Interval()
	existing, _ := s.GetAppointmentsOverlappingWindow(a.DoctorID, interval.Start, interval.End())
	if scheduler.HasConflict(a.DoctorID, interval, existing, excludeID) {
		return domain.ErrSlotUnavailable
	}
	return nil
}

func (s *memoryStore) CreateAppointment(a *domain.Appointment) error {
	if _, ok := s.doctors[a.DoctorID]; !ok {
		return sql.ErrNoRows
	}
	if err := s.checkConflict(a, nil); err != nil {
		return err
	}

	s.nextID++
	a.ID = s.nextID
	a.Version = 1
	c := *a
	s.appointments[a.ID] = &c
	return nil
}

func (s *memoryStore) UpdateAppointment(a *domain.Appointment) error {
	if _, ok := s.doctors[a.DoctorID]; !ok {
		return sql.ErrNoRows
	}
	if err := s.checkConflict(a, &a.ID); err != nil {
		return err
	}

	current, ok := s.appointments[a.ID]
	if !ok || current.Version != a.Version {
		return sql.ErrNoRows
	}

	a.Version++
	c := *a
	s.appointments[a.ID] = &c
	return nil
}

func (s *memoryStore) DeleteAppointment(id int64) error {
	delete(s.appointments, id)
	return nil
}

// book 直接写入一条预约，绕过冲突检测
func (s *memoryStore) book(doctorID int64, start time.Time, minutes int) *domain.Appointment {
	s.nextID++
	a := &domain.Appointment{
		ID:              s.nextID,
		DoctorID:        doctorID,
		Date:            start,
		Duration:        minutes,
		AppointmentType: domain.AppointmentTypeUltrasound,
		PatientName:     "Ava Smith",
		Version:         1,
	}
	s.appointments[a.ID] = a
	return a
}

type recordingPublisher struct {
	events []domain.AppointmentEvent
	mails  []domain.MailMessage
}

func (p *recordingPublisher) PublishEvent(event domain.AppointmentEvent) error {
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) PublishMail(msg domain.MailMessage) error {
	p.mails = append(p.mails, msg)
	return nil
}

var bookingDay = time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)

func at(hour, minute int) time.Time {
	return bookingDay.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

func testDoctor(id int64, start, end domain.TimeOfDay) *domain.Doctor {
	return &domain.Doctor{
		ID:             id,
		Name:           fmt.Sprintf("Dr. %d", id),
		Specialization: "Obstetrics & Gynecology",
		WorkingHours:   domain.WorkingHours{Start: start, End: end},
	}
}

func newBookingHandler(t *testing.T) (*Handler, *memoryStore, *recordingPublisher) {
	t.Helper()

	store := newMemoryStore(
		testDoctor(1, domain.NewTimeOfDay(9, 0), domain.NewTimeOfDay(11, 0)),
		testDoctor(2, domain.NewTimeOfDay(9, 0), domain.NewTimeOfDay(17, 0)),
		testDoctor(3, domain.NewTimeOfDay(17, 0), domain.NewTimeOfDay(9, 0)),
	)
	publisher := &recordingPublisher{}
	return buildHandler(t, testConfig(), store, publisher), store, publisher
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()

	var resp struct {
		Success bool            `json:"success"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if !resp.Success {
		t.Fatalf("expected success, got message %q", resp.Message)
	}
	if err := json.Unmarshal(resp.Data, v); err != nil {
		t.Fatalf("invalid response data: %v", err)
	}
}

func TestAppointmentWriteError(t *testing.T) {
	h := newTestHandler(t, 0, 0)

	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"slot unavailable", domain.ErrSlotUnavailable, http.StatusConflict},
		{"wrapped slot unavailable", fmt.Errorf("create: %w", domain.ErrSlotUnavailable), http.StatusConflict},
		{"stale version", sql.ErrNoRows, http.StatusConflict},
		{"exclusion constraint", &pgconn.PgError{Code: "23P01", ConstraintName: "appointments_no_overlap"}, http.StatusConflict},
		{"missing doctor", &pgconn.PgError{Code: "23503", ConstraintName: "appointments_doctor_id_fkey"}, http.StatusNotFound},
		{"other constraint", &pgconn.PgError{Code: "23514", ConstraintName: "appointments_duration_check"}, http.StatusInternalServerError},
		{"unknown error", errors.New("connection reset"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/appointments", nil)
			h.appointmentWriteError(rec, req, tt.err)

			if rec.Code != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, rec.Code)
			}
			if resp := decodeResponse(t, rec); resp.Success {
				t.Fatalf("expected a failure response, got %+v", resp)
			}
		})
	}
}

func TestGetDoctorSlots(t *testing.T) {
	h, store, _ := newBookingHandler(t)
	booked := store.book(1, at(9, 30), 30)

	var got doctorSlotsResponse
	rec := doRequest(h, http.MethodGet, "/api/doctors/1/slots?date=2025-03-14", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	decodeData(t, rec, &got)
	if want := []string{"09:00", "10:00", "10:30"}; !slices.Equal(got.Slots, want) {
		t.Errorf("slots = %v, want %v", got.Slots, want)
	}
	if got.SlotWidth != 30 || got.Date != "2025-03-14" {
		t.Errorf("unexpected response %+v", got)
	}

	// 编辑自己的预约时，自己占用的号源需要重新出现
	rec = doRequest(h, http.MethodGet, fmt.Sprintf("/api/doctors/1/slots?date=2025-03-14&exclude=%d", booked.ID), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	got = doctorSlotsResponse{}
	decodeData(t, rec, &got)
	if want := []string{"09:00", "09:30", "10:00", "10:30"}; !slices.Equal(got.Slots, want) {
		t.Errorf("slots with exclude = %v, want %v", got.Slots, want)
	}

	// 其他日期不受影响
	rec = doRequest(h, http.MethodGet, "/api/doctors/1/slots?date=2025-03-15", "")
	got = doctorSlotsResponse{}
	decodeData(t, rec, &got)
	if len(got.Slots) != 4 {
		t.Errorf("expected 4 free slots on another day, got %v", got.Slots)
	}
}

func TestGetDoctorSlotsErrors(t *testing.T) {
	h, _, _ := newBookingHandler(t)

	tests := []struct {
		path   string
		status int
	}{
		{"/api/doctors/1/slots", http.StatusBadRequest},
		{"/api/doctors/1/slots?date=tomorrow", http.StatusBadRequest},
		{"/api/doctors/1/slots?date=2025-03-14&exclude=x", http.StatusBadRequest},
		{"/api/doctors/99/slots?date=2025-03-14", http.StatusNotFound},
	}

	for _, tt := range tests {
		if rec := doRequest(h, http.MethodGet, tt.path, ""); rec.Code != tt.status {
			t.Errorf("GET %s: expected %d, got %d", tt.path, tt.status, rec.Code)
		}
	}

	// 工作时间无效的医生没有可预约时间段，但不是错误
	rec := doRequest(h, http.MethodGet, "/api/doctors/3/slots?date=2025-03-14", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for malformed working hours, got %d", rec.Code)
	}
	var got doctorSlotsResponse
	decodeData(t, rec, &got)
	if got.Slots == nil || len(got.Slots) != 0 {
		t.Errorf("expected an empty slot list, got %v", got.Slots)
	}
}

func TestCheckConflict(t *testing.T) {
	h, store, _ := newBookingHandler(t)
	existing := store.book(2, at(9, 45), 30)

	tests := []struct {
		name string
		body string
		want bool
	}{
		{"partial overlap", `{"start": "2025-03-14T10:00:00", "duration": 30}`, true},
		{"adjacent", `{"start": "2025-03-14T10:15:00", "duration": 30}`, false},
		{"longer booking contains it", `{"start": "2025-03-14T09:00:00", "duration": 120}`, true},
		{"self excluded", fmt.Sprintf(`{"start": "2025-03-14T09:45:00", "duration": 30, "excludeAppointmentID": %d}`, existing.ID), false},
		{"offset dropped", `{"start": "2025-03-14T10:00:00+08:00", "duration": 30}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(h, http.MethodPost, "/api/doctors/2/conflicts", tt.body)
			if rec.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", rec.Code)
			}
			var got struct {
				Conflict bool `json:"conflict"`
			}
			decodeData(t, rec, &got)
			if got.Conflict != tt.want {
				t.Errorf("conflict = %v, want %v", got.Conflict, tt.want)
			}
		})
	}
}

func TestCheckConflictRejectsOversizedDuration(t *testing.T) {
	h, store, _ := newBookingHandler(t)
	store.book(2, at(10, 15), 30)

	// 过大的时长会让区间右端点溢出，必须在检测之前拒绝，不能返回 conflict=false
	for _, duration := range []int{200000000, 270, 45} {
		body := fmt.Sprintf(`{"start": "2025-03-14T10:00:00", "duration": %d}`, duration)
		rec := doRequest(h, http.MethodPost, "/api/doctors/2/conflicts", body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("duration %d: expected 400, got %d", duration, rec.Code)
		}
	}
}

func TestCreateAppointment(t *testing.T) {
	h, store, publisher := newBookingHandler(t)

	body := `{"doctorID": 2, "date": "2025-03-14T10:00:00", "duration": 60, "appointmentType": "Ultrasound", "patientName": "Ava Smith", "patientEmail": "ava@example.com"}`
	rec := doRequest(h, http.MethodPost, "/api/appointments", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var created domain.Appointment
	decodeData(t, rec, &created)
	if created.ID == 0 || !created.Date.Equal(at(10, 0)) || created.Duration != 60 {
		t.Errorf("unexpected appointment %+v", created)
	}
	if len(store.appointments) != 1 {
		t.Fatalf("expected 1 stored appointment, got %d", len(store.appointments))
	}

	if len(publisher.events) != 1 || publisher.events[0].Type != domain.AppointmentCreated || publisher.events[0].DoctorID != 2 {
		t.Errorf("unexpected events %+v", publisher.events)
	}
	if len(publisher.mails) != 1 || publisher.mails[0].Type != domain.MailTypeAppointmentBooked || publisher.mails[0].To != "ava@example.com" {
		t.Errorf("unexpected mails %+v", publisher.mails)
	}
}

func TestCreateAppointmentConflict(t *testing.T) {
	h, store, publisher := newBookingHandler(t)
	store.book(2, at(9, 0), 90)

	// 已有预约在之前开始、在之后结束，同样算冲突
	body := `{"doctorID": 2, "date": "2025-03-14T10:00:00", "duration": 30, "appointmentType": "Ultrasound", "patientName": "Mia Jones"}`
	rec := doRequest(h, http.MethodPost, "/api/appointments", body)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	if resp := decodeResponse(t, rec); resp.Message != domain.ErrSlotUnavailable.Error() {
		t.Errorf("unexpected message %q", resp.Message)
	}
	if len(store.appointments) != 1 {
		t.Errorf("the conflicting appointment must not be stored")
	}
	if len(publisher.events) != 0 || len(publisher.mails) != 0 {
		t.Errorf("nothing should be published for a rejected booking")
	}

	// 紧接在后面的时间段可以预约
	body = `{"doctorID": 2, "date": "2025-03-14T10:30:00", "duration": 30, "appointmentType": "Ultrasound", "patientName": "Mia Jones"}`
	if rec := doRequest(h, http.MethodPost, "/api/appointments", body); rec.Code != http.StatusCreated {
		t.Fatalf("adjacent booking: expected 201, got %d", rec.Code)
	}
}

func TestCreateAppointmentRejected(t *testing.T) {
	h, _, _ := newBookingHandler(t)

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"unknown doctor", `{"doctorID": 99, "date": "2025-03-14T10:00:00", "duration": 30, "appointmentType": "Ultrasound", "patientName": "Ava"}`, http.StatusNotFound},
		{"before opening", `{"doctorID": 1, "date": "2025-03-14T08:30:00", "duration": 30, "appointmentType": "Ultrasound", "patientName": "Ava"}`, http.StatusBadRequest},
		{"past closing", `{"doctorID": 1, "date": "2025-03-14T10:30:00", "duration": 60, "appointmentType": "Ultrasound", "patientName": "Ava"}`, http.StatusBadRequest},
		{"off grid duration", `{"doctorID": 1, "date": "2025-03-14T09:00:00", "duration": 45, "appointmentType": "Ultrasound", "patientName": "Ava"}`, http.StatusBadRequest},
		{"malformed working hours", `{"doctorID": 3, "date": "2025-03-14T10:00:00", "duration": 30, "appointmentType": "Ultrasound", "patientName": "Ava"}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := doRequest(h, http.MethodPost, "/api/appointments", tt.body); rec.Code != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, rec.Code)
			}
		})
	}
}

func TestUpdateAppointmentExcludesItself(t *testing.T) {
	h, store, publisher := newBookingHandler(t)
	mine := store.book(2, at(9, 0), 60)
	store.book(2, at(11, 0), 30)

	// 新时间与自己原来的时间重叠，不算冲突
	path := fmt.Sprintf("/api/appointments/%d", mine.ID)
	rec := doRequest(h, http.MethodPut, path, `{"date": "2025-03-14T09:30:00"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := store.appointments[mine.ID]; !got.Date.Equal(at(9, 30)) || got.Version != 2 {
		t.Errorf("unexpected stored appointment %+v", got)
	}
	if len(publisher.events) != 1 || publisher.events[0].Type != domain.AppointmentUpdated {
		t.Errorf("unexpected events %+v", publisher.events)
	}

	// 与其他预约重叠仍然冲突
	rec = doRequest(h, http.MethodPut, path, `{"date": "2025-03-14T10:30:00"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	if got := store.appointments[mine.ID]; !got.Date.Equal(at(9, 30)) {
		t.Errorf("a rejected update must not change the stored appointment, got %v", got.Date)
	}
}

func TestUpdateAppointmentToAnotherDoctor(t *testing.T) {
	h, store, publisher := newBookingHandler(t)
	mine := store.book(1, at(9, 0), 30)

	rec := doRequest(h, http.MethodPut, fmt.Sprintf("/api/appointments/%d", mine.ID), `{"doctorID": 2, "date": "2025-03-14T14:00:00"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(publisher.events) != 1 || publisher.events[0].DoctorID != 2 || publisher.events[0].PreviousDoctorID != 1 {
		t.Errorf("unexpected events %+v", publisher.events)
	}
}

func TestDeleteAppointment(t *testing.T) {
	h, store, publisher := newBookingHandler(t)
	mine := store.book(1, at(9, 0), 30)

	rec := doRequest(h, http.MethodDelete, fmt.Sprintf("/api/appointments/%d", mine.ID), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(store.appointments) != 0 {
		t.Errorf("expected the appointment to be removed")
	}
	if len(publisher.events) != 1 || publisher.events[0].Type != domain.AppointmentDeleted {
		t.Errorf("unexpected events %+v", publisher.events)
	}

	if rec := doRequest(h, http.MethodGet, fmt.Sprintf("/api/appointments/%d", mine.ID), ""); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", rec.Code)
	}
}
