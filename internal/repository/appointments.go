package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/prenatal-care/appointment-booking/backend/internal/domain"
	"github.com/prenatal-care/appointment-booking/backend/internal/scheduler"
)

const appointmentColumns = `
	a.id, a.doctor_id, a.date, a.duration, a.appointment_type, a.patient_name, a.patient_email, a.notes, a.created_at, a.version,
	d.id, d.name, d.specialization, d.working_hours_start, d.working_hours_end, d.image_url, d.created_at
`

func scanAppointment(scan func(dst ...any) error) (*domain.Appointment, error) {
	a := &domain.Appointment{}
	var doctor doctorRow

	dst := []any{&a.ID, &a.DoctorID, &a.Date, &a.Duration, &a.AppointmentType, &a.PatientName, &a.PatientEmail, &a.Notes, &a.CreatedAt, &a.Version}
	dst = append(dst, doctor.dst()...)
	if err := scan(dst...); err != nil {
		return nil, err
	}

	d, err := doctor.toDomain()
	if err != nil {
		return nil, err
	}
	a.Doctor = d

	return a, nil
}

func (r *Repository) GetAllAppointments() ([]*domain.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments a
		JOIN doctors d ON d.id = a.doctor_id
		ORDER BY a.date, a.id
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	appointments := make([]*domain.Appointment, 0)
	for rows.Next() {
		a, err := scanAppointment(rows.Scan)
		if err != nil {
			return nil, err
		}
		appointments = append(appointments, a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return appointments, nil
}

func (r *Repository) GetAppointmentByID(id int64) (*domain.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments a
		JOIN doctors d ON d.id = a.doctor_id
		WHERE a.id = $1
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	return scanAppointment(r.dbpool.QueryRowContext(ctx, query, id).Scan)
}

// GetAppointmentsOverlappingWindow 返回该医生所有与 [windowStart, windowEnd) 相交的预约
func (r *Repository) GetAppointmentsOverlappingWindow(doctorID int64, windowStart, windowEnd time.Time) ([]domain.AppointmentInterval, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	return getOverlapping(ctx, r.dbpool, doctorID, windowStart, windowEnd)
}

func getOverlapping(ctx context.Context, q querier, doctorID int64, windowStart, windowEnd time.Time) ([]domain.AppointmentInterval, error) {
	query := `
		SELECT id, doctor_id, date, duration
		FROM appointments
		WHERE doctor_id = $1
			AND date < $3
			AND date + make_interval(mins => duration) > $2
		ORDER BY date
	`

	rows, err := q.QueryContext(ctx, query, doctorID, windowStart, windowEnd)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	intervals := make([]domain.AppointmentInterval, 0)
	for rows.Next() {
		var ai domain.AppointmentInterval
		if err := rows.Scan(&ai.ID, &ai.DoctorID, &ai.Start, &ai.DurationMinutes); err != nil {
			return nil, err
		}
		intervals = append(intervals, ai)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return intervals, nil
}

// lockDoctor 锁住医生记录，使同一医生的写预约操作串行执行，医生不存在时返回 sql.ErrNoRows
func lockDoctor(ctx context.Context, tx *sql.Tx, doctorID int64) error {
	var id int64
	return tx.QueryRowContext(ctx, `SELECT id FROM doctors WHERE id = $1 FOR UPDATE`, doctorID).Scan(&id)
}

// checkConflict 在事务中重新读取相交的预约并做冲突检测
func checkConflict(ctx context.Context, tx *sql.Tx, a *domain.Appointment, excludeID *int64) error {
	interval := a.Interval()

	existing, err := getOverlapping(ctx, tx, a.DoctorID, interval.Start, interval.End())
	if err != nil {
		return err
	}

	if scheduler.HasConflict(a.DoctorID, interval, existing, excludeID) {
		return domain.ErrSlotUnavailable
	}

	return nil
}

// CreateAppointment 在同一个事务中完成冲突检测和插入。
// 表上的 appointments_no_overlap 排他约束是最后一道防线。
func (r *Repository) CreateAppointment(a *domain.Appointment) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.TransactionTimeout)*time.Second)
	defer cancel()

	tx, err := r.dbpool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := lockDoctor(ctx, tx, a.DoctorID); err != nil {
		return err
	}

	if err := checkConflict(ctx, tx, a, nil); err != nil {
		return err
	}

	query := `
		INSERT INTO appointments (doctor_id, date, duration, appointment_type, patient_name, patient_email, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, version
	`
	args := []any{a.DoctorID, a.Date, a.Duration, a.AppointmentType, a.PatientName, a.PatientEmail, a.Notes}
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&a.ID, &a.CreatedAt, &a.Version); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	return nil
}

// UpdateAppointment 与 CreateAppointment 类似，但冲突检测时会排除预约自身。
// 预约不存在或版本号已过期时返回 sql.ErrNoRows。
func (r *Repository) UpdateAppointment(a *domain.Appointment) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.TransactionTimeout)*time.Second)
	defer cancel()

	tx, err := r.dbpool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := lockDoctor(ctx, tx, a.DoctorID); err != nil {
		return err
	}

	if err := checkConflict(ctx, tx, a, &a.ID); err != nil {
		return err
	}

	query := `
		UPDATE appointments
		SET
			doctor_id = $1,
			date = $2,
			duration = $3,
			appointment_type = $4,
			patient_name = $5,
			patient_email = $6,
			notes = $7,
			version = version + 1
		WHERE id = $8 AND version = $9
		RETURNING version
	`
	args := []any{a.DoctorID, a.Date, a.Duration, a.AppointmentType, a.PatientName, a.PatientEmail, a.Notes, a.ID, a.Version}
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&a.Version); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	return nil
}

func (r *Repository) DeleteAppointment(id int64) error {
	query := `
		DELETE FROM appointments WHERE id = $1
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	_, err := r.dbpool.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}

	return nil
}
