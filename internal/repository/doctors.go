package repository

import (
	"context"
	"time"

	"github.com/prenatal-care/appointment-booking/backend/internal/domain"
)

// doctorRow 用于扫描医生记录，工作时间在数据库中是 TIME 类型，读出来是 "HH:MM:SS" 字符串
type doctorRow struct {
	ID             int64
	Name           string
	Specialization string
	Start          string
	End            string
	ImageURL       string
	CreatedAt      time.Time
}

func (row *doctorRow) dst() []any {
	return []any{&row.ID, &row.Name, &row.Specialization, &row.Start, &row.End, &row.ImageURL, &row.CreatedAt}
}

func (row *doctorRow) toDomain() (*domain.Doctor, error) {
	start, err := domain.ParseTimeOfDay(row.Start)
	if err != nil {
		return nil, err
	}
	end, err := domain.ParseTimeOfDay(row.End)
	if err != nil {
		return nil, err
	}

	return &domain.Doctor{
		ID:             row.ID,
		Name:           row.Name,
		Specialization: row.Specialization,
		WorkingHours:   domain.WorkingHours{Start: start, End: end},
		ImageURL:       row.ImageURL,
		CreatedAt:      row.CreatedAt,
	}, nil
}

func (r *Repository) GetAllDoctors() ([]*domain.Doctor, error) {
	query := `
		SELECT id, name, specialization, working_hours_start, working_hours_end, image_url, created_at
		FROM doctors
		ORDER BY id
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	doctors := make([]*domain.Doctor, 0)
	for rows.Next() {
		var row doctorRow
		if err := rows.Scan(row.dst()...); err != nil {
			return nil, err
		}

		doctor, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		doctors = append(doctors, doctor)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return doctors, nil
}

func (r *Repository) GetDoctorByID(id int64) (*domain.Doctor, error) {
	query := `
		SELECT id, name, specialization, working_hours_start, working_hours_end, image_url, created_at
		FROM doctors WHERE id = $1
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	var row doctorRow
	if err := r.dbpool.QueryRowContext(ctx, query, id).Scan(row.dst()...); err != nil {
		return nil, err
	}

	return row.toDomain()
}

func (r *Repository) CountDoctors() (int64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	var count int64
	if err := r.dbpool.QueryRowContext(ctx, `SELECT COUNT(*) FROM doctors`).Scan(&count); err != nil {
		return 0, err
	}

	return count, nil
}

func (r *Repository) CreateDoctor(doctor *domain.Doctor) error {
	if !doctor.WorkingHours.Valid() {
		return domain.ErrInvalidWorkingHours
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	query := `
		INSERT INTO doctors (name, specialization, working_hours_start, working_hours_end, image_url)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`

	args := []any{
		doctor.Name,
		doctor.Specialization,
		doctor.WorkingHours.Start.String(),
		doctor.WorkingHours.End.String(),
		doctor.ImageURL,
	}
	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(&doctor.ID, &doctor.CreatedAt); err != nil {
		return err
	}

	return nil
}
