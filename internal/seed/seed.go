package seed

import (
	"errors"
	"log/slog"
	"time"

	"github.com/prenatal-care/appointment-booking/backend/internal/domain"
	"github.com/prenatal-care/appointment-booking/backend/internal/scheduler"
	"github.com/prenatal-care/appointment-booking/backend/internal/utils"
)

// Store 是初始化数据时用到的仓储操作，由 repository.Repository 实现
type Store interface {
	CountDoctors() (int64, error)
	CreateDoctor(doctor *domain.Doctor) error
	GetAllDoctors() ([]*domain.Doctor, error)
	GetAppointmentsOverlappingWindow(doctorID int64, windowStart, windowEnd time.Time) ([]domain.AppointmentInterval, error)
	CreateAppointment(a *domain.Appointment) error
}

type doctorSeed struct {
	name           string
	specialization string
	start, end     string
	imageURL       string
}

var defaultDoctors = []doctorSeed{
	{"Dr. Sarah Johnson", "Obstetrics & Gynecology", "09:00", "17:00", "https://images.unsplash.com/photo-1559839734-2b71ea197ec2?auto=format&fit=crop&q=80&w=800"},
	{"Dr. Michael Chen", "Maternal-Fetal Medicine", "08:00", "16:00", "https://images.unsplash.com/photo-1537368910025-700350fe46c7?auto=format&fit=crop&q=80&w=800"},
	{"Dr. Emily Rodriguez", "Reproductive Endocrinology", "10:00", "18:00", "https://images.unsplash.com/photo-1527613426441-4da17471b66d?auto=format&fit=crop&q=80&w=800"},
	{"Dr. David Kim", "Obstetrics & Gynecology", "09:30", "17:30", "https://images.unsplash.com/photo-1612349317150-e413f6a5b16d?auto=format&fit=crop&q=80&w=800"},
	{"Dr. Lisa Patel", "Gynecologic Oncology", "08:30", "16:30", "https://images.unsplash.com/photo-1594824476967-48c8b964273f?auto=format&fit=crop&q=80&w=800"},
	{"Dr. James Wilson", "Maternal-Fetal Medicine", "07:00", "15:00", "https://images.unsplash.com/photo-1622253692010-333f2da6031d?auto=format&fit=crop&q=80&w=800"},
	{"Dr. Sophia Lee", "Reproductive Endocrinology", "11:00", "19:00", "https://images.unsplash.com/photo-1594824476967-48c8b964273f?auto=format&fit=crop&q=80&w=800"},
	{"Dr. Robert Taylor", "Obstetrics & Gynecology", "09:00", "17:00", "https://images.unsplash.com/photo-1612349317150-e413f6a5b16d?auto=format&fit=crop&q=80&w=800"},
	{"Dr. Maria Garcia", "Gynecologic Oncology", "10:30", "18:30", "https://images.unsplash.com/photo-1559839734-2b71ea197ec2?auto=format&fit=crop&q=80&w=800"},
	{"Dr. Thomas Brown", "Maternal-Fetal Medicine", "08:00", "16:00", "https://images.unsplash.com/photo-1537368910025-700350fe46c7?auto=format&fit=crop&q=80&w=800"},
}

func DefaultDoctors() ([]*domain.Doctor, error) {
	doctors := make([]*domain.Doctor, 0, len(defaultDoctors))
	for _, ds := range defaultDoctors {
		start, err := domain.ParseTimeOfDay(ds.start)
		if err != nil {
			return nil, err
		}
		end, err := domain.ParseTimeOfDay(ds.end)
		if err != nil {
			return nil, err
		}

		doctors = append(doctors, &domain.Doctor{
			Name:           ds.name,
			Specialization: ds.specialization,
			WorkingHours:   domain.WorkingHours{Start: start, End: end},
			ImageURL:       ds.imageURL,
		})
	}
	return doctors, nil
}

// SeedDoctors 仅在医生表为空时插入默认医生，返回插入的数量
func SeedDoctors(s Store) (int, error) {
	cnt, err := s.CountDoctors()
	if err != nil {
		return 0, err
	}
	if cnt > 0 {
		slog.Info("医生表不为空，跳过初始化", "count", cnt)
		return 0, nil
	}

	doctors, err := DefaultDoctors()
	if err != nil {
		return 0, err
	}

	inserted := 0
	for _, d := range doctors {
		if err := s.CreateDoctor(d); err != nil {
			return inserted, err
		}
		inserted++
	}

	return inserted, nil
}

// SeedAppointments 为每个医生在 day 当天随机预约最多 n 个号源。
// 每次都重新计算空闲号源，并走与 api 相同的冲突检测流程。
func SeedAppointments(s Store, day time.Time, n int, slotWidth int) (int, error) {
	doctors, err := s.GetAllDoctors()
	if err != nil {
		return 0, err
	}

	inserted := 0
	for _, doctor := range doctors {
		if !doctor.WorkingHours.Valid() {
			slog.Warn("医生的工作时间无效，跳过", "doctorID", doctor.ID)
			continue
		}

		windowStart := doctor.WorkingHours.Start.On(day)
		windowEnd := doctor.WorkingHours.End.On(day)

		for i := 0; i < n; i++ {
			booked, err := s.GetAppointmentsOverlappingWindow(doctor.ID, windowStart, windowEnd)
			if err != nil {
				return inserted, err
			}

			slots := scheduler.GenerateSlots(doctor.WorkingHours, day, booked, slotWidth)
			if len(slots) == 0 {
				slog.Info("医生当天已约满", "doctorID", doctor.ID, "date", day.Format(utils.DayLayout))
				break
			}

			a, err := utils.GenerateRandomAppointment(doctor, day, slots, slotWidth)
			if err != nil {
				return inserted, err
			}

			if err := s.CreateAppointment(a); err != nil {
				// 两个号源宽度的预约可能撞上下一个已占用的号源，换一个再试
				if errors.Is(err, domain.ErrSlotUnavailable) {
					continue
				}
				return inserted, err
			}
			inserted++
		}
	}

	return inserted, nil
}
