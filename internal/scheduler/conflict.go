package scheduler

import "github.com/prenatal-care/appointment-booking/backend/internal/domain"

// HasConflict 判断 proposed 是否与该医生已有的预约冲突。
//
// 更新预约时通过 excludeID 排除正在编辑的那条预约本身。调用方通常会多查一些预约出来，
// 这里对每一条都重新做完整的相交判断，不依赖调用方的预过滤。
func HasConflict(doctorID int64, proposed domain.AppointmentInterval, existing []domain.AppointmentInterval, excludeID *int64) bool {
	proposedEnd := proposed.End()

	for _, e := range existing {
		if e.DoctorID != doctorID {
			continue
		}
		if excludeID != nil && e.ID == *excludeID {
			continue
		}
		if overlaps(proposed.Start, proposedEnd, e.Start, e.End()) {
			return true
		}
	}

	return false
}
