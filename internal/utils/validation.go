package utils

import (
	"fmt"
	"slices"

	"github.com/prenatal-care/appointment-booking/backend/internal/domain"
)

func ValidateAppointmentType(t domain.AppointmentType) error {
	if !slices.Contains(domain.AppointmentTypes, t) {
		return fmt.Errorf("不支持的预约类型: %s", t)
	}
	return nil
}

// minutesPerDay 是未配置上限时的默认上限，预约不可能超过一天的工作时间
const minutesPerDay = 24 * 60

// ValidateAppointmentDuration 要求时长为号源宽度的正整数倍且不超过上限
func ValidateAppointmentDuration(duration int, slotWidth int, maxDuration int) error {
	if maxDuration <= 0 || maxDuration > minutesPerDay {
		maxDuration = minutesPerDay
	}

	if duration <= 0 {
		return fmt.Errorf("预约时长必须大于 0")
	}
	if slotWidth > 0 && duration%slotWidth != 0 {
		return fmt.Errorf("预约时长必须是 %d 分钟的整数倍", slotWidth)
	}
	if duration > maxDuration {
		return fmt.Errorf("预约时长不能超过 %d 分钟", maxDuration)
	}
	return nil
}

// ValidateWithinWorkingHours 检查预约是否完整地落在医生当天的工作时间内
func ValidateWithinWorkingHours(interval domain.AppointmentInterval, wh domain.WorkingHours) error {
	if !wh.Valid() {
		return domain.ErrInvalidWorkingHours
	}

	windowStart := wh.Start.On(interval.Start)
	windowEnd := wh.End.On(interval.Start)

	if interval.Start.Before(windowStart) || interval.End().After(windowEnd) {
		return fmt.Errorf("预约时间必须在医生的工作时间 %s-%s 内", wh.Start, wh.End)
	}
	return nil
}

func ValidateAppointment(a *domain.Appointment, doctor *domain.Doctor, slotWidth int, maxDuration int) error {
	if err := ValidateAppointmentType(a.AppointmentType); err != nil {
		return err
	}
	if err := ValidateAppointmentDuration(a.Duration, slotWidth, maxDuration); err != nil {
		return err
	}
	return ValidateWithinWorkingHours(a.Interval(), doctor.WorkingHours)
}
