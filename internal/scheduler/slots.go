package scheduler

import (
	"time"

	"github.com/prenatal-care/appointment-booking/backend/internal/domain"
)

// GenerateSlots 把医生在 day 当天的工作时间切分成宽度为 width 分钟的号源，
// 过滤掉与 booked 中任一预约相交的号源，按开始时间升序返回 "HH:MM" 列表。
//
// booked 应当包含与当天工作时间相交的全部预约，工作时间之外的预约不会影响结果。
// 工作时间末尾不足一个号源宽度的部分会被丢弃。
func GenerateSlots(wh domain.WorkingHours, day time.Time, booked []domain.AppointmentInterval, width int) []string {
	slots := make([]string, 0)

	// 工作时间不合法时不报错，直接返回空列表
	if !wh.Valid() || width <= 0 {
		return slots
	}

	step := time.Duration(width) * time.Minute
	windowEnd := wh.End.On(day)

	for cursor := wh.Start.On(day); !cursor.Add(step).After(windowEnd); cursor = cursor.Add(step) {
		slotEnd := cursor.Add(step)

		available := true
		for _, b := range booked {
			if overlaps(cursor, slotEnd, b.Start, b.End()) {
				available = false
				break
			}
		}

		if available {
			slots = append(slots, cursor.Format("15:04"))
		}
	}

	return slots
}
