package scheduler

import "time"

// DefaultSlotWidth 默认的号源宽度（分钟）
const DefaultSlotWidth = 30

// overlaps 判断两个半开区间 [aStart, aEnd) 和 [bStart, bEnd) 是否相交
// 首尾相接的两个区间不算冲突
func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}
