package utils

import (
	"fmt"
	"time"
)

const DayLayout = "2006-01-02"

var wallClockLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// stripZone 保留墙上时间，丢弃时区信息
func stripZone(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
}

// ParseWallClock 解析客户端传来的预约时间。系统中的时间都是不带时区的本地时间，
// 如果字符串带有时区偏移，只保留其中的年月日时分秒。
func ParseWallClock(s string) (time.Time, error) {
	for _, layout := range wallClockLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return stripZone(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("时间格式错误: %q", s)
}

// ParseDay 解析 "YYYY-MM-DD"，也接受完整的时间字符串并只取日期部分
func ParseDay(s string) (time.Time, error) {
	if t, err := time.Parse(DayLayout, s); err == nil {
		return t, nil
	}

	t, err := ParseWallClock(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("日期格式错误: %q", s)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}
