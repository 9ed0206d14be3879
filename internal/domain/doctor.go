package domain

import "time"

type WorkingHours struct {
	Start TimeOfDay `json:"start"`
	End   TimeOfDay `json:"end"`
}

// Valid 要求开始时间严格早于结束时间
func (wh WorkingHours) Valid() bool {
	return wh.Start < wh.End
}

type Doctor struct {
	ID             int64        `json:"id"`
	Name           string       `json:"name"`
	Specialization string       `json:"specialization"`
	WorkingHours   WorkingHours `json:"workingHours"`
	ImageURL       string       `json:"imageUrl"`
	CreatedAt      time.Time    `json:"createdAt"`
}
