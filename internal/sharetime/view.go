package sharetime

import "time"

// PublicView 是其他用户查询时返回的数据
type PublicView struct {
	ID                string  `json:"id"`
	Author            string  `json:"author"`
	LastWeeklyAverage float64 `json:"lastWeeklyAverage"`
	Trend             Trend   `json:"trend"`
}

// OwnerView 是用户查询自己的记录时返回的数据，时长均以毫秒表示
type OwnerView struct {
	PublicView
	LastLogin       *time.Time         `json:"lastLogin"`
	CurrentDailyMs  int64              `json:"currentDaily"`
	CurrentWeeklyMs [DaysPerWeek]int64 `json:"currentWeekly"`
	CurrentWeekday  int                `json:"currentWeekday"`
}
