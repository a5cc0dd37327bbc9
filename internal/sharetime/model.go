package sharetime

import (
	"time"
)

// DaysPerWeek 是滚动周的槽位数
const DaysPerWeek = 7

// WeekSlots 按星期槽位保存当前周已经结束的每日时长
type WeekSlots [DaysPerWeek]time.Duration

// Sum 返回所有槽位的总时长
func (w WeekSlots) Sum() time.Duration {
	var total time.Duration
	for _, d := range w {
		total += d
	}
	return total
}

// Record 是每个用户唯一的在线时长聚合记录
type Record struct {
	ID      string `gorm:"primarykey;type:varchar(36)"`
	OwnerID string `gorm:"uniqueIndex;not null;type:varchar(36)"`

	// LastLogin 是最近一次登录的时间(UTC)，为nil表示从未登录
	LastLogin *time.Time

	// CurrentDaily 是当天(UTC)累计的在线时长
	CurrentDaily time.Duration `gorm:"not null"`
	// CurrentWeekly 只在日切换时由 CurrentDaily 写入
	CurrentWeekly WeekSlots `gorm:"serializer:json;type:text;not null"`
	// CurrentWeekday 是当前正在累计的槽位下标 (0-6)
	CurrentWeekday int `gorm:"not null"`

	// LastWeeklyAverage 是上一个完整周的日均时长，单位为小时
	LastWeeklyAverage float64 `gorm:"not null"`
	Trend             Trend   `gorm:"not null"`

	// Version 用于乐观并发控制，每次写入加一
	Version int64 `gorm:"not null"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Record) TableName() string {
	return "share_time_records"
}

// Fresh 判断用户是否从未登录过
func (r *Record) Fresh() bool {
	return r.LastLogin == nil
}
