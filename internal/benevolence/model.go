package benevolence

import (
	"slices"
	"time"

	"gorm.io/datatypes"
)

// MaxVotes 是每个用户最多可以提名的人数
const MaxVotes = 3

// Record 是每个用户唯一的benevolence聚合记录。
// NominationsReceived/ReportsReceived/Granted 描述的是该用户自己被提名和举报的情况，
// MyVotes/MyReports 描述的是该用户对别人做出的提名和举报。
type Record struct {
	ID      string `gorm:"primarykey;type:varchar(36)"`
	OwnerID string `gorm:"uniqueIndex;not null;type:varchar(36)"`

	NominationsReceived int64 `gorm:"not null"`
	ReportsReceived     int64 `gorm:"not null"`
	Granted             bool  `gorm:"not null"`

	// MyVotes 按提名顺序保存被提名者的用户ID，最多 MaxVotes 个
	MyVotes datatypes.JSONSlice[string] `gorm:"not null"`
	// MyReports 保存被举报者的用户ID，没有上限
	MyReports datatypes.JSONSlice[string] `gorm:"not null"`

	// Version 用于乐观并发控制，每次写入加一
	Version int64 `gorm:"not null"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Record) TableName() string {
	return "benevolence_records"
}

// HasVoted 判断是否已经提名过target
func (r *Record) HasVoted(targetID string) bool {
	return slices.Contains(r.MyVotes, targetID)
}

// HasReported 判断是否已经举报过target
func (r *Record) HasReported(targetID string) bool {
	return slices.Contains(r.MyReports, targetID)
}

// VotesLeft 返回剩余的提名次数
func (r *Record) VotesLeft() int {
	return max(MaxVotes-len(r.MyVotes), 0)
}

// Outcome 描述一次提名或举报请求的处理结果。
// 重复操作和次数用完都不是错误，而是不改变任何状态的结果。
type Outcome int

const (
	// OutcomeApplied 表示状态已更新
	OutcomeApplied Outcome = iota
	// OutcomeAlreadyMember 表示之前已经提名或举报过该用户
	OutcomeAlreadyMember
	// OutcomeQuotaReached 表示提名次数已用完
	OutcomeQuotaReached
)

func (o Outcome) String() string {
	switch o {
	case OutcomeApplied:
		return "applied"
	case OutcomeAlreadyMember:
		return "already_member"
	case OutcomeQuotaReached:
		return "quota_reached"
	default:
		return "unknown"
	}
}
