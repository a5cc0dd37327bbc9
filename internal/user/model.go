package user

import (
	"time"
)

// User 定义了用户在数据库中的持久化模型。
// 它只保存身份信息，benevolence和share time由各自的模块保存。
type User struct {
	// ID 是用户的主键，使用UUID v7
	ID string `gorm:"primarykey;type:varchar(36)"`

	// Username 是对外展示的唯一用户名
	Username string `gorm:"uniqueIndex;not null;type:varchar(32)"`

	// PasswordHash 是bcrypt哈希后的密码
	PasswordHash string `gorm:"not null" json:"-"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Profile 是返回给客户端的用户信息
type Profile struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

func (u *User) Profile() Profile {
	return Profile{ID: u.ID, Username: u.Username}
}

// RevokedSession 记录已经登出的会话。
// 令牌本身无法撤回，校验时凡是出现在这张表里的jti都视为无效。
type RevokedSession struct {
	// ID 是令牌的jti
	ID     string `gorm:"primarykey;type:varchar(36)"`
	UserID string `gorm:"not null;type:varchar(36)"`

	// ExpiresAt 之后令牌自然失效，这条记录也就可以清理了
	ExpiresAt time.Time `gorm:"index;not null"`
}
