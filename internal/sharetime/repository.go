package sharetime

import (
	"errors"
	"fmt"

	"github.com/SlpAus/standing-backend/internal/platform/apperr"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// mutableColumns 是登录和登出可能修改的列
var mutableColumns = []string{
	"last_login",
	"current_daily",
	"current_weekly",
	"current_weekday",
	"last_weekly_average",
	"trend",
}

// Migrate 负责自动迁移share time表结构
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&Record{}); err != nil {
		return fmt.Errorf("无法迁移share time表: %w", err)
	}
	return nil
}

func newRecord(ownerID string) (*Record, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("无法生成UUID v7: %w", err)
	}
	return &Record{
		ID:      id.String(),
		OwnerID: ownerID,
		Trend:   TrendStable,
	}, nil
}

func insertRecord(tx *gorm.DB, rec *Record) error {
	if err := tx.Create(rec).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("用户 %s 的share time记录%w", rec.OwnerID, apperr.ErrConflict)
		}
		return fmt.Errorf("无法创建share time记录: %w", err)
	}
	return nil
}

func findByOwner(tx *gorm.DB, ownerID string) (*Record, error) {
	var rec Record
	if err := tx.Where("owner_id = ?", ownerID).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("用户 %s 的share time记录%w", ownerID, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("无法读取share time记录: %w", err)
	}
	return &rec, nil
}

func deleteByOwner(tx *gorm.DB, ownerID string) error {
	if err := tx.Where("owner_id = ?", ownerID).Delete(&Record{}).Error; err != nil {
		return fmt.Errorf("无法删除share time记录: %w", err)
	}
	return nil
}
