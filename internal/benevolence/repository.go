package benevolence

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/SlpAus/standing-backend/internal/platform/apperr"
	"github.com/SlpAus/standing-backend/internal/platform/database"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Migrate 负责自动迁移benevolence表结构
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&Record{}); err != nil {
		return fmt.Errorf("无法迁移benevolence表: %w", err)
	}
	return nil
}

func newRecord(ownerID string) (*Record, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("无法生成UUID v7: %w", err)
	}
	return &Record{
		ID:        id.String(),
		OwnerID:   ownerID,
		MyVotes:   datatypes.JSONSlice[string]{},
		MyReports: datatypes.JSONSlice[string]{},
	}, nil
}

func insertRecord(tx *gorm.DB, rec *Record) error {
	if err := tx.Create(rec).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("用户 %s 的benevolence记录%w", rec.OwnerID, apperr.ErrConflict)
		}
		return fmt.Errorf("无法创建benevolence记录: %w", err)
	}
	return nil
}

func findByOwner(tx *gorm.DB, ownerID string) (*Record, error) {
	var rec Record
	if err := tx.Where("owner_id = ?", ownerID).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("用户 %s 的benevolence记录%w", ownerID, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("无法读取benevolence记录: %w", err)
	}
	return &rec, nil
}

func deleteByOwner(tx *gorm.DB, ownerID string) error {
	if err := tx.Where("owner_id = ?", ownerID).Delete(&Record{}).Error; err != nil {
		return fmt.Errorf("无法删除benevolence记录: %w", err)
	}
	return nil
}

// appendVote 以版本检查的方式把target追加到actor的提名列表
func appendVote(tx *gorm.DB, actor *Record, targetID string) error {
	next := *actor
	next.MyVotes = append(slices.Clone(actor.MyVotes), targetID)
	next.Version = actor.Version + 1
	return database.CompareAndSwap(tx, &next, actor.Version, "my_votes")
}

// appendReport 以版本检查的方式把target追加到actor的举报列表
func appendReport(tx *gorm.DB, actor *Record, targetID string) error {
	next := *actor
	next.MyReports = append(slices.Clone(actor.MyReports), targetID)
	next.Version = actor.Version + 1
	return database.CompareAndSwap(tx, &next, actor.Version, "my_reports")
}

// 计数器使用原子自增，Granted 在同一条语句里按自增后的计数重新判定。
// SET 子句右侧引用的都是更新前的列值，所以要显式加一。
//
// 提名只会把 Granted 置为 true，举报只会把它置为 false，
// 两个方向各自独立判定，不会从两个计数重新推导。
const (
	grantOnNomination = "CASE WHEN 2 * (nominations_received + 1) > reports_received THEN ? ELSE granted END"
	revokeOnReport    = "CASE WHEN reports_received + 1 >= 2 * nominations_received THEN ? ELSE granted END"
)

func receiveNomination(tx *gorm.DB, targetID string) error {
	return bumpCounters(tx, targetID, map[string]any{
		"nominations_received": gorm.Expr("nominations_received + 1"),
		"granted":              gorm.Expr(grantOnNomination, true),
	})
}

func receiveReport(tx *gorm.DB, targetID string) error {
	return bumpCounters(tx, targetID, map[string]any{
		"reports_received": gorm.Expr("reports_received + 1"),
		"granted":          gorm.Expr(revokeOnReport, false),
	})
}

func bumpCounters(tx *gorm.DB, targetID string, columns map[string]any) error {
	columns["version"] = gorm.Expr("version + 1")
	columns["updated_at"] = time.Now()

	res := tx.Model(&Record{}).Where("owner_id = ?", targetID).UpdateColumns(columns)
	if res.Error != nil {
		return fmt.Errorf("无法更新benevolence计数: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("用户 %s 的benevolence记录%w", targetID, apperr.ErrNotFound)
	}
	return nil
}
