// Package startup 负责启动时的表结构迁移和缓存预热。
package startup

import (
	"context"
	"fmt"

	"github.com/SlpAus/standing-backend/internal/benevolence"
	"github.com/SlpAus/standing-backend/internal/sharetime"
	"github.com/SlpAus/standing-backend/internal/user"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// migrations 按依赖顺序列出各模块的迁移函数
var migrations = []struct {
	name string
	run  func(*gorm.DB) error
}{
	{"user", user.Migrate},
	{"benevolence", benevolence.Migrate},
	{"sharetime", sharetime.Migrate},
}

// Migrate 迁移所有模块的表结构
func Migrate(db *gorm.DB, logger *zap.Logger) error {
	for _, m := range migrations {
		if err := m.run(db); err != nil {
			return err
		}
		logger.Debug("表结构迁移完成", zap.String("module", m.name))
	}
	return nil
}

// InitializeApplication 是服务启动时执行的总入口
func InitializeApplication(ctx context.Context, db *gorm.DB, dir *user.Directory, logger *zap.Logger) error {
	logger.Info("开始应用初始化")

	if err := Migrate(db, logger); err != nil {
		return err
	}
	if err := RebuildCache(ctx, dir, logger); err != nil {
		return err
	}

	logger.Info("应用初始化完成")
	return nil
}

// RebuildCache 从数据库重建Redis中的用户映射，Redis重启后也由健康检查调用
func RebuildCache(ctx context.Context, dir *user.Directory, logger *zap.Logger) error {
	logger.Info("开始缓存重建")
	if err := dir.Warmup(ctx); err != nil {
		return fmt.Errorf("缓存重建失败: %w", err)
	}
	return nil
}
