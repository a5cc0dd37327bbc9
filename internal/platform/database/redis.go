package database

import (
	"context"
	"fmt"
	"time"

	"github.com/SlpAus/standing-backend/internal/platform/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NewRedis 初始化与Redis的连接，并用PING确认连接可用
func NewRedis(ctx context.Context, cfg config.RedisConfig, zl *zap.Logger) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("无法连接到Redis: %w", err)
	}

	zl.Info("Redis 连接成功", zap.String("address", cfg.Address))
	return rdb, nil
}
