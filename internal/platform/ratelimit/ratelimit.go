// Package ratelimit 实现基于Redis有序集合的滑动窗口频率限制。
package ratelimit

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/SlpAus/standing-backend/internal/platform/apperr"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Limiter 在window内最多允许limit次请求。
// Redis不可用时放行所有请求，数据库仍然是唯一的数据来源。
type Limiter struct {
	rdb     *redis.Client
	healthy func() bool
	prefix  string
	limit   int64
	window  time.Duration
	now     func() time.Time
	logger  *zap.Logger
}

// New 创建一个频率限制器。limit为0时 Allow 总是放行。
func New(rdb *redis.Client, healthy func() bool, prefix string, limit int64, window time.Duration, logger *zap.Logger) *Limiter {
	if healthy == nil {
		healthy = func() bool { return true }
	}
	return &Limiter{
		rdb:     rdb,
		healthy: healthy,
		prefix:  prefix,
		limit:   limit,
		window:  window,
		now:     time.Now,
		logger:  logger.Named("ratelimit"),
	}
}

// memberID 生成16字节的唯一成员：8字节纳秒时间戳加8字节随机数
func memberID(t time.Time) (string, error) {
	b := make([]byte, 16)
	binary.BigEndian.PutUint64(b[0:8], uint64(t.UnixNano()))
	if _, err := rand.Read(b[8:16]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Allow 为key记录一次请求，返回这次请求是否被允许以及窗口内的请求数。
// 被拒绝的请求不计入窗口。
func (l *Limiter) Allow(ctx context.Context, key string) (bool, int64, error) {
	if l.limit <= 0 || l.rdb == nil || !l.healthy() {
		return true, 0, nil
	}

	now := l.now()
	member, err := memberID(now)
	if err != nil {
		return false, 0, fmt.Errorf("生成成员ID失败: %w", err)
	}

	redisKey := l.prefix + key
	minScore := "(" + strconv.FormatInt(now.Add(-l.window).UnixMicro(), 10)

	pipe := l.rdb.TxPipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "-inf", minScore)
	pipe.ZAdd(ctx, redisKey, redis.Z{Score: float64(now.UnixMicro()), Member: member})
	// 过期时间比窗口稍长
	pipe.Expire(ctx, redisKey, l.window+time.Minute)
	countCmd := pipe.ZCard(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, fmt.Errorf("执行频率计数事务失败: %w", err)
	}

	count := countCmd.Val()
	if count <= l.limit {
		return true, count, nil
	}

	if err := l.rdb.ZRem(ctx, redisKey, member).Err(); err != nil {
		l.logger.Warn("撤销被拒绝的请求计数失败", zap.String("key", key), zap.Error(err))
	}
	return false, count - 1, nil
}

// Middleware 按客户端IP限制请求频率，超出限制时返回429
func (l *Limiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed, _, err := l.Allow(c.Request.Context(), c.ClientIP())
		if err != nil {
			l.logger.Warn("频率限制检查失败，放行请求", zap.Error(err))
			c.Next()
			return
		}
		if !allowed {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(l.window.Seconds()))))
			apperr.Respond(c, apperr.ErrRateLimited)
			c.Abort()
			return
		}
		c.Next()
	}
}
