// Package health 监控Redis的可用性，并在Redis重启后重建用户缓存。
package health

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"sync"
	"time"

	"github.com/SlpAus/standing-backend/pkg/lifecycle"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	checkInterval = 5 * time.Second
	probeTimeout  = 2 * time.Second
)

var runIDPattern = regexp.MustCompile(`run_id:([a-f0-9]+)`)

// RebuildFunc 从数据库重新填充缓存
type RebuildFunc func(ctx context.Context) error

// ProbeFunc 返回Redis实例的run_id，run_id变化说明实例重启过
type ProbeFunc func(ctx context.Context) (string, error)

// Checker 周期性地探测Redis，维护缓存是否可信的状态
type Checker struct {
	probe    ProbeFunc
	rebuild  RebuildFunc
	interval time.Duration
	logger   *zap.Logger

	mu             sync.RWMutex
	state          State
	lastKnownRunID string
}

// RedisProbe 通过 INFO server 读取run_id
func RedisProbe(rdb *redis.Client) ProbeFunc {
	return func(ctx context.Context) (string, error) {
		info, err := rdb.Info(ctx, "server").Result()
		if err != nil {
			return "", err
		}
		matches := runIDPattern.FindStringSubmatch(info)
		if len(matches) < 2 {
			return "", errors.New("无法在Redis INFO中找到run_id")
		}
		return matches[1], nil
	}
}

// NewChecker 创建一个新的健康检查器，初始状态为健康
func NewChecker(probe ProbeFunc, rebuild RebuildFunc, logger *zap.Logger) *Checker {
	return &Checker{
		probe:    probe,
		rebuild:  rebuild,
		interval: checkInterval,
		logger:   logger.Named("health"),
		state:    StateHealthy,
	}
}

func (c *Checker) runID(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	return c.probe(ctx)
}

// Init 在启动时读取一次初始的run_id
func (c *Checker) Init(ctx context.Context) error {
	runID, err := c.runID(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.lastKnownRunID = runID
	c.mu.Unlock()
	c.logger.Info("已获取Redis run_id", zap.String("run_id", runID))
	return nil
}

// State 返回当前状态
func (c *Checker) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// IsHealthy 判断当前是否可以读写缓存
func (c *Checker) IsHealthy() bool {
	return c.State() == StateHealthy
}

// Check 执行一轮探测，必要时重建缓存
func (c *Checker) Check(ctx context.Context) {
	runID, err := c.runID(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.assess(err == nil, runID) {
		return
	}

	// 重建期间持有锁，IsHealthy 的调用者会等到重建结束
	rebuildErr := c.rebuild(ctx)
	if rebuildErr != nil {
		c.logger.Error("缓存重建失败", zap.Error(rebuildErr))
	}
	after, err := c.runID(ctx)
	if err != nil {
		c.state = StateDegraded
		c.logger.Warn("重建后无法连接Redis，状态 -> degraded", zap.Error(err))
		return
	}
	c.markRebuilt(rebuildErr == nil, after)
}

// Run 按固定间隔执行 Check，直到收到停机信号
func (c *Checker) Run(h *lifecycle.Handle) {
	c.logger.Info("Redis健康检查已启动", zap.Duration("interval", c.interval))
	for h.Sleep(c.interval) == nil {
		c.Check(h.Ctx())
	}
	c.logger.Info("Redis健康检查已停止")
}

// Handler 处理 GET /api/health，数据库不可用时返回503
func (c *Checker) Handler(db *gorm.DB) gin.HandlerFunc {
	return func(gctx *gin.Context) {
		dbStatus := "ok"
		status := http.StatusOK
		if err := pingDB(gctx.Request.Context(), db); err != nil {
			dbStatus = "unavailable"
			status = http.StatusServiceUnavailable
		}
		gctx.JSON(status, gin.H{
			"database": dbStatus,
			"cache":    c.State().String(),
		})
	}
}

func pingDB(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	return sqlDB.PingContext(ctx)
}

func zapRunIDs(before, after string) []zap.Field {
	return []zap.Field{zap.String("from", before), zap.String("to", after)}
}
