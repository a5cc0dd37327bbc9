package sharetime

import (
	"context"
	"fmt"
	"time"

	"github.com/SlpAus/standing-backend/internal/identity"
	"github.com/SlpAus/standing-backend/internal/platform/database"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Engine 负责share time聚合的全部读写
type Engine struct {
	db     *gorm.DB
	users  identity.Resolver
	now    func() time.Time
	logger *zap.Logger
}

// Option 用于定制Engine
type Option func(*Engine)

// WithClock 替换引擎使用的时钟，主要用于测试
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine 创建一个新的share time引擎
func NewEngine(db *gorm.DB, users identity.Resolver, logger *zap.Logger, opts ...Option) *Engine {
	e := &Engine{
		db:     db,
		users:  users,
		now:    time.Now,
		logger: logger.Named("sharetime"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CreateForUser 为新注册的用户创建一条从未登录的记录
func (e *Engine) CreateForUser(ctx context.Context, userID string) (*Record, error) {
	rec, err := newRecord(userID)
	if err != nil {
		return nil, err
	}
	if err := insertRecord(e.db.WithContext(ctx), rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// DeleteForUser 删除用户的记录，记录不存在时也视为成功
func (e *Engine) DeleteForUser(ctx context.Context, userID string) error {
	return deleteByOwner(e.db.WithContext(ctx), userID)
}

// GetByID 按用户ID读取记录
func (e *Engine) GetByID(ctx context.Context, userID string) (*Record, error) {
	return findByOwner(e.db.WithContext(ctx), userID)
}

// GetByUsername 按用户名读取记录
func (e *Engine) GetByUsername(ctx context.Context, username string) (*Record, error) {
	userID, err := e.users.ResolveUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	return e.GetByID(ctx, userID)
}

// RecordLogin 记录一次登录，必要时执行日切换
func (e *Engine) RecordLogin(ctx context.Context, userID string) (*Record, error) {
	rec, err := e.mutate(ctx, userID, func(r *Record, now time.Time) bool {
		r.applyLogin(now)
		return true
	})
	if err != nil {
		return nil, err
	}
	e.logger.Debug("登录已记录",
		zap.String("user", userID),
		zap.Int("weekday", rec.CurrentWeekday),
		zap.Stringer("trend", rec.Trend))
	return rec, nil
}

// RecordLogout 记录一次登出，把同一天内的会话时长计入当天累计
func (e *Engine) RecordLogout(ctx context.Context, userID string) (*Record, error) {
	rec, err := e.mutate(ctx, userID, (*Record).applyLogout)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("登出已记录",
		zap.String("user", userID),
		zap.Duration("daily", rec.CurrentDaily))
	return rec, nil
}

// mutate 在事务中读取记录、应用修改并以版本检查写回，冲突时整体重试
func (e *Engine) mutate(ctx context.Context, userID string, apply func(*Record, time.Time) bool) (*Record, error) {
	var result *Record
	err := database.RetryOnConflict(ctx, e.db, func(tx *gorm.DB) error {
		rec, err := findByOwner(tx, userID)
		if err != nil {
			return err
		}

		next := *rec
		if !apply(&next, e.now()) {
			result = rec
			return nil
		}
		next.Version = rec.Version + 1
		if err := database.CompareAndSwap(tx, &next, rec.Version, mutableColumns...); err != nil {
			return err
		}
		result = &next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// PublicView 生成任何人都可以查看的展示数据
func (e *Engine) PublicView(ctx context.Context, rec *Record) (*PublicView, error) {
	names, err := e.users.Usernames(ctx, []string{rec.OwnerID})
	if err != nil {
		return nil, fmt.Errorf("无法解析用户名: %w", err)
	}
	return &PublicView{
		ID:                rec.ID,
		Author:            names[rec.OwnerID],
		LastWeeklyAverage: rec.LastWeeklyAverage,
		Trend:             rec.Trend,
	}, nil
}

// OwnerView 生成记录所有者自己看到的展示数据
func (e *Engine) OwnerView(ctx context.Context, rec *Record) (*OwnerView, error) {
	public, err := e.PublicView(ctx, rec)
	if err != nil {
		return nil, err
	}
	view := &OwnerView{
		PublicView:     *public,
		LastLogin:      rec.LastLogin,
		CurrentDailyMs: rec.CurrentDaily.Milliseconds(),
		CurrentWeekday: rec.CurrentWeekday,
	}
	for i, d := range rec.CurrentWeekly {
		view.CurrentWeeklyMs[i] = d.Milliseconds()
	}
	return view, nil
}
