package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SlpAus/standing-backend/internal/identity"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

// 定义与用户相关的Redis键名
const (
	// ByNameKey 是一个Hash，用于把用户名解析为用户ID。
	// Field: username, Value: user ID
	ByNameKey = "user:by_name"

	// ByIDKey 是一个Hash，用于把用户ID映射回用户名。
	// Field: user ID, Value: username
	ByIDKey = "user:by_id"
)

const lookupTimeout = 5 * time.Second

// Directory 是身份服务的实现。
// 它以数据库为准，用Redis缓存用户名和ID的双向映射。
// Redis不可用或缓存未命中时直接查询数据库。
type Directory struct {
	db      *gorm.DB
	rdb     *redis.Client
	healthy func() bool
	group   singleflight.Group
	logger  *zap.Logger
}

var _ identity.Resolver = (*Directory)(nil)

// NewDirectory 创建一个新的身份目录。healthy为nil时认为Redis始终可用。
func NewDirectory(db *gorm.DB, rdb *redis.Client, healthy func() bool, logger *zap.Logger) *Directory {
	if healthy == nil {
		healthy = func() bool { return true }
	}
	return &Directory{
		db:      db,
		rdb:     rdb,
		healthy: healthy,
		logger:  logger.Named("directory"),
	}
}

func (d *Directory) cacheUsable() bool {
	return d.rdb != nil && d.healthy()
}

// ResolveUsername 实现 identity.Resolver。
// 同一用户名的并发查询会被合并为一次。
func (d *Directory) ResolveUsername(ctx context.Context, username string) (string, error) {
	if username == "" {
		return "", identity.ErrUnknownUser
	}
	// 合并后的查询由所有等待者共享，不能因为其中一个请求被取消而失败
	ch := d.group.DoChan(username, func() (any, error) {
		lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lookupTimeout)
		defer cancel()
		return d.resolve(lookupCtx, username)
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (d *Directory) resolve(ctx context.Context, username string) (string, error) {
	if d.cacheUsable() {
		id, err := d.rdb.HGet(ctx, ByNameKey, username).Result()
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, redis.Nil) {
			d.logger.Warn("读取用户缓存失败，改为查询数据库", zap.Error(err))
		}
	}

	var u User
	err := d.db.WithContext(ctx).Select("id", "username").Where("username = ?", username).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", fmt.Errorf("%w: %s", identity.ErrUnknownUser, username)
	}
	if err != nil {
		return "", fmt.Errorf("无法查询用户: %w", err)
	}

	d.remember(ctx, &u)
	return u.ID, nil
}

// Usernames 实现 identity.Resolver
func (d *Directory) Usernames(ctx context.Context, ids []string) (map[string]string, error) {
	names := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}

	missing := ids
	if d.cacheUsable() {
		values, err := d.rdb.HMGet(ctx, ByIDKey, ids...).Result()
		if err != nil {
			d.logger.Warn("读取用户缓存失败，改为查询数据库", zap.Error(err))
		} else {
			missing = nil
			for i, v := range values {
				if name, ok := v.(string); ok {
					names[ids[i]] = name
				} else {
					missing = append(missing, ids[i])
				}
			}
		}
	}
	if len(missing) == 0 {
		return names, nil
	}

	var users []User
	if err := d.db.WithContext(ctx).Select("id", "username").Where("id IN ?", missing).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("无法查询用户: %w", err)
	}
	for i := range users {
		names[users[i].ID] = users[i].Username
		d.remember(ctx, &users[i])
	}
	return names, nil
}

// remember 把一个用户写入缓存。缓存写入失败只记录日志。
func (d *Directory) remember(ctx context.Context, u *User) {
	if !d.cacheUsable() {
		return
	}
	_, err := d.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, ByNameKey, u.Username, u.ID)
		pipe.HSet(ctx, ByIDKey, u.ID, u.Username)
		return nil
	})
	if err != nil {
		d.logger.Warn("写入用户缓存失败", zap.String("user", u.ID), zap.Error(err))
	}
}

// forget 从缓存中移除一个用户
func (d *Directory) forget(ctx context.Context, u *User) error {
	if d.rdb == nil {
		return nil
	}
	_, err := d.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HDel(ctx, ByNameKey, u.Username)
		pipe.HDel(ctx, ByIDKey, u.ID)
		return nil
	})
	return err
}

// Warmup 从数据库加载所有用户，重建Redis中的映射
func (d *Directory) Warmup(ctx context.Context) error {
	if d.rdb == nil {
		return nil
	}

	var users []User
	if err := d.db.WithContext(ctx).Select("id", "username").Find(&users).Error; err != nil {
		return fmt.Errorf("无法从数据库读取用户: %w", err)
	}

	byName := make(map[string]any, len(users))
	byID := make(map[string]any, len(users))
	for _, u := range users {
		byName[u.Username] = u.ID
		byID[u.ID] = u.Username
	}

	// 先清空旧的缓存，再一次性写入，保证与数据库一致
	_, err := d.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, ByNameKey, ByIDKey)
		if len(users) > 0 {
			pipe.HSet(ctx, ByNameKey, byName)
			pipe.HSet(ctx, ByIDKey, byID)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("预热用户缓存失败: %w", err)
	}

	d.logger.Info("用户缓存预热完成", zap.Int("users", len(users)))
	return nil
}
