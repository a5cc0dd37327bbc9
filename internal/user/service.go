package user

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/SlpAus/standing-backend/internal/platform/apperr"
	"github.com/SlpAus/standing-backend/pkg/token"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]{3,32}$`)

const minPasswordLength = 8

// HookFunc 是账户生命周期中由其他模块注册的回调
type HookFunc func(ctx context.Context, userID string) error

// Hooks 把账户事件接到各个聚合引擎上
type Hooks struct {
	// OnRegister 在用户创建后依次执行，任何一个失败都会撤销这次注册
	OnRegister []HookFunc
	// OnRemove 在删除用户前并发执行，必须是幂等的
	OnRemove []HookFunc
	// OnLogin 在登录成功后执行
	OnLogin []HookFunc
	// OnLogout 在登出时执行
	OnLogout []HookFunc
}

// Service 负责注册、登录、登出和注销
type Service struct {
	db     *gorm.DB
	dir    *Directory
	tokens *token.Issuer
	hooks  Hooks
	logger *zap.Logger
}

// NewService 创建一个新的用户服务
func NewService(db *gorm.DB, dir *Directory, tokens *token.Issuer, hooks Hooks, logger *zap.Logger) *Service {
	return &Service{
		db:     db,
		dir:    dir,
		tokens: tokens,
		hooks:  hooks,
		logger: logger.Named("user_service"),
	}
}

// Migrate 负责自动迁移user表结构
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&User{}, &RevokedSession{}); err != nil {
		return fmt.Errorf("无法迁移user表: %w", err)
	}
	return nil
}

// Register 创建一个新用户，并为其初始化所有聚合记录
func (s *Service) Register(ctx context.Context, username, password string) (*User, error) {
	if !usernamePattern.MatchString(username) {
		return nil, fmt.Errorf("%w: 用户名只能包含3到32个字母、数字或下划线", apperr.ErrInvalidInput)
	}
	if len(password) < minPasswordLength {
		return nil, fmt.Errorf("%w: 密码至少需要%d个字符", apperr.ErrInvalidInput, minPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("无法生成密码哈希: %w", err)
	}
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("无法生成UUID v7: %w", err)
	}

	u := &User{ID: id.String(), Username: username, PasswordHash: string(hash)}
	if err := s.db.WithContext(ctx).Create(u).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("用户名 %s %w", username, apperr.ErrConflict)
		}
		return nil, fmt.Errorf("无法创建用户: %w", err)
	}

	for _, hook := range s.hooks.OnRegister {
		if err := hook(ctx, u.ID); err != nil {
			s.logger.Warn("初始化用户记录失败，正在撤销注册", zap.String("user", u.ID), zap.Error(err))
			if rbErr := s.remove(context.WithoutCancel(ctx), u); rbErr != nil {
				s.logger.Error("撤销注册失败", zap.String("user", u.ID), zap.Error(rbErr))
			}
			return nil, fmt.Errorf("无法初始化用户记录: %w", err)
		}
	}

	s.dir.remember(ctx, u)
	s.logger.Info("新用户已注册", zap.String("user", u.ID), zap.String("username", u.Username))
	return u, nil
}

// Authenticate 校验用户名和密码
func (s *Service) Authenticate(ctx context.Context, username, password string) (*User, error) {
	var u User
	err := s.db.WithContext(ctx).Where("username = ?", username).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: 用户名或密码错误", apperr.ErrUnauthorized)
	}
	if err != nil {
		return nil, fmt.Errorf("无法查询用户: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, fmt.Errorf("%w: 用户名或密码错误", apperr.ErrUnauthorized)
	}
	return &u, nil
}

// Login 校验凭据，签发会话令牌并执行登录回调
func (s *Service) Login(ctx context.Context, username, password string) (*User, string, error) {
	u, err := s.Authenticate(ctx, username, password)
	if err != nil {
		return nil, "", err
	}
	signed, _, err := s.tokens.Issue(u.ID)
	if err != nil {
		return nil, "", err
	}
	if err := runHooks(ctx, s.hooks.OnLogin, u.ID); err != nil {
		return nil, "", err
	}
	return u, signed, nil
}

// Authorize 校验会话令牌，已经登出的会话视为无效
func (s *Service) Authorize(ctx context.Context, raw string) (token.Session, error) {
	session, err := s.tokens.Verify(raw)
	if err != nil {
		return token.Session{}, fmt.Errorf("%w: %v", apperr.ErrUnauthorized, err)
	}
	var revoked int64
	err = s.db.WithContext(ctx).Model(&RevokedSession{}).Where("id = ?", session.ID).Count(&revoked).Error
	if err != nil {
		return token.Session{}, fmt.Errorf("无法查询会话状态: %w", err)
	}
	if revoked > 0 {
		return token.Session{}, fmt.Errorf("%w: 会话已结束", apperr.ErrUnauthorized)
	}
	return session, nil
}

// Logout 吊销会话并执行登出回调。
// 同一个会话只能登出一次，重复登出返回 ErrUnauthorized 且不会再次执行回调。
func (s *Service) Logout(ctx context.Context, session token.Session) error {
	revoked := RevokedSession{ID: session.ID, UserID: session.UserID, ExpiresAt: session.ExpiresAt}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&revoked)
	if res.Error != nil {
		return fmt.Errorf("无法吊销会话: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: 会话已结束", apperr.ErrUnauthorized)
	}

	if err := runHooks(ctx, s.hooks.OnLogout, session.UserID); err != nil {
		// 回调失败时恢复会话，客户端可以重试登出
		if rbErr := s.db.WithContext(context.WithoutCancel(ctx)).Delete(&RevokedSession{}, "id = ?", session.ID).Error; rbErr != nil {
			s.logger.Error("恢复会话失败", zap.String("session", session.ID), zap.Error(rbErr))
		}
		return err
	}

	if err := s.db.WithContext(ctx).Delete(&RevokedSession{}, "expires_at < ?", time.Now()).Error; err != nil {
		s.logger.Warn("清理过期会话记录失败", zap.Error(err))
	}
	return nil
}

// Remove 注销用户。用户不存在时也视为成功。
func (s *Service) Remove(ctx context.Context, userID string) error {
	var u User
	err := s.db.WithContext(ctx).Where("id = ?", userID).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("无法查询用户: %w", err)
	}
	if err := s.remove(ctx, &u); err != nil {
		return err
	}
	s.logger.Info("用户已注销", zap.String("user", u.ID))
	return nil
}

func (s *Service) remove(ctx context.Context, u *User) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, hook := range s.hooks.OnRemove {
		g.Go(func() error { return hook(gctx, u.ID) })
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("无法删除用户记录: %w", err)
	}

	if err := s.db.WithContext(ctx).Delete(&User{}, "id = ?", u.ID).Error; err != nil {
		return fmt.Errorf("无法删除用户: %w", err)
	}
	if err := s.dir.forget(ctx, u); err != nil {
		s.logger.Warn("清理用户缓存失败", zap.String("user", u.ID), zap.Error(err))
	}
	return nil
}

func runHooks(ctx context.Context, hooks []HookFunc, userID string) error {
	for _, hook := range hooks {
		if err := hook(ctx, userID); err != nil {
			return err
		}
	}
	return nil
}
