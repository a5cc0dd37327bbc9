package api

import (
	"context"

	"github.com/SlpAus/standing-backend/internal/benevolence"
	"github.com/SlpAus/standing-backend/internal/sharetime"
	"github.com/SlpAus/standing-backend/internal/user"
)

// AccountHooks 把账户生命周期事件接到两个聚合引擎上
func AccountHooks(bene *benevolence.Engine, share *sharetime.Engine) user.Hooks {
	return user.Hooks{
		OnRegister: []user.HookFunc{
			func(ctx context.Context, userID string) error {
				_, err := bene.CreateForUser(ctx, userID)
				return err
			},
			func(ctx context.Context, userID string) error {
				_, err := share.CreateForUser(ctx, userID)
				return err
			},
		},
		OnRemove: []user.HookFunc{bene.DeleteForUser, share.DeleteForUser},
		OnLogin: []user.HookFunc{
			func(ctx context.Context, userID string) error {
				_, err := share.RecordLogin(ctx, userID)
				return err
			},
		},
		OnLogout: []user.HookFunc{
			func(ctx context.Context, userID string) error {
				_, err := share.RecordLogout(ctx, userID)
				return err
			},
		},
	}
}
