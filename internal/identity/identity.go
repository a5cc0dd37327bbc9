// Package identity 定义了两个聚合引擎共同依赖的身份解析契约。
// 引擎只通过这里的接口把用户名换成用户ID，从不直接读取用户表。
package identity

import (
	"context"
	"fmt"

	"github.com/SlpAus/standing-backend/internal/platform/apperr"
)

// ErrUnknownUser 表示用户名无法解析到任何用户
var ErrUnknownUser = fmt.Errorf("用户%w", apperr.ErrNotFound)

// Resolver 是身份服务对外提供的查询能力
type Resolver interface {
	// ResolveUsername 返回用户名对应的用户ID。用户不存在时返回 ErrUnknownUser。
	ResolveUsername(ctx context.Context, username string) (string, error)

	// Usernames 批量把用户ID映射回用户名，用于生成展示数据。
	// 已不存在的用户不会出现在结果中。
	Usernames(ctx context.Context, ids []string) (map[string]string, error)
}

// DisplayNames 按ids的顺序返回用户名，跳过已被删除的用户
func DisplayNames(ctx context.Context, r Resolver, ids []string) ([]string, error) {
	names := make([]string, 0, len(ids))
	if len(ids) == 0 {
		return names, nil
	}
	byID, err := r.Usernames(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		if name, ok := byID[id]; ok {
			names = append(names, name)
		}
	}
	return names, nil
}
