package benevolence

import (
	"context"
	"fmt"

	"github.com/SlpAus/standing-backend/internal/identity"
	"github.com/SlpAus/standing-backend/internal/platform/apperr"
	"github.com/SlpAus/standing-backend/internal/platform/database"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Engine 负责benevolence聚合的全部读写。
// 每次写操作都在一个事务内完成，冲突时整体重试。
type Engine struct {
	db     *gorm.DB
	users  identity.Resolver
	logger *zap.Logger
}

// NewEngine 创建一个新的benevolence引擎
func NewEngine(db *gorm.DB, users identity.Resolver, logger *zap.Logger) *Engine {
	return &Engine{
		db:     db,
		users:  users,
		logger: logger.Named("benevolence"),
	}
}

// CreateForUser 为新注册的用户创建一条全零的记录
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

// Nominate 让actor提名用户名为targetUsername的用户。
// 已经提名过或者次数用完时不修改任何状态，返回当前记录和相应的Outcome。
func (e *Engine) Nominate(ctx context.Context, actorID, targetUsername string) (*Record, Outcome, error) {
	targetID, err := e.users.ResolveUsername(ctx, targetUsername)
	if err != nil {
		return nil, 0, err
	}
	if targetID == actorID {
		return nil, 0, apperr.ErrSelfNomination
	}

	var (
		result  *Record
		outcome Outcome
	)
	err = database.RetryOnConflict(ctx, e.db, func(tx *gorm.DB) error {
		actor, err := findByOwner(tx, actorID)
		if err != nil {
			return err
		}

		switch {
		case actor.HasVoted(targetID):
			result, outcome = actor, OutcomeAlreadyMember
			return nil
		case len(actor.MyVotes) >= MaxVotes:
			result, outcome = actor, OutcomeQuotaReached
			return nil
		}

		if err := appendVote(tx, actor, targetID); err != nil {
			return err
		}
		if err := receiveNomination(tx, targetID); err != nil {
			return err
		}

		result, err = findByOwner(tx, actorID)
		outcome = OutcomeApplied
		return err
	})
	if err != nil {
		return nil, 0, err
	}

	e.logger.Debug("提名已处理",
		zap.String("actor", actorID),
		zap.String("target", targetID),
		zap.Stringer("outcome", outcome))
	return result, outcome, nil
}

// Report 让actor举报用户名为targetUsername的用户。
// 重复举报不修改任何状态。
func (e *Engine) Report(ctx context.Context, actorID, targetUsername string) (*Record, Outcome, error) {
	targetID, err := e.users.ResolveUsername(ctx, targetUsername)
	if err != nil {
		return nil, 0, err
	}

	var (
		result  *Record
		outcome Outcome
	)
	err = database.RetryOnConflict(ctx, e.db, func(tx *gorm.DB) error {
		actor, err := findByOwner(tx, actorID)
		if err != nil {
			return err
		}

		if actor.HasReported(targetID) {
			result, outcome = actor, OutcomeAlreadyMember
			return nil
		}

		if err := appendReport(tx, actor, targetID); err != nil {
			return err
		}
		if err := receiveReport(tx, targetID); err != nil {
			return err
		}

		// actor可能举报的是自己，重新读取以拿到最新的计数
		result, err = findByOwner(tx, actorID)
		outcome = OutcomeApplied
		return err
	})
	if err != nil {
		return nil, 0, err
	}

	e.logger.Debug("举报已处理",
		zap.String("actor", actorID),
		zap.String("target", targetID),
		zap.Stringer("outcome", outcome))
	return result, outcome, nil
}

// PublicView 生成任何人都可以查看的展示数据
func (e *Engine) PublicView(ctx context.Context, rec *Record) (*PublicView, error) {
	names, err := e.users.Usernames(ctx, []string{rec.OwnerID})
	if err != nil {
		return nil, fmt.Errorf("无法解析用户名: %w", err)
	}
	return &PublicView{
		ID:      rec.ID,
		Author:  names[rec.OwnerID],
		Granted: rec.Granted,
	}, nil
}

// OwnerView 生成记录所有者自己看到的展示数据，包含提名和举报列表
func (e *Engine) OwnerView(ctx context.Context, rec *Record) (*OwnerView, error) {
	public, err := e.PublicView(ctx, rec)
	if err != nil {
		return nil, err
	}
	votes, err := identity.DisplayNames(ctx, e.users, rec.MyVotes)
	if err != nil {
		return nil, fmt.Errorf("无法解析提名列表: %w", err)
	}
	reports, err := identity.DisplayNames(ctx, e.users, rec.MyReports)
	if err != nil {
		return nil, fmt.Errorf("无法解析举报列表: %w", err)
	}
	return &OwnerView{
		PublicView:          *public,
		NominationsReceived: rec.NominationsReceived,
		ReportsReceived:     rec.ReportsReceived,
		MyVotes:             votes,
		MyReports:           reports,
		VotesLeft:           rec.VotesLeft(),
	}, nil
}
