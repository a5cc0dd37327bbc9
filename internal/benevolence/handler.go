package benevolence

import (
	"context"
	"fmt"
	"net/http"

	"github.com/SlpAus/standing-backend/internal/platform/apperr"
	"github.com/SlpAus/standing-backend/internal/user"
	"github.com/gin-gonic/gin"
)

// targetBody 定义了提名和举报时请求体的JSON结构
type targetBody struct {
	User string `json:"user" binding:"required"`
}

// Handler 提供benevolence相关的HTTP接口
type Handler struct {
	engine *Engine
}

// NewHandler 创建一个新的benevolence Handler
func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

// GetByAuthor 处理 GET /api/benevolence?author=<username>
func (h *Handler) GetByAuthor(c *gin.Context) {
	author := c.Query("author")
	if author == "" {
		apperr.Respond(c, fmt.Errorf("%w: 缺少author参数", apperr.ErrInvalidInput))
		return
	}

	ctx := c.Request.Context()
	rec, err := h.engine.GetByUsername(ctx, author)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	view, err := h.engine.PublicView(ctx, rec)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// GetMine 处理 GET /api/benevolence/mine
func (h *Handler) GetMine(c *gin.Context) {
	ctx := c.Request.Context()
	rec, err := h.engine.GetByID(ctx, user.ActorID(c))
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	view, err := h.engine.OwnerView(ctx, rec)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Nominate 处理 PUT /api/benevolence/nominate
func (h *Handler) Nominate(c *gin.Context) {
	h.handleMembership(c, h.engine.Nominate, map[Outcome]string{
		OutcomeApplied:       "已收到你的提名。",
		OutcomeAlreadyMember: "你已经提名过该用户。",
	})
}

// Report 处理 PUT /api/benevolence/report
func (h *Handler) Report(c *gin.Context) {
	h.handleMembership(c, h.engine.Report, map[Outcome]string{
		OutcomeApplied:       "已收到你的举报。",
		OutcomeAlreadyMember: "你已经举报过该用户。",
	})
}

type membershipOp func(ctx context.Context, actorID, targetUsername string) (*Record, Outcome, error)

func (h *Handler) handleMembership(c *gin.Context, op membershipOp, messages map[Outcome]string) {
	var body targetBody
	if err := c.ShouldBindJSON(&body); err != nil {
		apperr.Respond(c, fmt.Errorf("%w: %v", apperr.ErrInvalidInput, err))
		return
	}

	ctx := c.Request.Context()
	rec, outcome, err := op(ctx, user.ActorID(c), body.User)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	view, err := h.engine.OwnerView(ctx, rec)
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	switch outcome {
	case OutcomeApplied:
		c.JSON(http.StatusCreated, gin.H{"message": messages[outcome], "benevolence": view})
	case OutcomeAlreadyMember:
		c.JSON(http.StatusOK, gin.H{"message": messages[outcome], "benevolence": view})
	case OutcomeQuotaReached:
		c.JSON(apperr.HTTPStatus(apperr.ErrQuotaExceeded), gin.H{
			"error":       apperr.ErrQuotaExceeded.Error(),
			"benevolence": view,
		})
	}
}
