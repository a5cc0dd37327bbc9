package sharetime

import (
	"fmt"
	"net/http"

	"github.com/SlpAus/standing-backend/internal/platform/apperr"
	"github.com/SlpAus/standing-backend/internal/user"
	"github.com/gin-gonic/gin"
)

// Handler 提供share time相关的HTTP接口
type Handler struct {
	engine *Engine
}

// NewHandler 创建一个新的share time Handler
func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

// GetByAuthor 处理 GET /api/sharetime?author=<username>
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

// GetMine 处理 GET /api/sharetime/mine
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
