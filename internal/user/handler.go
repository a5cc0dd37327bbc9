package user

import (
	"fmt"
	"net/http"

	"github.com/SlpAus/standing-backend/internal/platform/apperr"
	"github.com/gin-gonic/gin"
)

// credentialsBody 定义了注册和登录时请求体的JSON结构
type credentialsBody struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Handler 提供账户和会话相关的HTTP接口
type Handler struct {
	svc          *Service
	cookieSecure bool
}

// NewHandler 创建一个新的账户Handler
func NewHandler(svc *Service, cookieSecure bool) *Handler {
	return &Handler{svc: svc, cookieSecure: cookieSecure}
}

func bindCredentials(c *gin.Context) (credentialsBody, bool) {
	var body credentialsBody
	if err := c.ShouldBindJSON(&body); err != nil {
		apperr.Respond(c, fmt.Errorf("%w: %v", apperr.ErrInvalidInput, err))
		return body, false
	}
	return body, true
}

// Register 处理 POST /api/users
func (h *Handler) Register(c *gin.Context) {
	body, ok := bindCredentials(c)
	if !ok {
		return
	}

	u, err := h.svc.Register(c.Request.Context(), body.Username, body.Password)
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": fmt.Sprintf("用户 %s 注册成功。", u.Username),
		"user":    u.Profile(),
	})
}

// Login 处理 POST /api/session
func (h *Handler) Login(c *gin.Context) {
	body, ok := bindCredentials(c)
	if !ok {
		return
	}

	u, signed, err := h.svc.Login(c.Request.Context(), body.Username, body.Password)
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookieName, signed, int(h.svc.tokens.TTL().Seconds()), "/", "", h.cookieSecure, true)
	c.JSON(http.StatusOK, gin.H{
		"message": fmt.Sprintf("欢迎回来，%s。", u.Username),
		"user":    u.Profile(),
		"token":   signed,
	})
}

// Logout 处理 DELETE /api/session
func (h *Handler) Logout(c *gin.Context) {
	if err := h.svc.Logout(c.Request.Context(), CurrentSession(c)); err != nil {
		apperr.Respond(c, err)
		return
	}
	h.clearCookie(c)
	c.JSON(http.StatusOK, gin.H{"message": "已退出登录。"})
}

// DeleteAccount 处理 DELETE /api/users/me
func (h *Handler) DeleteAccount(c *gin.Context) {
	if err := h.svc.Remove(c.Request.Context(), ActorID(c)); err != nil {
		apperr.Respond(c, err)
		return
	}
	h.clearCookie(c)
	c.JSON(http.StatusOK, gin.H{"message": "账户已注销。"})
}

func (h *Handler) clearCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookieName, "", -1, "/", "", h.cookieSecure, true)
}
