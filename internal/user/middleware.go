package user

import (
	"strings"

	"github.com/SlpAus/standing-backend/internal/platform/apperr"
	"github.com/SlpAus/standing-backend/pkg/token"
	"github.com/gin-gonic/gin"
)

const (
	CookieName = "session"
	ActorIDKey = "actorID"
	SessionKey = "session"
)

// RequireUser 从cookie或Authorization头中读取会话令牌，
// 校验通过后把当前用户ID和会话放入Gin上下文，否则直接返回401。
func RequireUser(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := c.Cookie(CookieName)
		if err != nil || raw == "" {
			raw = strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		}

		session, err := svc.Authorize(c.Request.Context(), raw)
		if err != nil {
			apperr.Respond(c, err)
			c.Abort()
			return
		}

		c.Set(ActorIDKey, session.UserID)
		c.Set(SessionKey, session)
		c.Next()
	}
}

// ActorID 返回由 RequireUser 放入上下文的当前用户ID
func ActorID(c *gin.Context) string {
	return c.GetString(ActorIDKey)
}

// CurrentSession 返回由 RequireUser 放入上下文的会话
func CurrentSession(c *gin.Context) token.Session {
	session, _ := c.MustGet(SessionKey).(token.Session)
	return session
}
