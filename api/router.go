package api

import (
	"fmt"
	"time"

	"github.com/SlpAus/standing-backend/internal/benevolence"
	"github.com/SlpAus/standing-backend/internal/platform/config"
	"github.com/SlpAus/standing-backend/internal/platform/health"
	"github.com/SlpAus/standing-backend/internal/platform/ratelimit"
	"github.com/SlpAus/standing-backend/internal/sharetime"
	"github.com/SlpAus/standing-backend/internal/user"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Dependencies 汇总了注册路由所需的全部组件
type Dependencies struct {
	DB          *gorm.DB
	Users       *user.Service
	Benevolence *benevolence.Engine
	ShareTime   *sharetime.Engine
	Health      *health.Checker
	// AccountLimiter 限制注册和登录的频率，为nil时不限制
	AccountLimiter *ratelimit.Limiter
	Logger         *zap.Logger
}

// NewRouter 创建Gin引擎，安装中间件并注册所有路由
func NewRouter(cfg config.ServerConfig, authCfg config.AuthConfig, deps Dependencies) (*gin.Engine, error) {
	r := gin.New()
	// 只有来自这些代理的 X-Forwarded-For 才会被采信，列表为空时直接使用连接的对端地址
	if err := r.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, fmt.Errorf("server.trustedProxies 不合法: %w", err)
	}
	r.Use(RequestLogger(deps.Logger), Recovery(deps.Logger))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Cors.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	SetupRoutes(r, authCfg, deps)
	return r, nil
}

// SetupRoutes 注册项目的所有API路由
func SetupRoutes(router *gin.Engine, authCfg config.AuthConfig, deps Dependencies) {
	requireUser := user.RequireUser(deps.Users)
	limitAccounts := func(c *gin.Context) { c.Next() }
	if deps.AccountLimiter != nil {
		limitAccounts = deps.AccountLimiter.Middleware()
	}

	accounts := user.NewHandler(deps.Users, authCfg.CookieSecure)
	bene := benevolence.NewHandler(deps.Benevolence)
	share := sharetime.NewHandler(deps.ShareTime)

	api := router.Group("/api")
	{
		api.GET("/health", deps.Health.Handler(deps.DB))

		// 账户 /api/users
		api.POST("/users", limitAccounts, accounts.Register)
		api.DELETE("/users/me", requireUser, accounts.DeleteAccount)

		// 会话 /api/session
		api.POST("/session", limitAccounts, accounts.Login)
		api.DELETE("/session", requireUser, accounts.Logout)

		// 提名与举报 /api/benevolence
		beneRoutes := api.Group("/benevolence")
		{
			beneRoutes.GET("", bene.GetByAuthor)
			beneRoutes.GET("/mine", requireUser, bene.GetMine)
			beneRoutes.PUT("/nominate", requireUser, bene.Nominate)
			beneRoutes.PUT("/report", requireUser, bene.Report)
		}

		// 在线时长 /api/sharetime
		shareRoutes := api.Group("/sharetime")
		{
			shareRoutes.GET("", share.GetByAuthor)
			shareRoutes.GET("/mine", requireUser, share.GetMine)
		}
	}
}
