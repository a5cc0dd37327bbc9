package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/SlpAus/standing-backend/api"
	"github.com/SlpAus/standing-backend/internal/benevolence"
	"github.com/SlpAus/standing-backend/internal/platform/config"
	"github.com/SlpAus/standing-backend/internal/platform/database"
	"github.com/SlpAus/standing-backend/internal/platform/health"
	"github.com/SlpAus/standing-backend/internal/platform/logging"
	"github.com/SlpAus/standing-backend/internal/platform/ratelimit"
	"github.com/SlpAus/standing-backend/internal/platform/shutdown"
	"github.com/SlpAus/standing-backend/internal/platform/startup"
	"github.com/SlpAus/standing-backend/internal/sharetime"
	"github.com/SlpAus/standing-backend/internal/user"
	"github.com/SlpAus/standing-backend/pkg/lifecycle"
	"github.com/SlpAus/standing-backend/pkg/token"
	"github.com/gin-gonic/gin"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

func main() {
	app := &cli.Command{
		Name:  "standing",
		Usage: "benevolence 与 share time 后端服务",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "config.yaml 所在的目录",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "启动HTTP服务",
				Action: serve,
			},
			{
				Name:   "migrate",
				Usage:  "只迁移数据库表结构",
				Action: migrate,
			},
		},
		DefaultCommand: "serve",
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		log.Printf("错误: %v", err)
		os.Exit(1)
	}
}

// setup 加载配置并创建日志器
func setup(cmd *cli.Command) (*config.Config, *zap.Logger, error) {
	cfg, err := config.LoadConfig(cmd.String("config"))
	if err != nil {
		return nil, nil, fmt.Errorf("无法加载配置: %w", err)
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func migrate(_ context.Context, cmd *cli.Command) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.Open(cfg.Database, logger)
	if err != nil {
		return err
	}
	defer database.Close(db) //nolint:errcheck

	if err := startup.Migrate(db, logger); err != nil {
		return err
	}
	logger.Info("数据库迁移完成")
	return nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck
	gin.SetMode(cfg.Server.Mode)

	manager := lifecycle.NewManager(logger)
	coordinator := shutdown.NewCoordinator(manager, logger)

	db, err := database.Open(cfg.Database, logger)
	if err != nil {
		return err
	}
	coordinator.OnClose("database", func() error { return database.Close(db) })

	rdb, err := database.NewRedis(ctx, cfg.Database.Redis, logger)
	if err != nil {
		_ = database.Close(db)
		return err
	}
	coordinator.OnClose("redis", rdb.Close)

	var dir *user.Directory
	checker := health.NewChecker(health.RedisProbe(rdb), func(ctx context.Context) error {
		return startup.RebuildCache(ctx, dir, logger)
	}, logger)
	dir = user.NewDirectory(db, rdb, checker.IsHealthy, logger)

	// 阻塞式获取初始run_id，之后的重启检测都以它为基准
	if err := checker.Init(ctx); err != nil {
		return fmt.Errorf("无法获取Redis run_id: %w", err)
	}
	if err := startup.InitializeApplication(ctx, db, dir, logger); err != nil {
		return fmt.Errorf("应用初始化失败: %w", err)
	}
	checker.Check(ctx)
	if err := manager.Go("redis-health", checker.Run); err != nil {
		return err
	}

	tokens := token.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	bene := benevolence.NewEngine(db, dir, logger)
	share := sharetime.NewEngine(db, dir, logger)
	users := user.NewService(db, dir, tokens, api.AccountHooks(bene, share), logger)

	limiter := ratelimit.New(rdb, checker.IsHealthy, "ratelimit:account:",
		cfg.Server.RateLimit.Limit, cfg.Server.RateLimit.Window, logger)

	router, err := api.NewRouter(cfg.Server, cfg.Auth, api.Dependencies{
		DB:             db,
		Users:          users,
		Benevolence:    bene,
		ShareTime:      share,
		Health:         checker,
		AccountLimiter: limiter,
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return coordinator.Serve(ctx, server)
}
