// Package shutdown 编排HTTP服务器和后台服务的优雅停机。
package shutdown

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SlpAus/standing-backend/pkg/lifecycle"
	"go.uber.org/zap"
)

const (
	httpTimeout       = 15 * time.Second
	backgroundTimeout = 10 * time.Second
)

type closer struct {
	name string
	fn   func() error
}

// Coordinator 在收到停机信号后依次关闭HTTP服务器、后台服务和底层连接
type Coordinator struct {
	manager *lifecycle.Manager
	closers []closer
	logger  *zap.Logger
}

// NewCoordinator 创建一个新的停机协调器
func NewCoordinator(manager *lifecycle.Manager, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		manager: manager,
		logger:  logger.Named("shutdown"),
	}
}

// OnClose 注册一个在最后阶段执行的关闭函数，按注册的相反顺序执行
func (c *Coordinator) OnClose(name string, fn func() error) {
	c.closers = append(c.closers, closer{name: name, fn: fn})
}

// Serve 启动server并阻塞，直到ctx结束、收到SIGINT/SIGTERM或server意外退出，
// 然后执行完整的停机流程。
func (c *Coordinator) Serve(ctx context.Context, server *http.Server) error {
	serveErr := make(chan error, 1)
	go func() {
		c.logger.Info("HTTP服务器已启动", zap.String("address", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	select {
	case <-sigCtx.Done():
		c.logger.Info("收到关闭信号，开始优雅停机")
	case err = <-serveErr:
		c.logger.Error("HTTP服务器意外退出", zap.Error(err))
	}

	c.shutdown(server)
	return err
}

func (c *Coordinator) shutdown(server *http.Server) {
	// 先停止接收新请求，等待进行中的请求完成
	ctx, cancel := context.WithTimeout(context.Background(), httpTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		c.logger.Error("HTTP服务器关闭失败", zap.Error(err))
	} else {
		c.logger.Info("HTTP服务器已关闭")
	}

	c.manager.Shutdown()
	if remaining := c.manager.WaitWithTimeout(backgroundTimeout); len(remaining) > 0 {
		c.logger.Warn("部分后台服务未能按时退出", zap.Strings("services", remaining))
	}

	for i := len(c.closers) - 1; i >= 0; i-- {
		cl := c.closers[i]
		if err := cl.fn(); err != nil {
			c.logger.Error("关闭失败", zap.String("resource", cl.name), zap.Error(err))
			continue
		}
		c.logger.Info("已关闭", zap.String("resource", cl.name))
	}

	c.logger.Info("优雅停机完成")
}
