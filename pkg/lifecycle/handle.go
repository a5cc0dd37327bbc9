package lifecycle

import (
	"context"
	"time"
)

// Handle 是交给每个后台服务的生命周期句柄。
// 服务通过 Done 监听停机信号，并在退出前调用 Close。
type Handle struct {
	name  string
	ctx   context.Context
	close func()
}

// Name 返回服务注册时使用的名字
func (h *Handle) Name() string {
	return h.name
}

// Ctx 返回随停机信号取消的上下文
func (h *Handle) Ctx() context.Context {
	return h.ctx
}

// Done 在停机信号发出后关闭
func (h *Handle) Done() <-chan struct{} {
	return h.ctx.Done()
}

// Close 通知Manager该服务已经退出，可以重复调用
func (h *Handle) Close() {
	h.close()
}

// Sleep 休眠指定的时长，停机时提前返回上下文的错误
func (h *Handle) Sleep(d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-h.ctx.Done():
		return h.ctx.Err()
	case <-timer.C:
		return nil
	}
}
