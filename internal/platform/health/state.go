package health

// State 描述Redis缓存当前是否可以信任
type State int

const (
	// StateHealthy 表示Redis可用且缓存与数据库一致
	StateHealthy State = iota
	// StateDegraded 表示Redis不可达，所有查询直接走数据库
	StateDegraded
	// StateRebuilding 表示Redis重启过或断连后恢复，缓存正在或等待重建
	StateRebuilding
)

func (s State) String() string {
	switch s {
	case StateHealthy:
		return "healthy"
	case StateDegraded:
		return "degraded"
	case StateRebuilding:
		return "rebuilding"
	default:
		return "unknown"
	}
}

// assess 根据一次探测结果推进状态机，返回是否需要重建缓存。
// 调用方必须持有c.mu。
func (c *Checker) assess(connected bool, runID string) (needsRebuild bool) {
	restarted := c.lastKnownRunID != "" && c.lastKnownRunID != runID

	switch c.state {
	case StateHealthy:
		if !connected {
			c.state = StateDegraded
			c.logger.Warn("Redis连接丢失，状态 -> degraded")
		} else if restarted {
			c.state = StateRebuilding
			needsRebuild = true
			c.logger.Warn("检测到Redis重启，状态 -> rebuilding",
				zapRunIDs(c.lastKnownRunID, runID)...)
		}
	case StateDegraded:
		if !connected {
			break
		}
		// 断连期间的缓存写入和删除可能丢失，即使没有重启也要重建
		c.state = StateRebuilding
		needsRebuild = true
		if restarted {
			c.logger.Warn("Redis已恢复但发生过重启，状态 -> rebuilding",
				zapRunIDs(c.lastKnownRunID, runID)...)
		} else {
			c.logger.Info("Redis连接已恢复，状态 -> rebuilding")
		}
	case StateRebuilding:
		if !connected {
			c.state = StateDegraded
			c.logger.Warn("重建期间Redis连接再次丢失，状态 -> degraded")
		} else {
			// 仍处于重建状态说明上一次重建没有成功
			needsRebuild = true
		}
	}

	if connected {
		c.lastKnownRunID = runID
	}
	return needsRebuild
}

// markRebuilt 记录一次重建的结果。
// 重建期间Redis再次重启时，这次重建不算数。调用方必须持有c.mu。
func (c *Checker) markRebuilt(success bool, runIDAfter string) {
	if c.state != StateRebuilding {
		return
	}
	if success && c.lastKnownRunID != runIDAfter {
		c.logger.Warn("重建期间Redis再次重启，重建无效",
			zapRunIDs(c.lastKnownRunID, runIDAfter)...)
		c.lastKnownRunID = runIDAfter
		return
	}
	if success {
		c.state = StateHealthy
		c.logger.Info("缓存重建成功，状态 -> healthy")
		return
	}
	c.logger.Warn("缓存重建失败，保持 rebuilding 状态等待重试")
}
