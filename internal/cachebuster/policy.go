package cachebuster

import (
	"math"
	"time"
)

// ClockState 持久化的时钟状态
type ClockState struct {
	// LastManualClearAt 最近一次手动刷新时间（Unix 秒），OnPeriod/Manual 的下限
	LastManualClearAt int64 `json:"last_manual_clear_at"`
}

// Anchor 需要写回客户端的周期锚点
type Anchor struct {
	IssuedAt  int64 `json:"issued_at"`
	ExpiresAt int64 `json:"expires_at"`
}

// TTL 锚点有效期
func (a Anchor) TTL() time.Duration {
	return time.Duration(a.ExpiresAt-a.IssuedAt) * time.Second
}

// Result 版本号计算结果
type Result struct {
	Token    int64
	Strategy Strategy
	// Anchor 非 nil 时调用方需要把新锚点写回客户端
	Anchor *Anchor
}

// ComputeToken 根据策略计算当前版本号
//
// anchor 为客户端携带的周期锚点，nil 表示不存在。
// OnPeriod 下结果永远不小于 LastManualClearAt。
func ComputeToken(s Settings, state ClockState, anchor *int64, now time.Time) Result {
	nowUnix := now.Unix()
	res := Result{Strategy: s.Strategy}

	switch s.Strategy {
	case StrategyManual:
		res.Token = state.LastManualClearAt

	case StrategyOnPeriod:
		if anchor != nil {
			candidate := max(*anchor, state.LastManualClearAt)
			if elapsedMinutes(nowUnix, candidate) <= int64(s.PeriodMinutes) {
				res.Token = candidate
				return res
			}
		}
		res.Token = nowUnix
		res.Anchor = &Anchor{
			IssuedAt:  nowUnix,
			ExpiresAt: nowUnix + s.PeriodSeconds(),
		}

	default:
		res.Token = nowUnix
	}

	return res
}

// elapsedMinutes 先四舍五入再与周期比较，边界最多有 30 秒误差
func elapsedMinutes(now, since int64) int64 {
	return int64(math.Round(float64(now-since) / 60))
}

// RecordManualClear 手动刷新，单调推进 LastManualClearAt
func RecordManualClear(state ClockState, now time.Time) ClockState {
	state.LastManualClearAt = max(state.LastManualClearAt, now.Unix())
	return state
}
