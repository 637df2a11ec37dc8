package cachebuster

import "strings"

// Strategy 版本号刷新策略
type Strategy string

const (
	// StrategyOnEveryRequest 每次请求都使用当前时间，资源永不命中缓存
	StrategyOnEveryRequest Strategy = "every_time"
	// StrategyOnPeriod 按周期刷新，周期锚点保存在客户端 Cookie 中
	StrategyOnPeriod Strategy = "every_period"
	// StrategyManual 只在管理员手动刷新时变化
	StrategyManual Strategy = "never"
)

// Strategies 所有合法策略
var Strategies = []Strategy{StrategyOnEveryRequest, StrategyOnPeriod, StrategyManual}

// ParseStrategy 解析策略，未知值回退到 StrategyOnEveryRequest
func ParseStrategy(s string) Strategy {
	candidate := Strategy(strings.ToLower(strings.TrimSpace(s)))
	for _, st := range Strategies {
		if st == candidate {
			return st
		}
	}
	return StrategyOnEveryRequest
}

// Valid 是否为合法策略
func (s Strategy) Valid() bool {
	for _, st := range Strategies {
		if st == s {
			return true
		}
	}
	return false
}

func (s Strategy) String() string {
	return string(s)
}
