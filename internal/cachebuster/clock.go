package cachebuster

import "time"

// Clock 提供当前时间，测试中可替换为固定时钟
type Clock interface {
	Now() time.Time
}

// ClockFunc 函数适配 Clock
type ClockFunc func() time.Time

// Now 实现 Clock
func (f ClockFunc) Now() time.Time {
	return f()
}

// SystemClock 系统时钟
var SystemClock Clock = ClockFunc(time.Now)
