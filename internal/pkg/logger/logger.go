package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

var (
	// Log 全局日志实例
	// 未调用 Init 时为 Nop，避免测试中输出日志
	Log = zerolog.Nop()
)

// Config 日志配置
type Config struct {
	Level  string // debug, info, warn, error
	Format string // json, text
	Output io.Writer
}

// Init 初始化日志
func Init(cfg Config) {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}

	var writer io.Writer = out
	if cfg.Format == "text" {
		writer = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: "2006-01-02 15:04:05.000",
		}
	}

	Log = zerolog.New(writer).
		With().
		Timestamp().
		Caller().
		Logger()
}

// Debug 返回 debug 级别的事件
func Debug() *zerolog.Event {
	return Log.Debug()
}

// Info 返回 info 级别的事件
func Info() *zerolog.Event {
	return Log.Info()
}

// Warn 返回 warn 级别的事件
func Warn() *zerolog.Event {
	return Log.Warn()
}

// Error 返回 error 级别的事件
func Error() *zerolog.Event {
	return Log.Error()
}

// Fatal 返回 fatal 级别的事件
func Fatal() *zerolog.Event {
	return Log.Fatal()
}

// WithRequestID 创建带有请求 ID 的日志
func WithRequestID(requestID string) zerolog.Logger {
	return Log.With().Str("request_id", requestID).Logger()
}

// WithStrategy 创建带有版本号策略的日志
func WithStrategy(strategy string) zerolog.Logger {
	return Log.With().Str("strategy", strategy).Logger()
}
