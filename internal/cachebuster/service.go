package cachebuster

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/ding113/asset-cache-buster/internal/metrics"
	"github.com/ding113/asset-cache-buster/internal/pkg/logger"
	"github.com/ding113/asset-cache-buster/internal/store"
)

// 手动刷新来源，用于指标
const (
	SourceAPI         = "api"
	SourceRefreshLink = "refresh_link"
	SourceStartup     = "startup"
)

// Service 以设置存储为后端的版本号服务
// 每次调用都从存储读取配置，不持有进程级单例状态
type Service struct {
	store store.Store
	clock Clock
}

// NewService 创建版本号服务，clock 为 nil 时使用系统时钟
func NewService(s store.Store, clock Clock) *Service {
	if clock == nil {
		clock = SystemClock
	}
	return &Service{store: s, clock: clock}
}

// Settings 读取配置，缺失或损坏时返回默认配置
func (s *Service) Settings(ctx context.Context) (Settings, error) {
	raw, ok, err := s.store.Get(ctx, store.KeyOptions)
	if err != nil {
		return DefaultSettings(), fmt.Errorf("load settings: %w", err)
	}
	if !ok {
		return DefaultSettings(), nil
	}

	settings, err := SanitizeJSON([]byte(raw))
	if err != nil {
		logger.Warn().Err(err).Msg("Stored settings are corrupt, using defaults")
	}
	return settings, nil
}

// SaveSettings 规范化后保存配置
func (s *Service) SaveSettings(ctx context.Context, raw map[string]any) (Settings, error) {
	settings := Sanitize(raw)

	data, err := json.Marshal(settings)
	if err != nil {
		return settings, fmt.Errorf("encode settings: %w", err)
	}
	if err := s.store.Set(ctx, store.KeyOptions, string(data)); err != nil {
		return settings, fmt.Errorf("save settings: %w", err)
	}

	log := logger.WithStrategy(settings.Strategy.String())
	log.Info().
		Int("period_minutes", settings.PeriodMinutes).
		Bool("show_manual_trigger", settings.ShowManualTrigger).
		Msg("Cache buster settings updated")

	return settings, nil
}

// ClockState 读取时钟状态，缺失或损坏时视为 0
func (s *Service) ClockState(ctx context.Context) (ClockState, error) {
	raw, ok, err := s.store.Get(ctx, store.KeyClearCacheTime)
	if err != nil {
		return ClockState{}, fmt.Errorf("load clear time: %w", err)
	}
	if !ok {
		return ClockState{}, nil
	}

	at, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || at < 0 {
		logger.Warn().Str("value", raw).Msg("Stored clear time is corrupt, treating as 0")
		return ClockState{}, nil
	}
	return ClockState{LastManualClearAt: at}, nil
}

// ClearNow 立即推进版本号下限
func (s *Service) ClearNow(ctx context.Context, source string) (ClockState, error) {
	state, err := s.ClockState(ctx)
	if err != nil {
		return state, err
	}

	state = RecordManualClear(state, s.clock.Now())
	value := strconv.FormatInt(state.LastManualClearAt, 10)
	if err := s.store.Set(ctx, store.KeyClearCacheTime, value); err != nil {
		return state, fmt.Errorf("save clear time: %w", err)
	}

	metrics.RecordManualClear(source, state.LastManualClearAt)
	logger.Info().
		Str("source", source).
		Int64("last_manual_clear_at", state.LastManualClearAt).
		Msg("Asset cache cleared")

	return state, nil
}

// Token 计算当前请求的版本号
// anchor 来自客户端，不可信：非正数或晚于当前时间的锚点视为不存在
func (s *Service) Token(ctx context.Context, anchor *int64) (Result, error) {
	settings, err := s.Settings(ctx)
	if err != nil {
		return Result{}, err
	}

	now := s.clock.Now()

	var state ClockState
	if settings.Strategy != StrategyOnEveryRequest {
		if state, err = s.ClockState(ctx); err != nil {
			return Result{}, err
		}
	}

	if anchor != nil && (*anchor <= 0 || *anchor > now.Unix()) {
		log := logger.WithStrategy(settings.Strategy.String())
		log.Debug().Int64("anchor", *anchor).Msg("Ignoring untrusted period anchor")
		anchor = nil
	}

	res := ComputeToken(settings, state, anchor, now)
	metrics.RecordToken(settings.Strategy.String(), res.Anchor != nil)
	return res, nil
}

// Bootstrap 进程启动时调用：OnEveryRequest 下刷新一次下限
// 之后切换到 Manual 时从启动时间开始，而不是停留在很久以前的值
func (s *Service) Bootstrap(ctx context.Context) error {
	settings, err := s.Settings(ctx)
	if err != nil {
		return err
	}
	if settings.Strategy != StrategyOnEveryRequest {
		return nil
	}
	_, err = s.ClearNow(ctx, SourceStartup)
	return err
}
