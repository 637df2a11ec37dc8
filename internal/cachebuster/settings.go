package cachebuster

import (
	"encoding/json"
	"math"
	"reflect"
	"strconv"
	"strings"
)

// 周期分钟数范围
const (
	MinPeriodMinutes     = 1
	MaxPeriodMinutes     = 99999
	DefaultPeriodMinutes = 10
)

// 原始配置中的字段名
const (
	KeyStrategy          = "strategy"
	KeyPeriodMinutes     = "period_minutes"
	KeyShowManualTrigger = "show_manual_trigger"
)

// Settings 管理员配置，只能通过 Sanitize 构造出可信值
type Settings struct {
	Strategy          Strategy `json:"strategy"`
	PeriodMinutes     int      `json:"period_minutes"`
	ShowManualTrigger bool     `json:"show_manual_trigger"`
}

// DefaultSettings 默认配置
func DefaultSettings() Settings {
	return Settings{
		Strategy:      StrategyOnEveryRequest,
		PeriodMinutes: DefaultPeriodMinutes,
	}
}

// PeriodSeconds 周期长度（秒）
func (s Settings) PeriodSeconds() int64 {
	return int64(s.PeriodMinutes) * 60
}

// Raw 转回原始 map，Sanitize(s.Raw()) == s
func (s Settings) Raw() map[string]any {
	return map[string]any{
		KeyStrategy:          string(s.Strategy),
		KeyPeriodMinutes:     s.PeriodMinutes,
		KeyShowManualTrigger: s.ShowManualTrigger,
	}
}

// Sanitize 规范化外部输入的配置，永不失败
func Sanitize(raw map[string]any) Settings {
	s := DefaultSettings()

	if v, ok := raw[KeyStrategy]; ok {
		if str, ok := v.(string); ok {
			s.Strategy = ParseStrategy(str)
		}
	}

	if v, ok := raw[KeyPeriodMinutes]; ok {
		if n, ok := toInt(v); ok {
			s.PeriodMinutes = clamp(n, MinPeriodMinutes, MaxPeriodMinutes)
		}
	}

	s.ShowManualTrigger = truthy(raw[KeyShowManualTrigger])

	return s
}

// SanitizeJSON 从 JSON 解析并规范化，损坏的 JSON 得到默认配置
func SanitizeJSON(data []byte) (Settings, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return DefaultSettings(), err
	}
	return Sanitize(raw), nil
}

// toInt 把数字或数字字符串转换为整数，浮点数截断
func toInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return clampUint(uint64(n)), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return clampUint(n), true
	case float32:
		return floatToInt(float64(n))
	case float64:
		return floatToInt(n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		if f, err := n.Float64(); err == nil {
			return floatToInt(f)
		}
		return 0, false
	case string:
		str := strings.TrimSpace(n)
		if i, err := strconv.ParseInt(str, 10, 64); err == nil {
			return i, true
		}
		if f, err := strconv.ParseFloat(str, 64); err == nil {
			return floatToInt(f)
		}
		return 0, false
	default:
		return 0, false
	}
}

func floatToInt(f float64) (int64, bool) {
	if math.IsNaN(f) {
		return 0, false
	}
	if f >= math.MaxInt64 {
		return math.MaxInt64, true
	}
	if f <= math.MinInt64 {
		return math.MinInt64, true
	}
	return int64(f), true
}

func clampUint(n uint64) int64 {
	if n > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(n)
}

func clamp(n int64, lo, hi int) int {
	if n < int64(lo) {
		return lo
	}
	if n > int64(hi) {
		return hi
	}
	return int(n)
}

// truthy 布尔强转：nil、false、0、""、"0"、空集合为假
func truthy(v any) bool {
	switch b := v.(type) {
	case nil:
		return false
	case bool:
		return b
	case string:
		return b != "" && b != "0"
	case json.Number:
		f, err := b.Float64()
		return err != nil || f != 0
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint() != 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() != 0
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() != 0
	case reflect.Ptr, reflect.Interface:
		return !rv.IsNil()
	}
	return true
}
