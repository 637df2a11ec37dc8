package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TokensComputed 计算版本号次数，按策略区分
	TokensComputed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_buster_tokens_computed_total",
			Help: "Total number of cache-busting tokens computed",
		},
		[]string{"strategy"},
	)

	// AnchorsIssued 新签发的周期锚点
	AnchorsIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cache_buster_anchors_issued_total",
			Help: "Total number of period anchors issued to clients",
		},
	)

	// ManualClears 手动刷新次数，按来源区分（api / refresh_link / startup）
	ManualClears = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_buster_manual_clears_total",
			Help: "Total number of manual cache clears",
		},
		[]string{"source"},
	)

	// NonceVerifications 验证令牌校验结果
	NonceVerifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_buster_nonce_verifications_total",
			Help: "Total number of verification token checks",
		},
		[]string{"action", "result"},
	)

	// URLsRewritten 改写的资源 URL 数
	URLsRewritten = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cache_buster_urls_rewritten_total",
			Help: "Total number of asset URLs rewritten",
		},
	)

	// LastManualClear 最近一次手动刷新时间
	LastManualClear = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cache_buster_last_manual_clear_timestamp_seconds",
			Help: "Unix time of the last manual cache clear",
		},
	)
)

// RecordToken 记录一次版本号计算
func RecordToken(strategy string, anchorIssued bool) {
	TokensComputed.WithLabelValues(strategy).Inc()
	if anchorIssued {
		AnchorsIssued.Inc()
	}
}

// RecordManualClear 记录一次手动刷新
func RecordManualClear(source string, at int64) {
	ManualClears.WithLabelValues(source).Inc()
	LastManualClear.Set(float64(at))
}

// RecordNonce 记录验证令牌校验结果
func RecordNonce(action string, valid bool) {
	result := "rejected"
	if valid {
		result = "accepted"
	}
	NonceVerifications.WithLabelValues(action, result).Inc()
}

// RecordRewrites 记录改写数量
func RecordRewrites(n int) {
	URLsRewritten.Add(float64(n))
}
