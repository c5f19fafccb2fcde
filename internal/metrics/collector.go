// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器。所有方法对 nil 接收者安全，
// 未启用指标时各组件可直接持有 nil *Collector。
type Collector struct {
	// Oracle 指标
	oracleCallsTotal *prometheus.CounterVec

	// 选择器指标
	filesVerifiedTotal   *prometheus.CounterVec
	selectorPayloadBytes prometheus.Histogram

	// 裁剪器指标
	pruneRunsTotal *prometheus.CounterVec

	logger *zap.Logger
}

// NewCollector 创建指标收集器并注册到给定 registry。
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.oracleCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "oracle_calls_total",
			Help:      "Total number of relevance oracle calls",
		},
		[]string{"op", "outcome"},
	)

	c.filesVerifiedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_verified_total",
			Help:      "Total number of file relevance verdicts",
		},
		[]string{"status"},
	)

	c.selectorPayloadBytes = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "selector_payload_tokens",
			Help:      "Token size of assembled file payloads",
			Buckets:   prometheus.ExponentialBuckets(256, 4, 8),
		},
	)

	c.pruneRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prune_runs_total",
			Help:      "Total number of conversation pruning runs by final state",
		},
		[]string{"state"},
	)

	reg.MustRegister(c.oracleCallsTotal, c.filesVerifiedTotal, c.selectorPayloadBytes, c.pruneRunsTotal)
	return c
}

// RecordOracleCall 记录一次 Oracle 调用结果。
func (c *Collector) RecordOracleCall(op, outcome string) {
	if c == nil {
		return
	}
	c.oracleCallsTotal.WithLabelValues(op, outcome).Inc()
}

// RecordVerdict 记录一个文件验证结论。
func (c *Collector) RecordVerdict(status string) {
	if c == nil {
		return
	}
	c.filesVerifiedTotal.WithLabelValues(status).Inc()
}

// RecordPayloadTokens 记录最终拼装载荷的 token 数。
func (c *Collector) RecordPayloadTokens(tokens int) {
	if c == nil {
		return
	}
	c.selectorPayloadBytes.Observe(float64(tokens))
}

// RecordPruneRun 记录一次裁剪运行的最终状态。
func (c *Collector) RecordPruneRun(state string) {
	if c == nil {
		return
	}
	c.pruneRunsTotal.WithLabelValues(state).Inc()
}
