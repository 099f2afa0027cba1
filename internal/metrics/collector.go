// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器
type Collector struct {
	// 工具调用指标
	toolInvocationsTotal   *prometheus.CounterVec
	toolInvocationDuration *prometheus.HistogramVec

	// 记录持久化指标
	recordsWrittenTotal *prometheus.CounterVec
	writeDuration       *prometheus.HistogramVec

	// 会话指标
	sessionsActive prometheus.Gauge
	turnsTotal     *prometheus.CounterVec

	logger *zap.Logger
}

// NewCollector 创建指标收集器并注册到 registerer
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	factory := func(opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
		v := prometheus.NewCounterVec(opts, labels)
		reg.MustRegister(v)
		return v
	}

	c.toolInvocationsTotal = factory(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tool_invocations_total",
		Help:      "Total number of tool invocations",
	}, []string{"tool", "outcome"})

	c.toolInvocationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "tool_invocation_duration_seconds",
		Help:      "Tool invocation duration in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"tool"})
	reg.MustRegister(c.toolInvocationDuration)

	c.recordsWrittenTotal = factory(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "records_written_total",
		Help:      "Total number of records persisted",
	}, []string{"kind"})

	c.writeDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "record_write_duration_seconds",
		Help:      "Record write duration in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"kind"})
	reg.MustRegister(c.writeDuration)

	c.sessionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "sessions_active",
		Help:      "Number of currently active conversation sessions",
	})
	reg.MustRegister(c.sessionsActive)

	c.turnsTotal = factory(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "session_turns_total",
		Help:      "Total number of processed conversation turns",
	}, []string{"type"})

	return c
}

// ObserveToolInvocation 记录一次工具调用
func (c *Collector) ObserveToolInvocation(tool, outcome string, d time.Duration) {
	c.toolInvocationsTotal.WithLabelValues(tool, outcome).Inc()
	c.toolInvocationDuration.WithLabelValues(tool).Observe(d.Seconds())
}

// ObserveRecordWritten 记录一次持久化
func (c *Collector) ObserveRecordWritten(kind string, d time.Duration) {
	c.recordsWrittenTotal.WithLabelValues(kind).Inc()
	c.writeDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// SessionStarted 会话开始
func (c *Collector) SessionStarted() { c.sessionsActive.Inc() }

// SessionEnded 会话结束
func (c *Collector) SessionEnded() { c.sessionsActive.Dec() }

// ObserveTurn 记录一个会话轮次（utterance / tool_call）
func (c *Collector) ObserveTurn(turnType string) {
	c.turnsTotal.WithLabelValues(turnType).Inc()
}
