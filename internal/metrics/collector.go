// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/microsoft/Agents-for-net-sub004/agent/streaming"
	"github.com/microsoft/Agents-for-net-sub004/types"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器，同时实现 streaming.Observer
type Collector struct {
	// HTTP 指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpRequestSize     *prometheus.HistogramVec
	httpResponseSize    *prometheus.HistogramVec

	// 流式回复指标
	streamsActive      *prometheus.GaugeVec
	streamsStarted     *prometheus.CounterVec
	streamsEnded       *prometheus.CounterVec
	streamDuration     *prometheus.HistogramVec
	streamActivities   *prometheus.CounterVec
	streamSendLatency  *prometheus.HistogramVec
	streamSendFailures *prometheus.CounterVec

	// 连接器指标
	connectorRetries *prometheus.CounterVec

	logger *zap.Logger
}

var _ streaming.Observer = (*Collector)(nil)

// NewCollector 创建指标收集器
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	// HTTP 指标
	c.httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	c.httpRequestSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_size_bytes",
			Help:      "HTTP request size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	c.httpResponseSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_response_size_bytes",
			Help:      "HTTP response size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	// 流式回复指标
	c.streamsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "streaming",
			Name:      "streams_active",
			Help:      "Number of streams currently open",
		},
		[]string{"channel"},
	)

	c.streamsStarted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "streaming",
			Name:      "streams_started_total",
			Help:      "Total number of streams started",
		},
		[]string{"channel"},
	)

	c.streamsEnded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "streaming",
			Name:      "streams_ended_total",
			Help:      "Total number of streams ended, by result",
		},
		[]string{"channel", "result"},
	)

	c.streamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "streaming",
			Name:      "stream_duration_seconds",
			Help:      "Time from the first queued item to the end of the stream",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"channel", "result"},
	)

	c.streamActivities = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "streaming",
			Name:      "activities_sent_total",
			Help:      "Total number of streaming activities accepted by the channel",
		},
		[]string{"channel", "stream_type"},
	)

	c.streamSendLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "streaming",
			Name:      "send_duration_seconds",
			Help:      "Channel send latency in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"channel", "stream_type"},
	)

	c.streamSendFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "streaming",
			Name:      "send_failures_total",
			Help:      "Total number of failed streaming sends",
		},
		[]string{"channel", "stream_type", "code"},
	)

	// 连接器指标
	c.connectorRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "connector",
			Name:      "retries_total",
			Help:      "Total number of retried outbound sends",
		},
		[]string{"code"},
	)

	c.logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// 🎯 HTTP 指标记录
// =============================================================================

// RecordHTTPRequest 记录 HTTP 请求
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration, requestSize, responseSize int64) {
	c.httpRequestsTotal.WithLabelValues(method, path, statusCode(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	c.httpRequestSize.WithLabelValues(method, path).Observe(float64(requestSize))
	c.httpResponseSize.WithLabelValues(method, path).Observe(float64(responseSize))
}

// =============================================================================
// 🌊 流式回复指标记录（streaming.Observer）
// =============================================================================

// StreamStarted 记录流开始
func (c *Collector) StreamStarted(channelID string) {
	ch := channelLabel(channelID)
	c.streamsStarted.WithLabelValues(ch).Inc()
	c.streamsActive.WithLabelValues(ch).Inc()
}

// ActivitySent 记录一次成功发送
func (c *Collector) ActivitySent(channelID string, streamType types.StreamType, latency time.Duration) {
	ch := channelLabel(channelID)
	c.streamActivities.WithLabelValues(ch, string(streamType)).Inc()
	c.streamSendLatency.WithLabelValues(ch, string(streamType)).Observe(latency.Seconds())
}

// SendFailed 记录一次失败发送
func (c *Collector) SendFailed(channelID string, streamType types.StreamType, err error) {
	c.streamSendFailures.WithLabelValues(channelLabel(channelID), string(streamType), errorCode(err)).Inc()
}

// StreamEnded 记录流结束
func (c *Collector) StreamEnded(channelID string, result streaming.Result, duration time.Duration) {
	ch := channelLabel(channelID)
	c.streamsActive.WithLabelValues(ch).Dec()
	c.streamsEnded.WithLabelValues(ch, result.String()).Inc()
	c.streamDuration.WithLabelValues(ch, result.String()).Observe(duration.Seconds())
}

// =============================================================================
// 🔌 连接器指标记录
// =============================================================================

// RecordConnectorRetry 记录一次出站重试，可直接作为 retry.Policy.OnRetry
func (c *Collector) RecordConnectorRetry(attempt int, err error, delay time.Duration) {
	c.connectorRetries.WithLabelValues(errorCode(err)).Inc()
	c.logger.Debug("connector retry",
		zap.Int("attempt", attempt),
		zap.Duration("delay", delay),
		zap.Error(err))
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

// statusCode 将 HTTP 状态码转换为字符串
func statusCode(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}

// channelLabel 规范化渠道标签，避免空值
func channelLabel(channelID string) string {
	if channelID == "" {
		return "unknown"
	}
	return channelID
}

// errorCode 提取 types.Error 错误码作为标签
func errorCode(err error) string {
	if code := types.GetErrorCode(err); code != "" {
		return string(code)
	}
	return "unknown"
}
