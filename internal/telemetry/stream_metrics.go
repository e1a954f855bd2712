package telemetry

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/microsoft/Agents-for-net-sub004/agent/streaming"
	"github.com/microsoft/Agents-for-net-sub004/types"
)

// StreamMetrics records stream lifecycle events as OTel instruments.
// It complements the Prometheus collector when metrics are exported over OTLP.
type StreamMetrics struct {
	active   metric.Int64UpDownCounter
	ended    metric.Int64Counter
	sent     metric.Int64Counter
	failures metric.Int64Counter
	latency  metric.Float64Histogram
	duration metric.Float64Histogram
}

var _ streaming.Observer = (*StreamMetrics)(nil)

// NewStreamMetrics creates the instruments on meter. A nil meter uses the
// global meter provider.
func NewStreamMetrics(meter metric.Meter) (*StreamMetrics, error) {
	if meter == nil {
		meter = otel.Meter(instrumentationName)
	}

	m := &StreamMetrics{}
	var err, errs error

	m.active, err = meter.Int64UpDownCounter("streaming.streams.active",
		metric.WithDescription("Streams currently open"))
	errs = errors.Join(errs, err)

	m.ended, err = meter.Int64Counter("streaming.streams.ended",
		metric.WithDescription("Streams ended, by result"))
	errs = errors.Join(errs, err)

	m.sent, err = meter.Int64Counter("streaming.activities.sent",
		metric.WithDescription("Streaming activities accepted by the channel"))
	errs = errors.Join(errs, err)

	m.failures, err = meter.Int64Counter("streaming.send.failures",
		metric.WithDescription("Failed streaming sends"))
	errs = errors.Join(errs, err)

	m.latency, err = meter.Float64Histogram("streaming.send.duration",
		metric.WithDescription("Channel send latency"),
		metric.WithUnit("s"))
	errs = errors.Join(errs, err)

	m.duration, err = meter.Float64Histogram("streaming.stream.duration",
		metric.WithDescription("Time from the first queued item to the end of the stream"),
		metric.WithUnit("s"))
	errs = errors.Join(errs, err)

	if errs != nil {
		return nil, errs
	}
	return m, nil
}

func (m *StreamMetrics) StreamStarted(channelID string) {
	m.active.Add(context.Background(), 1, metric.WithAttributes(attribute.String("channel.id", channelID)))
}

func (m *StreamMetrics) ActivitySent(channelID string, streamType types.StreamType, latency time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("channel.id", channelID),
		attribute.String("stream.type", string(streamType)))
	m.sent.Add(context.Background(), 1, attrs)
	m.latency.Record(context.Background(), latency.Seconds(), attrs)
}

func (m *StreamMetrics) SendFailed(channelID string, streamType types.StreamType, err error) {
	code := string(types.GetErrorCode(err))
	if code == "" {
		code = "unknown"
	}
	m.failures.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("channel.id", channelID),
		attribute.String("stream.type", string(streamType)),
		attribute.String("error.code", code)))
}

func (m *StreamMetrics) StreamEnded(channelID string, result streaming.Result, duration time.Duration) {
	ctx := context.Background()
	attrs := metric.WithAttributes(
		attribute.String("channel.id", channelID),
		attribute.String("stream.result", result.String()))
	m.active.Add(ctx, -1, metric.WithAttributes(attribute.String("channel.id", channelID)))
	m.ended.Add(ctx, 1, attrs)
	m.duration.Record(ctx, duration.Seconds(), attrs)
}

// MultiObserver fans events out to several observers.
type MultiObserver []streaming.Observer

func (o MultiObserver) StreamStarted(channelID string) {
	for _, obs := range o {
		obs.StreamStarted(channelID)
	}
}

func (o MultiObserver) ActivitySent(channelID string, streamType types.StreamType, latency time.Duration) {
	for _, obs := range o {
		obs.ActivitySent(channelID, streamType, latency)
	}
}

func (o MultiObserver) SendFailed(channelID string, streamType types.StreamType, err error) {
	for _, obs := range o {
		obs.SendFailed(channelID, streamType, err)
	}
}

func (o MultiObserver) StreamEnded(channelID string, result streaming.Result, duration time.Duration) {
	for _, obs := range o {
		obs.StreamEnded(channelID, result, duration)
	}
}
