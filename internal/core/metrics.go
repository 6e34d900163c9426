package core

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"pkt.systems/pslog"

	"github.com/Cyber-Mitch/nilshard/api"
)

type coreMetrics struct {
	dispatchDuration metric.Int64Histogram
	completeDuration metric.Int64Histogram
	completions      metric.Int64Counter
}

func newCoreMetrics(logger pslog.Logger) *coreMetrics {
	meter := otel.Meter("github.com/Cyber-Mitch/nilshard/core")
	m := &coreMetrics{}
	var err error

	m.dispatchDuration, err = meter.Int64Histogram(
		"nilshard.dispatch.duration_ms",
		metric.WithDescription("Time spent recording and submitting an async dispatch"),
		metric.WithUnit("ms"),
	)
	logMetricInitError(logger, "nilshard.dispatch.duration_ms", err)

	m.completeDuration, err = meter.Int64Histogram(
		"nilshard.callback.duration_ms",
		metric.WithDescription("Time spent running a completion callback"),
		metric.WithUnit("ms"),
	)
	logMetricInitError(logger, "nilshard.callback.duration_ms", err)

	m.completions, err = meter.Int64Counter(
		"nilshard.callback.completions",
		metric.WithDescription("Completion outcomes by reconciliation path"),
	)
	logMetricInitError(logger, "nilshard.callback.completions", err)

	return m
}

func (m *coreMetrics) recordDispatch(ctx context.Context, shard api.ShardID, result string, duration time.Duration) {
	if m == nil || m.dispatchDuration == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.Int("nilshard.shard", int(shard)),
		attribute.String("nilshard.result", result),
	}
	m.dispatchDuration.Record(metricContext(ctx), duration.Milliseconds(), metric.WithAttributes(attrs...))
}

func (m *coreMetrics) recordComplete(ctx context.Context, shard api.ShardID, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	ctx = metricContext(ctx)
	attrs := []attribute.KeyValue{
		attribute.Int("nilshard.shard", int(shard)),
		attribute.String("nilshard.outcome", outcome),
	}
	if m.completeDuration != nil {
		m.completeDuration.Record(ctx, duration.Milliseconds(), metric.WithAttributes(attrs...))
	}
	if m.completions != nil {
		m.completions.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

func metricContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

func logMetricInitError(logger pslog.Logger, name string, err error) {
	if err == nil || logger == nil {
		return
	}
	logger.Warn("telemetry.metric.init_failed", "name", name, "error", err)
}
