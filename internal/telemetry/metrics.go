// Package telemetry records agent metrics on OpenTelemetry instruments.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"license-monitor/agent/internal/sync"
)

const meterName = "license-monitor/agent"

// PassMetrics records sync pass outcomes, per-record mutation counts, and
// scheduler triggers dropped to the no-overlap rule.
type PassMetrics struct {
	passes   metric.Int64Counter
	records  metric.Int64Counter
	duration metric.Float64Histogram
	dropped  metric.Int64Counter
}

// NewPassMetrics creates the agent's sync instruments on the given provider.
func NewPassMetrics(provider metric.MeterProvider) (*PassMetrics, error) {
	meter := provider.Meter(meterName)

	passes, err := meter.Int64Counter("agent.sync.passes",
		metric.WithDescription("Sync passes by outcome."))
	if err != nil {
		return nil, err
	}
	records, err := meter.Int64Counter("agent.sync.records",
		metric.WithDescription("Portal record mutations by entity, action, and result."))
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram("agent.sync.pass.duration",
		metric.WithUnit("s"),
		metric.WithDescription("Wall time of one sync pass."))
	if err != nil {
		return nil, err
	}
	dropped, err := meter.Int64Counter("agent.scheduler.dropped_triggers",
		metric.WithDescription("Job triggers dropped because the previous run was still going."))
	if err != nil {
		return nil, err
	}

	return &PassMetrics{passes: passes, records: records, duration: duration, dropped: dropped}, nil
}

// RecordDroppedTrigger counts one dropped trigger for the named job.
func (m *PassMetrics) RecordDroppedTrigger(ctx context.Context, job string) {
	m.dropped.Add(ctx, 1, metric.WithAttributes(attribute.String("job", job)))
}

// RecordPass records one pass. err is the pass-level error, if any; item
// failures inside the report count as record failures, not a failed pass.
func (m *PassMetrics) RecordPass(ctx context.Context, report sync.Report, elapsed time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.passes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	m.duration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(attribute.String("outcome", outcome)))

	m.recordEntity(ctx, "user", report.Users)
	m.recordEntity(ctx, "group", report.Groups)
	m.recordBatch(ctx, "membership", "add", report.Members.Added)
	m.recordBatch(ctx, "membership", "remove", report.Members.Removed)
}

func (m *PassMetrics) recordEntity(ctx context.Context, entity string, report sync.EntityReport) {
	m.recordBatch(ctx, entity, "create", report.Created)
	m.recordBatch(ctx, entity, "update", report.Updated)
	m.recordBatch(ctx, entity, "delete", report.Deleted)
}

func (m *PassMetrics) recordBatch(ctx context.Context, entity, action string, report sync.BatchReport) {
	if report.Succeeded > 0 {
		m.records.Add(ctx, int64(report.Succeeded), metric.WithAttributes(
			attribute.String("entity", entity),
			attribute.String("action", action),
			attribute.String("result", "success"),
		))
	}
	if report.Failed > 0 {
		m.records.Add(ctx, int64(report.Failed), metric.WithAttributes(
			attribute.String("entity", entity),
			attribute.String("action", action),
			attribute.String("result", "failure"),
		))
	}
}
