package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"license-monitor/agent/internal/sync"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	out := make(map[string]metricdata.Metrics)
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func sumTotal(t *testing.T, m metricdata.Metrics) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("metric %s is not an int64 sum: %T", m.Name, m.Data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestRecordPass(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	metrics, err := NewPassMetrics(provider)
	if err != nil {
		t.Fatalf("NewPassMetrics: %v", err)
	}

	report := sync.Report{
		Users: sync.EntityReport{
			Created: sync.BatchReport{Succeeded: 3, Failed: 1},
			Deleted: sync.BatchReport{Succeeded: 2},
		},
		Members: sync.MemberReport{
			Added: sync.BatchReport{Succeeded: 5},
		},
	}
	metrics.RecordPass(context.Background(), report, 1200*time.Millisecond, nil)

	collected := collect(t, reader)

	passes, ok := collected["agent.sync.passes"]
	if !ok {
		t.Fatal("agent.sync.passes not recorded")
	}
	if got := sumTotal(t, passes); got != 1 {
		t.Errorf("passes = %d, want 1", got)
	}

	records, ok := collected["agent.sync.records"]
	if !ok {
		t.Fatal("agent.sync.records not recorded")
	}
	// 3 created + 1 failed + 2 deleted + 5 members added.
	if got := sumTotal(t, records); got != 11 {
		t.Errorf("records total = %d, want 11", got)
	}

	if _, ok := collected["agent.sync.pass.duration"]; !ok {
		t.Error("agent.sync.pass.duration not recorded")
	}
}

func TestRecordPass_ErrorOutcome(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	metrics, err := NewPassMetrics(provider)
	if err != nil {
		t.Fatalf("NewPassMetrics: %v", err)
	}
	metrics.RecordPass(context.Background(), sync.Report{}, time.Second, errors.New("portal down"))

	collected := collect(t, reader)
	passes := collected["agent.sync.passes"]
	sum, ok := passes.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("passes data: %T", passes.Data)
	}
	if len(sum.DataPoints) != 1 {
		t.Fatalf("datapoints = %d, want 1", len(sum.DataPoints))
	}
	if v, ok := sum.DataPoints[0].Attributes.Value("outcome"); !ok || v.AsString() != "error" {
		t.Errorf("outcome attribute = %v, want error", v)
	}
}

func TestRecordDroppedTrigger(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	metrics, err := NewPassMetrics(provider)
	if err != nil {
		t.Fatalf("NewPassMetrics: %v", err)
	}
	metrics.RecordDroppedTrigger(context.Background(), "directory-sync")
	metrics.RecordDroppedTrigger(context.Background(), "directory-sync")

	collected := collect(t, reader)
	dropped, ok := collected["agent.scheduler.dropped_triggers"]
	if !ok {
		t.Fatal("agent.scheduler.dropped_triggers not recorded")
	}
	if got := sumTotal(t, dropped); got != 2 {
		t.Errorf("dropped total = %d, want 2", got)
	}
}
