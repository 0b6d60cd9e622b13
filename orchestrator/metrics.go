package orchestrator

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ScanMetrics holds the orchestrator's OTEL instruments.
type ScanMetrics struct {
	resourcesDiscovered metric.Int64Counter
	resourcesUpserted   metric.Int64Counter
	resourcesDeleted    metric.Int64Counter
	scanErrors          metric.Int64Counter
	scanDuration        metric.Float64Histogram
}

// NewScanMetrics creates the orchestrator metrics following OTEL semantic
// conventions.
func NewScanMetrics() (*ScanMetrics, error) {
	meter := otel.Meter("kartta.orchestrator")

	discovered, err := meter.Int64Counter(
		"kartta.resources.discovered",
		metric.WithDescription("Number of raw resources discovered"),
		metric.WithUnit("{resource}"),
	)
	if err != nil {
		return nil, err
	}

	upserted, err := meter.Int64Counter(
		"kartta.resources.upserted",
		metric.WithDescription("Number of resources written to the store"),
		metric.WithUnit("{resource}"),
	)
	if err != nil {
		return nil, err
	}

	deleted, err := meter.Int64Counter(
		"kartta.resources.deleted",
		metric.WithDescription("Number of stale resources removed by cleanup"),
		metric.WithUnit("{resource}"),
	)
	if err != nil {
		return nil, err
	}

	scanErrors, err := meter.Int64Counter(
		"kartta.scan.errors",
		metric.WithDescription("Number of recoverable scan failures by stage"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram(
		"kartta.scan.duration",
		metric.WithDescription("Duration of full scan runs"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &ScanMetrics{
		resourcesDiscovered: discovered,
		resourcesUpserted:   upserted,
		resourcesDeleted:    deleted,
		scanErrors:          scanErrors,
		scanDuration:        duration,
	}, nil
}

// RecordDiscovered records raw records returned by one discovery call.
func (m *ScanMetrics) RecordDiscovered(ctx context.Context, count int, service, region string) {
	m.resourcesDiscovered.Add(ctx, int64(count),
		metric.WithAttributes(
			attribute.String("service", service),
			attribute.String("region", region),
		))
}

// RecordUpserted records resources committed by one batch upsert.
func (m *ScanMetrics) RecordUpserted(ctx context.Context, count int, service string) {
	m.resourcesUpserted.Add(ctx, int64(count),
		metric.WithAttributes(attribute.String("service", service)))
}

// RecordDeleted records stale resources removed for one account.
func (m *ScanMetrics) RecordDeleted(ctx context.Context, count int, accountID string) {
	m.resourcesDeleted.Add(ctx, int64(count),
		metric.WithAttributes(attribute.String("account_id", accountID)))
}

// RecordError records one recoverable failure by kind.
func (m *ScanMetrics) RecordError(ctx context.Context, kind Kind) {
	m.scanErrors.Add(ctx, 1,
		metric.WithAttributes(attribute.String("kind", string(kind))))
}

// RecordScanDuration records the elapsed time of one full run.
func (m *ScanMetrics) RecordScanDuration(ctx context.Context, d time.Duration) {
	m.scanDuration.Record(ctx, d.Seconds())
}
