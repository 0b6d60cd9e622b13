package daemon

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the daemon's OTEL instruments.
type Metrics struct {
	runs metric.Int64Counter
}

// NewMetrics creates daemon metrics following OTEL semantic conventions
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter("kartta.daemon")

	runs, err := meter.Int64Counter(
		"kartta.daemon.runs",
		metric.WithDescription("Number of scheduled scan runs by outcome"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{runs: runs}, nil
}

// RecordRun records one scan run with its outcome.
func (m *Metrics) RecordRun(ctx context.Context, status string) {
	m.runs.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)))
}
