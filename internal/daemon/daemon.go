// Package daemon runs scans on a fixed interval and serves metrics.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/oklog/run"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kartta-io/kartta/orchestrator"
	"github.com/kartta-io/kartta/telemetry"
)

// Scanner runs one scan. Satisfied by *orchestrator.Orchestrator.
type Scanner interface {
	Scan(ctx context.Context, req orchestrator.ScanRequest) (*orchestrator.ScanResult, error)
}

// Config holds daemon configuration
type Config struct {
	Interval    time.Duration
	MetricsPort int
	Request     orchestrator.ScanRequest
}

const (
	defaultInterval    = 15 * time.Minute
	defaultMetricsPort = 2112
)

// Daemon runs the scan loop. One resolver and one store live for the
// daemon's whole lifetime, so permission cache entries survive across
// runs within their TTL.
type Daemon struct {
	scanner  Scanner
	interval time.Duration
	port     int
	request  orchestrator.ScanRequest

	logger    *telemetry.Logger
	metrics   *Metrics
	startTime time.Time
	runCount  atomic.Int64
}

// New creates a daemon around the given scanner
func New(scanner Scanner, cfg Config) (*Daemon, error) {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.MetricsPort <= 0 {
		cfg.MetricsPort = defaultMetricsPort
	}

	metrics, err := NewMetrics()
	if err != nil {
		return nil, fmt.Errorf("create daemon metrics: %w", err)
	}

	return &Daemon{
		scanner:   scanner,
		interval:  cfg.Interval,
		port:      cfg.MetricsPort,
		request:   cfg.Request,
		logger:    telemetry.NewLogger("daemon"),
		metrics:   metrics,
		startTime: time.Now(),
	}, nil
}

// Run starts the scan loop, the metrics endpoint, and the signal handler,
// and blocks until one of them stops the group.
func (d *Daemon) Run(ctx context.Context) error {
	var group run.Group

	group.Add(run.SignalHandler(ctx, syscall.SIGINT, syscall.SIGTERM))

	loopCtx, cancelLoop := context.WithCancel(ctx)
	group.Add(
		func() error { return d.loop(loopCtx) },
		func(error) { cancelLoop() },
	)

	server := d.metricsServer()
	group.Add(
		func() error {
			d.logger.Info().Int("port", d.port).Msg("metrics endpoint listening")
			if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
		func(error) {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
		},
	)

	err := group.Run()

	var sig run.SignalError
	if errors.As(err, &sig) {
		d.logger.Info().Str("signal", sig.Signal.String()).Msg("shutting down")
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// loop runs one scan immediately, then one per interval.
func (d *Daemon) loop(ctx context.Context) error {
	d.runScan(ctx)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			d.runScan(ctx)
		}
	}
}

func (d *Daemon) runScan(ctx context.Context) {
	d.runCount.Add(1)

	result, err := d.scanner.Scan(ctx, d.request)
	status := "success"
	switch {
	case err != nil:
		status = "error"
		d.logger.WithContext(ctx).Error().
			Err(err).
			Msg("scan run failed")
	case len(result.Errors) > 0:
		status = "partial"
	}
	d.metrics.RecordRun(ctx, status)

	if result != nil {
		d.logger.WithContext(ctx).Info().
			Str("run_id", result.RunID).
			Str("status", status).
			Int("discovered", result.Discovered).
			Int("upserted", result.Upserted).
			Int("deleted", result.Deleted).
			Int("errors", len(result.Errors)).
			Dur("duration", result.Duration).
			Msg("scan run complete")
	}
}

func (d *Daemon) metricsServer() *http.Server {
	registry := telemetry.PrometheusRegistry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", d.handleHealth)

	return &http.Server{
		Addr:              fmt.Sprintf(":%d", d.port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func (d *Daemon) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"status":"healthy","uptime_seconds":%d,"runs":%d}`,
		int64(time.Since(d.startTime).Seconds()), d.runCount.Load())
}

// RunCount returns how many scan runs have started.
func (d *Daemon) RunCount() int64 {
	return d.runCount.Load()
}
