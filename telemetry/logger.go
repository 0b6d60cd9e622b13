package telemetry

import (
	"context"
	"os"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OTELHook adds trace and span IDs to every log entry
type OTELHook struct{}

func (h OTELHook) Run(e *zerolog.Event, level zerolog.Level, msg string) {
	ctx := e.GetCtx()
	if ctx == nil {
		return
	}

	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return
	}

	e.Str("trace_id", span.SpanContext().TraceID().String())
	e.Str("span_id", span.SpanContext().SpanID().String())

	if level == zerolog.ErrorLevel {
		span.SetStatus(codes.Error, msg)
	}
}

// Logger wraps zerolog with OTEL integration
type Logger struct {
	zerolog.Logger
}

// NewLogger creates a new logger with OTEL hooks
func NewLogger(component string) *Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs

	logger := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("component", component).
		Logger().
		Hook(OTELHook{})

	return &Logger{Logger: logger}
}

// WithContext returns a logger with context (for trace propagation)
func (l *Logger) WithContext(ctx context.Context) *zerolog.Logger {
	logger := l.Logger.With().Ctx(ctx).Logger()
	return &logger
}

// LogStageError logs one recoverable per-item scan failure.
// These are warnings: the enclosing scope continues.
func (l *Logger) LogStageError(ctx context.Context, stage, service, region string, err error) {
	l.WithContext(ctx).Warn().
		Err(err).
		Str("stage", stage).
		Str("service", service).
		Str("region", region).
		Msg("recoverable scan failure")
}

// LogBatchUpsert logs the outcome of one store batch write.
func (l *Logger) LogBatchUpsert(ctx context.Context, service, region string, upserted, failed int) {
	l.WithContext(ctx).Info().
		Str("service", service).
		Str("region", region).
		Int("upserted", upserted).
		Int("failed", failed).
		Msg("batch upsert complete")
}

// LogCleanup logs the stale-record cleanup for one account.
func (l *Logger) LogCleanup(ctx context.Context, accountID string, stale, deleted int) {
	l.WithContext(ctx).Info().
		Str("account_id", accountID).
		Int("stale", stale).
		Int("deleted", deleted).
		Str("operation", "cleanup").
		Msg("stale cleanup complete")
}
