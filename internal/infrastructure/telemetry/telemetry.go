package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	otelpyroscope "github.com/grafana/otel-profiling-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// MeterName is the instrumentation scope of the ledger metrics
const MeterName = "ledger"

// ServiceVersion is reported on every exported signal
const ServiceVersion = "1.0.0"

// Settings selects the OTLP signals a ledger process exports. All signals
// share one collector endpoint and one resource.
type Settings struct {
	ServiceName       string
	CollectorEndpoint string
	Insecure          bool

	Traces        bool
	SamplingRatio float64

	Metrics         bool
	MetricsInterval time.Duration // default 60s

	Logs     bool
	LogLevel zapcore.Level // lowest level the log bridge exports
}

func (s Settings) anyEnabled() bool {
	return s.Traces || s.Metrics || s.Logs
}

// Telemetry owns the trace, metric and log providers of one process and the
// ledger metrics recorded on them. A disabled signal leaves the global no-op
// provider in place.
type Telemetry struct {
	settings Settings
	logger   *zap.Logger
	traces   *sdktrace.TracerProvider
	meters   *sdkmetric.MeterProvider
	logs     *sdklog.LoggerProvider
	metrics  *LedgerMetrics
}

// Setup starts every enabled signal and installs it globally. When a signal
// fails to start, the ones already running are shut down again.
func Setup(ctx context.Context, s Settings, logger *zap.Logger) (*Telemetry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Telemetry{settings: s, logger: logger}

	if s.anyEnabled() {
		res, err := newResource(s.ServiceName)
		if err != nil {
			return nil, err
		}
		if err := t.start(ctx, res); err != nil {
			_ = t.Shutdown(ctx)
			return nil, err
		}
	}

	metrics, err := NewLedgerMetrics(LedgerMetricsConfig{Meter: t.Meter(MeterName), Logger: logger})
	if err != nil {
		_ = t.Shutdown(ctx)
		return nil, err
	}
	t.metrics = metrics

	logger.Debug("Telemetry configured",
		zap.String("service_name", s.ServiceName),
		zap.String("collector_endpoint", s.CollectorEndpoint),
		zap.Bool("traces", t.TracesEnabled()),
		zap.Bool("metrics", t.MetricsEnabled()),
		zap.Bool("logs", t.LogsEnabled()),
	)
	return t, nil
}

func (t *Telemetry) start(ctx context.Context, res *resource.Resource) error {
	var err error
	if t.settings.Traces {
		if t.traces, err = startTraces(ctx, t.settings, res); err != nil {
			return fmt.Errorf("tracing: %w", err)
		}
	}
	if t.settings.Metrics {
		if t.meters, err = startMetrics(ctx, t.settings, res); err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
	}
	if t.settings.Logs {
		if t.logs, err = startLogs(ctx, t.settings, res); err != nil {
			return fmt.Errorf("log export: %w", err)
		}
	}
	return nil
}

// TracesEnabled reports whether spans are exported
func (t *Telemetry) TracesEnabled() bool { return t != nil && t.traces != nil }

// MetricsEnabled reports whether metrics are exported
func (t *Telemetry) MetricsEnabled() bool { return t != nil && t.meters != nil }

// LogsEnabled reports whether log records are exported
func (t *Telemetry) LogsEnabled() bool { return t != nil && t.logs != nil }

// Tracer returns a named tracer, from the global provider when tracing is off
func (t *Telemetry) Tracer(name string, opts ...trace.TracerOption) trace.Tracer {
	if !t.TracesEnabled() {
		return otel.GetTracerProvider().Tracer(name, opts...)
	}
	return t.traces.Tracer(name, opts...)
}

// Meter returns a named meter, from the global provider when metrics are off
func (t *Telemetry) Meter(name string, opts ...metric.MeterOption) metric.Meter {
	if !t.MetricsEnabled() {
		return otel.GetMeterProvider().Meter(name, opts...)
	}
	return t.meters.Meter(name, opts...)
}

// LedgerMetrics returns the ledger instruments created by Setup
func (t *Telemetry) LedgerMetrics() *LedgerMetrics {
	return t.metrics
}

// Logger returns base teed into the OTLP log bridge, so every entry at or
// above Settings.LogLevel is written locally and exported. base comes back
// unchanged when log export is off.
func (t *Telemetry) Logger(base *zap.Logger) *zap.Logger {
	if !t.LogsEnabled() {
		return base
	}
	bridge := otelCore(t.settings.ServiceName, t.logs, t.settings.LogLevel)
	return base.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return zapcore.NewTee(core, bridge)
	}))
}

// EnableSpanProfiles installs a global tracer provider that tags profile
// samples with the active span id. It reports false when tracing is off.
// Samples are only collected while a Profiler runs.
func (t *Telemetry) EnableSpanProfiles() bool {
	if !t.TracesEnabled() {
		return false
	}
	otel.SetTracerProvider(otelpyroscope.NewTracerProvider(t.traces))
	t.logger.Info("Span profiles enabled", zap.String("service_name", t.settings.ServiceName))
	return true
}

// Shutdown flushes and stops every running provider. Log export stops last
// so failures of the other signals can still be exported.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var errs []error
	if t.traces != nil {
		if err := t.traces.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown tracer provider: %w", err))
		}
		t.traces = nil
	}
	if t.meters != nil {
		if err := t.meters.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown meter provider: %w", err))
		}
		t.meters = nil
	}
	if t.logs != nil {
		if err := t.logs.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown logger provider: %w", err))
		}
		t.logs = nil
	}
	err := errors.Join(errs...)
	if err != nil {
		t.logger.Error("Telemetry shutdown incomplete", zap.Error(err))
	}
	return err
}

func newResource(serviceName string) (*resource.Resource, error) {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	return res, nil
}
