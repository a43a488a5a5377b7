package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"go.opentelemetry.io/otel"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/metric"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// Telemetry owns the providers of one builder run. The builder is a one-shot
// process, so metrics are gathered from a private registry and written out on
// Shutdown instead of being scraped.
type Telemetry struct {
	registry *prometheus.Registry
	dump     io.Writer
	stops    []stopFunc
}

type stopFunc struct {
	name string
	fn   func(context.Context) error
}

// Option configures Setup
type Option func(*settings)

type settings struct {
	writer io.Writer
	dump   io.Writer
	traces bool
}

// WithWriter sends span, log and metric output to w instead of stderr
func WithWriter(w io.Writer) Option {
	return func(s *settings) {
		s.writer = w
		s.dump = w
	}
}

// WithMetricsDump writes the prometheus text exposition to w on Shutdown.
// A nil w disables the dump.
func WithMetricsDump(w io.Writer) Option {
	return func(s *settings) { s.dump = w }
}

// WithoutTraces leaves the global tracer provider as a no-op
func WithoutTraces() Option {
	return func(s *settings) { s.traces = false }
}

// Setup installs the global tracer, meter and logger providers for serviceName
// and binds the builder instruments held by GetGlobalMetrics.
func Setup(serviceName string, opts ...Option) (*Telemetry, error) {
	s := settings{writer: os.Stderr, dump: os.Stderr, traces: true}
	for _, opt := range opts {
		opt(&s)
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(semconv.ServiceNameKey.String(serviceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry resource: %w", err)
	}

	t := &Telemetry{registry: prometheus.NewRegistry(), dump: s.dump}

	if s.traces {
		tp, err := newTracerProvider(res, s.writer)
		if err != nil {
			return nil, err
		}
		otel.SetTracerProvider(tp)
		t.stops = append(t.stops, stopFunc{"tracer", tp.Shutdown})
	}

	mp, err := newMeterProvider(res, t.registry)
	if err != nil {
		t.stopAll(context.Background())
		return nil, err
	}
	otel.SetMeterProvider(mp)
	t.stops = append(t.stops, stopFunc{"meter", mp.Shutdown})

	if err := GetGlobalMetrics().InitMetrics(mp.Meter(serviceName)); err != nil {
		t.stopAll(context.Background())
		return nil, fmt.Errorf("builder instruments: %w", err)
	}

	lp, err := newLoggerProvider(res, s.writer)
	if err != nil {
		t.stopAll(context.Background())
		return nil, err
	}
	global.SetLoggerProvider(lp)
	t.stops = append(t.stops, stopFunc{"logger", lp.Shutdown})

	return t, nil
}

func newTracerProvider(res *resource.Resource, w io.Writer) (*sdktrace.TracerProvider, error) {
	exp, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, fmt.Errorf("span exporter: %w", err)
	}
	// Spans are few per run; syncing avoids losing them when the CLI exits early.
	return sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exp),
		sdktrace.WithResource(res),
	), nil
}

func newMeterProvider(res *resource.Resource, reg *prometheus.Registry) (*sdkmetric.MeterProvider, error) {
	exp, err := otelprom.New(otelprom.WithRegisterer(reg))
	if err != nil {
		return nil, fmt.Errorf("metric exporter: %w", err)
	}
	return sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exp),
		sdkmetric.WithResource(res),
	), nil
}

func newLoggerProvider(res *resource.Resource, w io.Writer) (*sdklog.LoggerProvider, error) {
	exp, err := stdoutlog.New(stdoutlog.WithWriter(w))
	if err != nil {
		return nil, fmt.Errorf("log exporter: %w", err)
	}
	return sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewSimpleProcessor(exp)),
		sdklog.WithResource(res),
	), nil
}

// DumpMetrics writes the current builder metrics in prometheus text format
func (t *Telemetry) DumpMetrics(w io.Writer) error {
	families, err := t.registry.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("encode %s: %w", mf.GetName(), err)
		}
	}
	return nil
}

// Shutdown dumps the metrics, if configured, then stops every provider.
// The dump runs first because the meter reader refuses to collect once stopped.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error
	if t.dump != nil {
		if err := t.DumpMetrics(t.dump); err != nil {
			errs = append(errs, err)
		}
	}
	errs = append(errs, t.stopAll(ctx))
	return errors.Join(errs...)
}

func (t *Telemetry) stopAll(ctx context.Context) error {
	var errs []error
	for i := len(t.stops) - 1; i >= 0; i-- {
		if err := t.stops[i].fn(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s provider: %w", t.stops[i].name, err))
		}
	}
	t.stops = nil
	return errors.Join(errs...)
}

// GetMeter returns a meter from the global provider
func GetMeter(name string) metric.Meter {
	return otel.GetMeterProvider().Meter(name)
}

// GetTracer returns a tracer from the global provider
func GetTracer(name string) trace.Tracer {
	return otel.GetTracerProvider().Tracer(name)
}
