package observe

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// Telemetry owns the process-wide meter and tracer providers and the
// Prometheus registry that /metrics serves.
type Telemetry struct {
	// Metrics holds the callscribe instruments bound to this meter provider.
	Metrics *Metrics

	// TracerProvider is the provider spans are started on. It is also the
	// global one unless [WithoutGlobals] was given.
	TracerProvider trace.TracerProvider

	registry *prometheus.Registry
	closers  []func(context.Context) error
}

type setupOptions struct {
	service  string
	version  string
	spans    sdktrace.SpanExporter
	noGlobal bool
}

// SetupOption configures [Setup].
type SetupOption func(*setupOptions)

// WithService sets the service name and version attached to every metric and
// span. The name defaults to "callscribe".
func WithService(name, version string) SetupOption {
	return func(o *setupOptions) {
		if name != "" {
			o.service = name
		}
		o.version = version
	}
}

// WithSpanExporter batches finished spans to exp. Without it spans are
// sampled for correlation IDs but never leave the process.
func WithSpanExporter(exp sdktrace.SpanExporter) SetupOption {
	return func(o *setupOptions) { o.spans = exp }
}

// WithoutGlobals keeps the providers out of the otel globals. Tests use it to
// run several Telemetry instances side by side.
func WithoutGlobals() SetupOption {
	return func(o *setupOptions) { o.noGlobal = true }
}

// Setup builds a meter provider exporting into a fresh Prometheus registry
// (Go runtime and process collectors included) and a tracer provider. Unless
// [WithoutGlobals] is given both are installed as otel globals together with
// the W3C trace context propagator.
func Setup(ctx context.Context, opts ...SetupOption) (*Telemetry, error) {
	o := setupOptions{service: "callscribe"}
	for _, fn := range opts {
		fn(&o)
	}

	res, err := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithTelemetrySDK(),
		resource.WithAttributes(
			semconv.ServiceName(o.service),
			semconv.ServiceVersion(o.version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("observe: resource: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	exp, err := promexporter.New(promexporter.WithRegisterer(reg))
	if err != nil {
		return nil, fmt.Errorf("observe: prometheus exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithResource(res), sdkmetric.WithReader(exp))

	tpOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	if o.spans != nil {
		tpOpts = append(tpOpts, sdktrace.WithBatcher(o.spans))
	}
	tp := sdktrace.NewTracerProvider(tpOpts...)

	m, err := NewMetrics(mp)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("observe: instruments: %w", err), mp.Shutdown(ctx), tp.Shutdown(ctx))
	}

	if !o.noGlobal {
		otel.SetMeterProvider(mp)
		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(propagation.TraceContext{})
	}

	// Spans flush before the meter provider goes away.
	return &Telemetry{
		Metrics:        m,
		TracerProvider: tp,
		registry:       reg,
		closers:        []func(context.Context) error{tp.Shutdown, mp.Shutdown},
	}, nil
}

// Handler serves the registry in the Prometheus text format.
func (t *Telemetry) Handler() http.Handler {
	return promhttp.HandlerFor(t.registry, promhttp.HandlerOpts{Registry: t.registry})
}

// Shutdown flushes pending spans and stops both providers.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error
	for _, fn := range t.closers {
		errs = append(errs, fn(ctx))
	}
	return errors.Join(errs...)
}

// MetricsHandler serves the default Prometheus registry. It is what /metrics
// falls back to when no [Telemetry] was set up.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
