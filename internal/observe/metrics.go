// Package observe provides application-wide observability primitives for
// callscribe: OpenTelemetry metrics and tracing, trace-aware logging and the
// HTTP middleware tying them together.
//
// [Setup] builds the providers and a Prometheus registry whose
// [Telemetry.Handler] backs /metrics. Instruments live on [Metrics]; tests
// build their own with [NewMetrics] over a private meter provider.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all callscribe metrics.
const meterName = "github.com/MrWong99/callscribe"

// Attempt outcomes recorded on [Metrics.TranscriptionAttempts].
const (
	OutcomeAccepted         = "accepted"
	OutcomeTransportFailure = "transport_failure"
	OutcomeJobRejected      = "job_rejected"
	OutcomePollTimeout      = "poll_timeout"
	OutcomeImplausible      = "implausible"
)

// Transcription results recorded on [Metrics.TranscriptionResults].
const (
	ResultAccepted   = "accepted"
	ResultBestEffort = "best_effort"
	ResultFailed     = "failed"
)

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// RecognitionDuration tracks one recognizer call, from upload to the
	// fetched transcript. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("status", ...)
	RecognitionDuration metric.Float64Histogram

	// TranscriptionAttempts counts orchestrator attempts by outcome.
	TranscriptionAttempts metric.Int64Counter

	// TranscriptionResults counts finished transcriptions by result.
	TranscriptionResults metric.Int64Counter

	// TranscriptUtterances tracks the number of utterances per accepted or
	// best-effort transcript.
	TranscriptUtterances metric.Int64Histogram

	// ProviderErrors counts recognizer errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// ActiveTranscriptions tracks the number of in-flight transcriptions.
	ActiveTranscriptions metric.Int64UpDownCounter

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// recognitionBuckets defines histogram bucket boundaries (in seconds) for
// batch recognition jobs, which are queued and polled.
var recognitionBuckets = []float64{
	1, 2.5, 5, 10, 20, 30, 60, 120, 300, 600,
}

// utteranceBuckets covers short calls up to long sales conversations.
var utteranceBuckets = []float64{
	1, 2, 5, 10, 20, 50, 100, 200, 500,
}

// httpBuckets defines histogram bucket boundaries (in seconds) for HTTP
// requests. Upload requests wait for the full transcription.
var httpBuckets = []float64{
	0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 120, 300,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.RecognitionDuration, err = m.Float64Histogram("callscribe.recognition.duration",
		metric.WithDescription("Latency of a single speech recognition job."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(recognitionBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TranscriptUtterances, err = m.Int64Histogram("callscribe.transcript.utterances",
		metric.WithDescription("Number of utterances per delivered transcript."),
		metric.WithUnit("{utterance}"),
		metric.WithExplicitBucketBoundaries(utteranceBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.TranscriptionAttempts, err = m.Int64Counter("callscribe.transcription.attempts",
		metric.WithDescription("Total transcription attempts by outcome."),
	); err != nil {
		return nil, err
	}
	if met.TranscriptionResults, err = m.Int64Counter("callscribe.transcription.results",
		metric.WithDescription("Total finished transcriptions by result."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("callscribe.provider.errors",
		metric.WithDescription("Total recognizer errors by provider and kind."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveTranscriptions, err = m.Int64UpDownCounter("callscribe.active_transcriptions",
		metric.WithDescription("Number of in-flight transcriptions."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("callscribe.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(httpBuckets...),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordRecognition records the duration of one recognizer call.
func (m *Metrics) RecordRecognition(ctx context.Context, provider, status string, d time.Duration) {
	m.RecognitionDuration.Record(ctx, d.Seconds(),
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("status", status),
		),
	)
}

// RecordAttempt records one orchestrator attempt with its outcome.
func (m *Metrics) RecordAttempt(ctx context.Context, outcome string) {
	m.TranscriptionAttempts.Add(ctx, 1,
		metric.WithAttributes(attribute.String("outcome", outcome)),
	)
}

// RecordResult records a finished transcription. utterances is ignored for
// failed transcriptions.
func (m *Metrics) RecordResult(ctx context.Context, result string, utterances int) {
	m.TranscriptionResults.Add(ctx, 1,
		metric.WithAttributes(attribute.String("result", result)),
	)
	if result != ResultFailed {
		m.TranscriptUtterances.Record(ctx, int64(utterances))
	}
}

// RecordProviderError is a convenience method that records a provider error
// counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}
