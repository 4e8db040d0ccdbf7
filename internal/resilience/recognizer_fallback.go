package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/MrWong99/callscribe/internal/observe"
	"github.com/MrWong99/callscribe/pkg/provider/stt"
)

// Compile-time interface assertion.
var _ stt.Recognizer = (*RecognizerFallback)(nil)

// RecognizerFallback is an [stt.Recognizer] that fails over across several
// recognizers, each protected by its own [CircuitBreaker].
//
// Only transport failures and poll timeouts count against a breaker and
// trigger failover. A rejected job is returned as-is: the audio itself was
// refused and another backend is not consulted. The orchestrator decides
// whether to retry.
type RecognizerFallback struct {
	group   *FallbackGroup[stt.Recognizer]
	metrics *observe.Metrics
}

// RecognizerFallbackOption configures a [RecognizerFallback].
type RecognizerFallbackOption func(*RecognizerFallback)

// WithFallbackMetrics records per-backend latency and errors on m.
func WithFallbackMetrics(m *observe.Metrics) RecognizerFallbackOption {
	return func(f *RecognizerFallback) { f.metrics = m }
}

// NewRecognizerFallback creates a [RecognizerFallback] with primary as the
// first backend. cfg.CircuitBreaker.IsFailure is replaced by
// [CountsAgainstBreaker].
func NewRecognizerFallback(primary stt.Recognizer, name string, cfg FallbackConfig, opts ...RecognizerFallbackOption) *RecognizerFallback {
	cfg.CircuitBreaker.IsFailure = CountsAgainstBreaker
	f := &RecognizerFallback{group: NewFallbackGroup(primary, name, cfg)}
	for _, o := range opts {
		o(f)
	}
	return f
}

// AddFallback appends a backend tried after the primary.
func (f *RecognizerFallback) AddFallback(name string, r stt.Recognizer) {
	f.group.AddFallback(name, r)
}

// Status reports the breaker state of every backend.
func (f *RecognizerFallback) Status() []EntryStatus { return f.group.Status() }

// Available reports whether any backend would currently accept a job.
func (f *RecognizerFallback) Available() bool { return f.group.Available() }

// Recognize implements [stt.Recognizer].
func (f *RecognizerFallback) Recognize(ctx context.Context, audio stt.Audio, cfg stt.RecognizeConfig) (*stt.RecognitionResult, error) {
	res, err := ExecuteWithResult(ctx, f.group, func(name string, r stt.Recognizer) (*stt.RecognitionResult, error) {
		start := time.Now()
		res, err := r.Recognize(ctx, audio, cfg)
		f.observe(ctx, name, time.Since(start), err)
		return res, err
	})
	if errors.Is(err, ErrAllFailed) && errors.Is(err, ErrCircuitOpen) {
		// Every breaker was open; surface it as a transport failure so the
		// caller's classification still works.
		return nil, errors.Join(stt.ErrTransport, err)
	}
	return res, err
}

func (f *RecognizerFallback) observe(ctx context.Context, name string, d time.Duration, err error) {
	if f.metrics == nil {
		return
	}
	kind := ErrorKind(err)
	status := "ok"
	if err != nil {
		status = "error"
		f.metrics.RecordProviderError(ctx, name, kind)
	}
	f.metrics.RecordRecognition(ctx, name, status, d)
}

// CountsAgainstBreaker reports whether a recognizer error indicates an
// unhealthy backend.
func CountsAgainstBreaker(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return !errors.Is(err, stt.ErrJobRejected)
}

// ErrorKind classifies a recognizer error for metrics and logs.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, stt.ErrJobRejected):
		return "job_rejected"
	case errors.Is(err, stt.ErrPollTimeout):
		return "poll_timeout"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "transport"
	}
}
