// Package orchestrator drives one call recording through speech recognition,
// transcript formatting and plausibility validation, retrying until a
// believable transcript is produced or the attempt budget runs out.
//
// Every attempt submits the audio to the recognizer from scratch. A failed
// attempt (transport failure, rejected job, poll timeout) waits
// [Options.FailureBackoff] before the next one; an implausible transcript
// waits the shorter [Options.InvalidBackoff]. Attempts are strictly
// sequential so a call is never billed twice concurrently.
//
// When every attempt is exhausted and at least one of them produced a
// transcript, the last such transcript is returned as a best-effort result
// instead of an error.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/callscribe/internal/observe"
	"github.com/MrWong99/callscribe/internal/transcript"
	"github.com/MrWong99/callscribe/pkg/provider/stt"
)

var (
	// ErrImplausibleDiarization marks an attempt whose transcript failed
	// [transcript.CheckPlausibility].
	ErrImplausibleDiarization = errors.New("orchestrator: implausible diarization")

	// ErrNoRecognizer is returned by [Orchestrator.Transcribe] when the
	// orchestrator was built without a recognizer.
	ErrNoRecognizer = errors.New("orchestrator: no recognizer configured")
)

const (
	defaultMaxAttempts    = 3
	defaultFailureBackoff = 3 * time.Second
	defaultInvalidBackoff = 2 * time.Second
)

// Options are the tunable parameters of an [Orchestrator]. They can be
// replaced at runtime with [Orchestrator.SetOptions]; a running transcription
// keeps the options it started with.
type Options struct {
	// MaxAttempts is the attempt ceiling. Default: 3.
	MaxAttempts int

	// FailureBackoff is the wait after a failed recognizer call. Default: 3s.
	FailureBackoff time.Duration

	// InvalidBackoff is the wait after an implausible transcript. Default: 2s.
	InvalidBackoff time.Duration

	// Recognize is sent to the recognizer on every attempt.
	Recognize stt.RecognizeConfig

	// Formatter turns raw results into transcripts. Default:
	// [transcript.NewFormatter] with no options.
	Formatter *transcript.Formatter
}

// DefaultOptions returns the options used when none are given.
func DefaultOptions() Options {
	return Options{}.withDefaults()
}

func (o Options) withDefaults() Options {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = defaultMaxAttempts
	}
	if o.FailureBackoff <= 0 {
		o.FailureBackoff = defaultFailureBackoff
	}
	if o.InvalidBackoff <= 0 {
		o.InvalidBackoff = defaultInvalidBackoff
	}
	if o.Formatter == nil {
		o.Formatter = transcript.NewFormatter()
	}
	return o
}

// Result is a finished transcription.
type Result struct {
	// ID identifies the transcription in logs and traces.
	ID string `json:"id"`

	// Transcript is the accepted or best-effort transcript.
	Transcript transcript.Transcript `json:"transcript"`

	// Attempts is the number of recognizer calls made.
	Attempts int `json:"attempts"`

	// BestEffort is set when no attempt passed validation and Transcript is
	// the last implausible one.
	BestEffort bool `json:"best_effort"`

	// Plausibility is the validation outcome for Transcript.
	Plausibility transcript.Plausibility `json:"plausibility"`
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Option configures an [Orchestrator] during construction.
type Option func(*Orchestrator)

// WithOptions sets the initial [Options].
func WithOptions(opts Options) Option {
	return func(o *Orchestrator) {
		o.SetOptions(opts)
	}
}

// WithMetrics records attempt and result metrics on m instead of
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(o *Orchestrator) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithTracerProvider starts transcription and attempt spans on tp instead of
// the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *Orchestrator) { o.tracer = observe.TracerFrom(tp) }
}

// WithSleep replaces the backoff timer. Tests use it to skip real waits.
func WithSleep(fn SleepFunc) Option {
	return func(o *Orchestrator) {
		if fn != nil {
			o.sleep = fn
		}
	}
}

// Orchestrator runs transcriptions against a single [stt.Recognizer]. It is
// safe for concurrent use; concurrent transcriptions share nothing but the
// recognizer and the options snapshot.
type Orchestrator struct {
	rec     stt.Recognizer
	opts    atomic.Pointer[Options]
	metrics *observe.Metrics
	tracer  trace.Tracer
	sleep   SleepFunc
}

// New returns an [Orchestrator] using rec for every attempt.
func New(rec stt.Recognizer, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		rec:   rec,
		sleep: sleepCtx,
	}
	o.SetOptions(Options{})
	for _, opt := range opts {
		opt(o)
	}
	if o.metrics == nil {
		o.metrics = observe.DefaultMetrics()
	}
	return o
}

func (o *Orchestrator) startSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if o.tracer != nil {
		return o.tracer.Start(ctx, name, opts...)
	}
	return observe.StartSpan(ctx, name, opts...)
}

// Options returns the current options.
func (o *Orchestrator) Options() Options {
	return *o.opts.Load()
}

// SetOptions replaces the options used by subsequent transcriptions. Zero
// fields take their defaults.
func (o *Orchestrator) SetOptions(opts Options) {
	opts = opts.withDefaults()
	o.opts.Store(&opts)
}

// attemptOutcome is what one attempt produced.
type attemptOutcome struct {
	transcript   transcript.Transcript
	plausibility transcript.Plausibility
	err          error
}

// Transcribe runs the attempt loop for audio. It returns an error only when
// no attempt produced a transcript or ctx was cancelled; errors wrap the
// last attempt's error so [stt.ErrTransport], [stt.ErrJobRejected] and
// [stt.ErrPollTimeout] can be matched with [errors.Is].
func (o *Orchestrator) Transcribe(ctx context.Context, audio stt.Audio) (res *Result, err error) {
	if o.rec == nil {
		return nil, ErrNoRecognizer
	}
	opts := o.Options()
	id := uuid.NewString()

	ctx, span := o.startSpan(ctx, "orchestrator.Transcribe",
		trace.WithAttributes(
			attribute.String("transcription.id", id),
			attribute.String("audio.name", audio.Name),
			attribute.Int("max_attempts", opts.MaxAttempts),
		),
	)
	defer func() { observe.EndSpan(span, err) }()

	o.metrics.ActiveTranscriptions.Add(ctx, 1)
	defer o.metrics.ActiveTranscriptions.Add(ctx, -1)

	log := observe.Logger(ctx).With("id", id, "audio", audio.Name)

	var (
		best    *attemptOutcome
		last    attemptOutcome
		attempt int
	)
	for attempt = 1; attempt <= opts.MaxAttempts; attempt++ {
		if attempt > 1 {
			wait := opts.FailureBackoff
			if last.err == nil || errors.Is(last.err, ErrImplausibleDiarization) {
				wait = opts.InvalidBackoff
			}
			if err := o.sleep(ctx, wait); err != nil {
				o.metrics.RecordResult(ctx, observe.ResultFailed, 0)
				return nil, fmt.Errorf("orchestrator: %w", err)
			}
		}

		last = o.attempt(ctx, attempt, audio, opts)
		outcome := classify(last.err)
		o.metrics.RecordAttempt(ctx, outcome)

		if last.err == nil {
			log.Info("transcription accepted",
				"attempt", attempt,
				"utterances", len(last.transcript.Utterances),
				"single_speaker", last.plausibility.SingleSpeaker,
			)
			o.metrics.RecordResult(ctx, observe.ResultAccepted, len(last.transcript.Utterances))
			return &Result{
				ID:           id,
				Transcript:   last.transcript,
				Attempts:     attempt,
				Plausibility: last.plausibility,
			}, nil
		}

		if ctx.Err() != nil {
			o.metrics.RecordResult(ctx, observe.ResultFailed, 0)
			return nil, fmt.Errorf("orchestrator: %w", ctx.Err())
		}

		if outcome == observe.OutcomeImplausible {
			kept := last
			best = &kept
		}
		log.Warn("transcription attempt failed",
			"attempt", attempt,
			"max_attempts", opts.MaxAttempts,
			"outcome", outcome,
			"err", last.err,
		)
	}
	attempts := attempt - 1

	if best != nil {
		log.Warn("returning best-effort transcript",
			"attempts", attempts,
			"reason", best.plausibility.Reason,
		)
		o.metrics.RecordResult(ctx, observe.ResultBestEffort, len(best.transcript.Utterances))
		return &Result{
			ID:           id,
			Transcript:   best.transcript,
			Attempts:     attempts,
			BestEffort:   true,
			Plausibility: best.plausibility,
		}, nil
	}

	o.metrics.RecordResult(ctx, observe.ResultFailed, 0)
	return nil, fmt.Errorf("orchestrator: transcription failed after %d attempts: %w", attempts, last.err)
}

// attempt performs one recognizer call and validates its transcript.
func (o *Orchestrator) attempt(ctx context.Context, n int, audio stt.Audio, opts Options) (out attemptOutcome) {
	ctx, span := o.startSpan(ctx, "orchestrator.attempt",
		trace.WithAttributes(attribute.Int("attempt", n)),
	)
	defer func() { observe.EndSpan(span, out.err) }()

	raw, err := o.rec.Recognize(ctx, audio, opts.Recognize)
	if err != nil {
		if !isClassified(err) && ctx.Err() == nil {
			err = fmt.Errorf("%w: %w", stt.ErrTransport, err)
		}
		return attemptOutcome{err: err}
	}

	t := opts.Formatter.Format(raw)
	p := transcript.CheckPlausibility(t)
	span.SetAttributes(
		attribute.Int("utterances", len(t.Utterances)),
		attribute.Bool("plausible", p.Valid),
	)
	out = attemptOutcome{transcript: t, plausibility: p}
	if !p.Valid {
		out.err = fmt.Errorf("%w: %s", ErrImplausibleDiarization, p.Reason)
	}
	return out
}

func isClassified(err error) bool {
	return errors.Is(err, stt.ErrTransport) ||
		errors.Is(err, stt.ErrJobRejected) ||
		errors.Is(err, stt.ErrPollTimeout)
}

// classify maps an attempt error to its metric outcome.
func classify(err error) string {
	switch {
	case err == nil:
		return observe.OutcomeAccepted
	case errors.Is(err, ErrImplausibleDiarization):
		return observe.OutcomeImplausible
	case errors.Is(err, stt.ErrJobRejected):
		return observe.OutcomeJobRejected
	case errors.Is(err, stt.ErrPollTimeout):
		return observe.OutcomePollTimeout
	default:
		return observe.OutcomeTransportFailure
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
