package orchestrator_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/MrWong99/callscribe/internal/observe"
	"github.com/MrWong99/callscribe/internal/orchestrator"
	"github.com/MrWong99/callscribe/internal/transcript"
	"github.com/MrWong99/callscribe/pkg/provider/stt"
	sttmock "github.com/MrWong99/callscribe/pkg/provider/stt/mock"
)

// ── helpers ──────────────────────────────────────────────────────────────────

var audio = stt.BytesAudio("call.wav", []byte("RIFF"))

// said appends one word item per word to items, 0.4s per word from start.
func said(items []stt.ResultItem, tag string, start float64, text string) []stt.ResultItem {
	for i, w := range strings.Fields(text) {
		s := start + float64(i)*0.4
		items = append(items, stt.ResultItem{
			Type:         "word",
			StartTime:    s,
			EndTime:      s + 0.4,
			Alternatives: []stt.Alternative{{Content: w, Speaker: tag}},
		})
	}
	return items
}

// plausible is a two-party opening: the agent greets, the customer agrees.
func plausible() *stt.RecognitionResult {
	var items []stt.ResultItem
	items = said(items, "S1", 0, "Selamat pagi perkenalkan saya dari PT Asuransi")
	items = said(items, "S2", 3, "Ya boleh")
	return &stt.RecognitionResult{Results: items}
}

// implausible has four raw speakers, which maps to four roles.
func implausible() *stt.RecognitionResult {
	var items []stt.ResultItem
	items = said(items, "S1", 0, "baik terima kasih")
	items = said(items, "S2", 2, "oke sampai jumpa")
	items = said(items, "S3", 4, "halo halo")
	items = said(items, "S4", 6, "sebentar dulu")
	return &stt.RecognitionResult{Results: items}
}

type fakeSleep struct {
	waits []time.Duration
	err   error
}

func (f *fakeSleep) Sleep(_ context.Context, d time.Duration) error {
	f.waits = append(f.waits, d)
	return f.err
}

func newOrchestrator(t *testing.T, rec stt.Recognizer, opts ...orchestrator.Option) (*orchestrator.Orchestrator, *fakeSleep) {
	t.Helper()
	m, err := observe.NewMetrics(sdkmetric.NewMeterProvider())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	sleep := &fakeSleep{}
	opts = append([]orchestrator.Option{orchestrator.WithMetrics(m), orchestrator.WithSleep(sleep.Sleep)}, opts...)
	return orchestrator.New(rec, opts...), sleep
}

func equalWaits(got, want []time.Duration) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

// ── attempt loop ─────────────────────────────────────────────────────────────

func TestTranscribe_AcceptsFirstPlausibleAttempt(t *testing.T) {
	t.Parallel()

	rec := &sttmock.Recognizer{Responses: []sttmock.Response{{Result: plausible()}}}
	o, sleep := newOrchestrator(t, rec)

	res, err := o.Transcribe(context.Background(), audio)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if res.Attempts != 1 || res.BestEffort {
		t.Errorf("Attempts = %d, BestEffort = %v; want 1, false", res.Attempts, res.BestEffort)
	}
	if _, err := uuid.Parse(res.ID); err != nil {
		t.Errorf("ID %q is not a UUID: %v", res.ID, err)
	}
	if !res.Plausibility.Valid {
		t.Errorf("Plausibility = %+v, want valid", res.Plausibility)
	}
	utts := res.Transcript.Utterances
	if len(utts) != 2 || utts[0].Speaker != transcript.RoleAgent || utts[1].Speaker != transcript.RoleCustomer {
		t.Errorf("utterances = %+v, want Agent then Customer", utts)
	}
	if len(sleep.waits) != 0 {
		t.Errorf("waits = %v, want none", sleep.waits)
	}
}

func TestTranscribe_ForwardsRecognizeConfig(t *testing.T) {
	t.Parallel()

	cfg := stt.RecognizeConfig{
		Language:    "id",
		Diarization: stt.DiarizationConfig{SpeakerSensitivity: 0.6, PreferCurrentSpeaker: true, MaxSpeakers: 2},
	}
	rec := &sttmock.Recognizer{Responses: []sttmock.Response{{Result: plausible()}}}
	o, _ := newOrchestrator(t, rec, orchestrator.WithOptions(orchestrator.Options{Recognize: cfg}))

	if _, err := o.Transcribe(context.Background(), audio); err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if got := rec.Calls[0].Cfg; got != cfg {
		t.Errorf("config = %+v, want %+v", got, cfg)
	}
	if rec.Calls[0].AudioName != "call.wav" {
		t.Errorf("audio name = %q", rec.Calls[0].AudioName)
	}
}

func TestTranscribe_TransportFailureUsesFailureBackoff(t *testing.T) {
	t.Parallel()

	rec := &sttmock.Recognizer{Responses: []sttmock.Response{
		{Err: fmt.Errorf("speechmatics: submit job: %w", stt.ErrTransport)},
		{Result: plausible()},
	}}
	o, sleep := newOrchestrator(t, rec)

	res, err := o.Transcribe(context.Background(), audio)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if res.Attempts != 2 {
		t.Errorf("Attempts = %d, want 2", res.Attempts)
	}
	if want := []time.Duration{3 * time.Second}; !equalWaits(sleep.waits, want) {
		t.Errorf("waits = %v, want %v", sleep.waits, want)
	}
}

func TestTranscribe_ImplausibleUsesInvalidBackoff(t *testing.T) {
	t.Parallel()

	rec := &sttmock.Recognizer{Responses: []sttmock.Response{
		{Result: implausible()},
		{Result: plausible()},
	}}
	o, sleep := newOrchestrator(t, rec)

	res, err := o.Transcribe(context.Background(), audio)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if res.Attempts != 2 || res.BestEffort {
		t.Errorf("Attempts = %d, BestEffort = %v; want 2, false", res.Attempts, res.BestEffort)
	}
	if want := []time.Duration{2 * time.Second}; !equalWaits(sleep.waits, want) {
		t.Errorf("waits = %v, want %v", sleep.waits, want)
	}
}

func TestTranscribe_ExhaustedImplausibleReturnsBestEffort(t *testing.T) {
	t.Parallel()

	rec := &sttmock.Recognizer{Responses: []sttmock.Response{{Result: implausible()}}}
	o, sleep := newOrchestrator(t, rec)

	res, err := o.Transcribe(context.Background(), audio)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if !res.BestEffort || res.Attempts != 3 {
		t.Errorf("BestEffort = %v, Attempts = %d; want true, 3", res.BestEffort, res.Attempts)
	}
	if res.Plausibility.Valid || res.Plausibility.Reason == "" {
		t.Errorf("Plausibility = %+v, want invalid with reason", res.Plausibility)
	}
	if len(res.Transcript.Utterances) != 4 {
		t.Errorf("utterances = %d, want 4", len(res.Transcript.Utterances))
	}
	if rec.CallCount() != 3 {
		t.Errorf("recognizer calls = %d, want 3", rec.CallCount())
	}
	if want := []time.Duration{2 * time.Second, 2 * time.Second}; !equalWaits(sleep.waits, want) {
		t.Errorf("waits = %v, want %v", sleep.waits, want)
	}
}

func TestTranscribe_ExhaustedFailuresReturnError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"rejected", fmt.Errorf("job j1: %w: bad audio", stt.ErrJobRejected), stt.ErrJobRejected},
		{"poll timeout", fmt.Errorf("job j1: %w", stt.ErrPollTimeout), stt.ErrPollTimeout},
		{"status", &stt.StatusError{Op: "submit job", StatusCode: 401}, stt.ErrTransport},
		{"unclassified", errors.New("open audio: no such file"), stt.ErrTransport},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := &sttmock.Recognizer{Responses: []sttmock.Response{{Err: tt.err}}}
			o, sleep := newOrchestrator(t, rec)

			res, err := o.Transcribe(context.Background(), audio)
			if res != nil {
				t.Fatalf("result = %+v, want nil", res)
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if rec.CallCount() != 3 {
				t.Errorf("recognizer calls = %d, want 3", rec.CallCount())
			}
			if want := []time.Duration{3 * time.Second, 3 * time.Second}; !equalWaits(sleep.waits, want) {
				t.Errorf("waits = %v, want %v", sleep.waits, want)
			}
		})
	}
}

func TestTranscribe_FailureAfterImplausibleReturnsBestEffort(t *testing.T) {
	t.Parallel()

	rec := &sttmock.Recognizer{Responses: []sttmock.Response{
		{Result: implausible()},
		{Err: stt.ErrTransport},
	}}
	o, sleep := newOrchestrator(t, rec)

	res, err := o.Transcribe(context.Background(), audio)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if !res.BestEffort || res.Attempts != 3 {
		t.Errorf("BestEffort = %v, Attempts = %d; want true, 3", res.BestEffort, res.Attempts)
	}
	want := []time.Duration{2 * time.Second, 3 * time.Second}
	if !equalWaits(sleep.waits, want) {
		t.Errorf("waits = %v, want %v", sleep.waits, want)
	}
}

func TestTranscribe_CancelledDuringBackoff(t *testing.T) {
	t.Parallel()

	rec := &sttmock.Recognizer{Responses: []sttmock.Response{{Err: stt.ErrTransport}}}
	o, sleep := newOrchestrator(t, rec)
	sleep.err = context.Canceled

	_, err := o.Transcribe(context.Background(), audio)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if rec.CallCount() != 1 {
		t.Errorf("recognizer calls = %d, want 1", rec.CallCount())
	}
}

func TestTranscribe_CancelledContextStopsRetries(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec := &sttmock.Recognizer{Responses: []sttmock.Response{{Err: context.Canceled}}}
	o, sleep := newOrchestrator(t, rec)

	_, err := o.Transcribe(ctx, audio)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if rec.CallCount() != 1 || len(sleep.waits) != 0 {
		t.Errorf("calls = %d, waits = %v; want 1 call and no waits", rec.CallCount(), sleep.waits)
	}
}

func TestTranscribe_NoRecognizer(t *testing.T) {
	t.Parallel()

	o, _ := newOrchestrator(t, nil)
	if _, err := o.Transcribe(context.Background(), audio); !errors.Is(err, orchestrator.ErrNoRecognizer) {
		t.Fatalf("err = %v, want ErrNoRecognizer", err)
	}
}

// ── options ──────────────────────────────────────────────────────────────────

func TestDefaultOptions(t *testing.T) {
	t.Parallel()

	o := orchestrator.DefaultOptions()
	if o.MaxAttempts != 3 || o.FailureBackoff != 3*time.Second || o.InvalidBackoff != 2*time.Second {
		t.Errorf("DefaultOptions() = %+v", o)
	}
	if o.Formatter == nil {
		t.Error("Formatter is nil")
	}
	if o.FailureBackoff <= o.InvalidBackoff {
		t.Error("failure backoff must exceed invalid backoff")
	}
}

func TestSetOptions_AppliesToNextTranscription(t *testing.T) {
	t.Parallel()

	rec := &sttmock.Recognizer{Responses: []sttmock.Response{{Err: stt.ErrTransport}}}
	o, _ := newOrchestrator(t, rec)
	o.SetOptions(orchestrator.Options{MaxAttempts: 1})

	if _, err := o.Transcribe(context.Background(), audio); err == nil {
		t.Fatal("expected error")
	}
	if rec.CallCount() != 1 {
		t.Errorf("recognizer calls = %d, want 1", rec.CallCount())
	}
	if got := o.Options(); got.FailureBackoff != 3*time.Second {
		t.Errorf("FailureBackoff = %v, want default 3s", got.FailureBackoff)
	}
}

// ── metrics ──────────────────────────────────────────────────────────────────

func TestTranscribe_RecordsMetrics(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	m, err := observe.NewMetrics(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	rec := &sttmock.Recognizer{Responses: []sttmock.Response{
		{Err: stt.ErrPollTimeout},
		{Result: implausible()},
		{Result: plausible()},
	}}
	o := orchestrator.New(rec,
		orchestrator.WithMetrics(m),
		orchestrator.WithSleep(func(context.Context, time.Duration) error { return nil }),
	)
	if _, err := o.Transcribe(context.Background(), audio); err != nil {
		t.Fatalf("Transcribe: %v", err)
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	attempts := counterByAttr(t, rm, "callscribe.transcription.attempts", "outcome")
	for _, outcome := range []string{observe.OutcomePollTimeout, observe.OutcomeImplausible, observe.OutcomeAccepted} {
		if attempts[outcome] != 1 {
			t.Errorf("attempts[%s] = %d, want 1 (all: %v)", outcome, attempts[outcome], attempts)
		}
	}
	results := counterByAttr(t, rm, "callscribe.transcription.results", "result")
	if results[observe.ResultAccepted] != 1 || len(results) != 1 {
		t.Errorf("results = %v, want one accepted", results)
	}
}

func counterByAttr(t *testing.T, rm metricdata.ResourceMetrics, name, key string) map[string]int64 {
	t.Helper()
	out := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			if md.Name != name {
				continue
			}
			sum, ok := md.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("%s has data type %T", name, md.Data)
			}
			for _, dp := range sum.DataPoints {
				v, _ := dp.Attributes.Value(attribute.Key(key))
				out[v.AsString()] += dp.Value
			}
		}
	}
	return out
}

func TestTranscribe_SpansOnTracerProvider(t *testing.T) {
	t.Parallel()

	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	rec := &sttmock.Recognizer{Responses: []sttmock.Response{
		{Err: stt.ErrTransport},
		{Result: plausible()},
	}}
	o, _ := newOrchestrator(t, rec, orchestrator.WithTracerProvider(tp))
	if _, err := o.Transcribe(context.Background(), audio); err != nil {
		t.Fatalf("Transcribe: %v", err)
	}

	spans := exp.GetSpans()
	if len(spans) != 3 {
		t.Fatalf("spans = %d, want 2 attempts and 1 transcription", len(spans))
	}
	root := spans[len(spans)-1]
	if root.Name != "orchestrator.Transcribe" {
		t.Fatalf("last span = %q, want orchestrator.Transcribe", root.Name)
	}
	for _, s := range spans[:2] {
		if s.Name != "orchestrator.attempt" || s.Parent.SpanID() != root.SpanContext.SpanID() {
			t.Errorf("span %q is not an attempt under the transcription", s.Name)
		}
	}
	if spans[0].Status.Code != codes.Error {
		t.Errorf("failed attempt status = %v, want Error", spans[0].Status.Code)
	}
}
