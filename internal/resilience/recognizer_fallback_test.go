package resilience

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/MrWong99/callscribe/internal/observe"
	"github.com/MrWong99/callscribe/pkg/provider/stt"
	sttmock "github.com/MrWong99/callscribe/pkg/provider/stt/mock"
)

var testAudio = stt.BytesAudio("call.wav", []byte("RIFF"))

func okResult(word string) *stt.RecognitionResult {
	return &stt.RecognitionResult{Results: []stt.ResultItem{{
		Type:         "word",
		Alternatives: []stt.Alternative{{Content: word, Speaker: "S1"}},
	}}}
}

func firstWord(res *stt.RecognitionResult) string {
	if res == nil || len(res.Results) == 0 || len(res.Results[0].Alternatives) == 0 {
		return ""
	}
	return res.Results[0].Alternatives[0].Content
}

func TestRecognizerFallback_PrimarySuccess(t *testing.T) {
	t.Parallel()

	primary := &sttmock.Recognizer{Responses: []sttmock.Response{{Result: okResult("p")}}}
	secondary := &sttmock.Recognizer{}
	fb := NewRecognizerFallback(primary, "primary", FallbackConfig{})
	fb.AddFallback("secondary", secondary)

	res, err := fb.Recognize(context.Background(), testAudio, stt.RecognizeConfig{Language: "id"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w := firstWord(res); w != "p" {
		t.Errorf("result word = %q, want p", w)
	}
	if primary.CallCount() != 1 || secondary.CallCount() != 0 {
		t.Errorf("calls = %d/%d, want 1/0", primary.CallCount(), secondary.CallCount())
	}
	if primary.Calls[0].Cfg.Language != "id" {
		t.Errorf("config not forwarded: %+v", primary.Calls[0].Cfg)
	}
}

func TestRecognizerFallback_TransportFailover(t *testing.T) {
	t.Parallel()

	primary := &sttmock.Recognizer{Responses: []sttmock.Response{{Err: fmt.Errorf("submit: %w", stt.ErrTransport)}}}
	secondary := &sttmock.Recognizer{Responses: []sttmock.Response{{Result: okResult("s")}}}
	fb := NewRecognizerFallback(primary, "primary", FallbackConfig{})
	fb.AddFallback("secondary", secondary)

	res, err := fb.Recognize(context.Background(), testAudio, stt.RecognizeConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w := firstWord(res); w != "s" {
		t.Errorf("result word = %q, want s", w)
	}
}

func TestRecognizerFallback_RejectionIsNotRetriedElsewhere(t *testing.T) {
	t.Parallel()

	primary := &sttmock.Recognizer{Responses: []sttmock.Response{{Err: fmt.Errorf("job x: %w", stt.ErrJobRejected)}}}
	secondary := &sttmock.Recognizer{}
	fb := NewRecognizerFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 1},
	})
	fb.AddFallback("secondary", secondary)

	_, err := fb.Recognize(context.Background(), testAudio, stt.RecognizeConfig{})
	if !errors.Is(err, stt.ErrJobRejected) {
		t.Fatalf("err = %v, want ErrJobRejected", err)
	}
	if secondary.CallCount() != 0 {
		t.Errorf("secondary called %d times, want 0", secondary.CallCount())
	}
	if st := fb.Status(); st[0].State != "closed" {
		t.Errorf("primary breaker = %s, want closed", st[0].State)
	}
}

func TestRecognizerFallback_AllOpenIsTransportFailure(t *testing.T) {
	t.Parallel()

	primary := &sttmock.Recognizer{Responses: []sttmock.Response{{Err: stt.ErrPollTimeout}}}
	fb := NewRecognizerFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 1, ResetTimeout: time.Hour},
	})

	if _, err := fb.Recognize(context.Background(), testAudio, stt.RecognizeConfig{}); !errors.Is(err, stt.ErrPollTimeout) {
		t.Fatalf("first err = %v, want ErrPollTimeout", err)
	}
	if fb.Available() {
		t.Fatal("Available() = true after the only breaker opened")
	}

	_, err := fb.Recognize(context.Background(), testAudio, stt.RecognizeConfig{})
	if !errors.Is(err, stt.ErrTransport) || !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("err = %v, want ErrTransport and ErrCircuitOpen", err)
	}
	if primary.CallCount() != 1 {
		t.Errorf("primary called %d times, want 1", primary.CallCount())
	}
}

func TestRecognizerFallback_RecordsMetrics(t *testing.T) {
	t.Parallel()

	reader := metric.NewManualReader()
	m, err := observe.NewMetrics(metric.NewMeterProvider(metric.WithReader(reader)))
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	primary := &sttmock.Recognizer{Responses: []sttmock.Response{{Err: stt.ErrTransport}}}
	secondary := &sttmock.Recognizer{Responses: []sttmock.Response{{Result: okResult("s")}}}
	fb := NewRecognizerFallback(primary, "primary", FallbackConfig{}, WithFallbackMetrics(m))
	fb.AddFallback("secondary", secondary)

	if _, err := fb.Recognize(context.Background(), testAudio, stt.RecognizeConfig{}); err != nil {
		t.Fatalf("Recognize: %v", err)
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	var errorsSeen int64
	var recognitions uint64
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			switch md.Name {
			case "callscribe.provider.errors":
				for _, dp := range md.Data.(metricdata.Sum[int64]).DataPoints {
					errorsSeen += dp.Value
				}
			case "callscribe.recognition.duration":
				for _, dp := range md.Data.(metricdata.Histogram[float64]).DataPoints {
					recognitions += dp.Count
				}
			}
		}
	}
	if errorsSeen != 1 {
		t.Errorf("provider errors = %d, want 1", errorsSeen)
	}
	if recognitions != 2 {
		t.Errorf("recognitions = %d, want 2", recognitions)
	}
}

func TestErrorKind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{fmt.Errorf("x: %w", stt.ErrJobRejected), "job_rejected"},
		{stt.ErrPollTimeout, "poll_timeout"},
		{&stt.StatusError{Op: "submit job", StatusCode: 500}, "transport"},
		{context.Canceled, "canceled"},
	}
	for _, tt := range tests {
		if got := ErrorKind(tt.err); got != tt.want {
			t.Errorf("ErrorKind(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
