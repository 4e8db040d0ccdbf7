package deepgram

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MrWong99/callscribe/pkg/provider/stt"
)

const listenBody = `{
  "metadata": {"request_id": "req-1"},
  "results": {"channels": [{"alternatives": [{
    "transcript": "selamat pagi ya",
    "words": [
      {"word": "selamat", "punctuated_word": "Selamat", "start": 0.1, "end": 0.5, "confidence": 0.97, "speaker": 0},
      {"word": "pagi", "punctuated_word": "pagi.", "start": 0.5, "end": 0.9, "confidence": 0.95, "speaker": 0},
      {"word": "ya", "start": 1.4, "end": 1.6, "speaker": 1}
    ]
  }]}]}
}`

type captured struct {
	auth, contentType, query, body string
}

func newServer(t *testing.T, status int, body string) (*httptest.Server, *captured) {
	t.Helper()
	got := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/listen" {
			t.Errorf("request = %s %s, want POST /v1/listen", r.Method, r.URL.Path)
		}
		data, _ := io.ReadAll(r.Body)
		got.auth = r.Header.Get("Authorization")
		got.contentType = r.Header.Get("Content-Type")
		got.query = r.URL.RawQuery
		got.body = string(data)
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, got
}

func newProvider(t *testing.T, srv *httptest.Server, opts ...Option) *Provider {
	t.Helper()
	p, err := New("dg-key", append([]Option{WithBaseURL(srv.URL + "/v1/")}, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func TestNew_EmptyKey(t *testing.T) {
	t.Parallel()

	if _, err := New(""); err == nil {
		t.Fatal("New(\"\") succeeded")
	}
}

func TestRecognize_ConvertsDiarizedWords(t *testing.T) {
	t.Parallel()

	srv, got := newServer(t, http.StatusOK, listenBody)
	p := newProvider(t, srv, WithModel("nova-2-phonecall"))

	res, err := p.Recognize(context.Background(), stt.BytesAudio("call.bin", []byte("AUDIO")), stt.RecognizeConfig{Language: "id"})
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}

	if got.auth != "Token dg-key" {
		t.Errorf("Authorization = %q", got.auth)
	}
	if got.body != "AUDIO" {
		t.Errorf("body = %q, want AUDIO", got.body)
	}
	if got.contentType != "application/octet-stream" {
		t.Errorf("Content-Type = %q", got.contentType)
	}
	for _, want := range []string{"diarize=true", "language=id", "model=nova-2-phonecall", "punctuate=true"} {
		if !strings.Contains(got.query, want) {
			t.Errorf("query %q lacks %q", got.query, want)
		}
	}

	if len(res.Results) != 3 {
		t.Fatalf("items = %d, want 3", len(res.Results))
	}
	first := res.Results[0]
	if first.Type != "word" || first.StartTime != 0.1 || first.EndTime != 0.5 {
		t.Errorf("first item = %+v", first)
	}
	alt := first.Alternatives[0]
	if alt.Content != "Selamat" || alt.Speaker != "S1" || alt.Confidence == nil || *alt.Confidence != 0.97 {
		t.Errorf("first alternative = %+v", alt)
	}
	last := res.Results[2].Alternatives[0]
	if last.Content != "ya" || last.Speaker != "S2" || last.Confidence != nil {
		t.Errorf("last alternative = %+v, want bare word, S2, no confidence", last)
	}
}

func TestRecognize_DefaultLanguage(t *testing.T) {
	t.Parallel()

	srv, got := newServer(t, http.StatusOK, listenBody)
	p := newProvider(t, srv, WithLanguage("ms"))

	if _, err := p.Recognize(context.Background(), stt.BytesAudio("a", nil), stt.RecognizeConfig{}); err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if !strings.Contains(got.query, "language=ms") {
		t.Errorf("query = %q, want language=ms", got.query)
	}
}

func TestRecognize_EmptyChannels(t *testing.T) {
	t.Parallel()

	srv, _ := newServer(t, http.StatusOK, `{"results":{"channels":[]}}`)
	res, err := newProvider(t, srv).Recognize(context.Background(), stt.BytesAudio("a", nil), stt.RecognizeConfig{})
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if res == nil || len(res.Results) != 0 {
		t.Errorf("result = %+v, want empty", res)
	}
}

func TestRecognize_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		status   int
		body     string
		want     error
		wantCode int
	}{
		{name: "bad audio", status: http.StatusBadRequest, body: `{"err_msg":"corrupt data"}`, want: stt.ErrJobRejected},
		{name: "unauthorised", status: http.StatusUnauthorized, body: `{"err_msg":"invalid key"}`, want: stt.ErrTransport, wantCode: http.StatusUnauthorized},
		{name: "server error", status: http.StatusBadGateway, body: "", want: stt.ErrTransport, wantCode: http.StatusBadGateway},
		{name: "bad json", status: http.StatusOK, body: "{", want: stt.ErrTransport},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv, _ := newServer(t, tt.status, tt.body)
			_, err := newProvider(t, srv).Recognize(context.Background(), stt.BytesAudio("a", nil), stt.RecognizeConfig{})
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			var se *stt.StatusError
			if tt.wantCode != 0 {
				if !errors.As(err, &se) || se.StatusCode != tt.wantCode {
					t.Errorf("StatusError = %+v, want status %d", se, tt.wantCode)
				}
			}
		})
	}
}

func TestRecognize_Cancelled(t *testing.T) {
	t.Parallel()

	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(block) })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newProvider(t, srv).Recognize(ctx, stt.BytesAudio("a", nil), stt.RecognizeConfig{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if errors.Is(err, stt.ErrTransport) {
		t.Error("cancellation classified as transport failure")
	}
}

func TestRecognize_NoSource(t *testing.T) {
	t.Parallel()

	p, _ := New("k")
	if _, err := p.Recognize(context.Background(), stt.Audio{Name: "x"}, stt.RecognizeConfig{}); err == nil {
		t.Fatal("Recognize without source succeeded")
	}
}

func TestContentType(t *testing.T) {
	t.Parallel()

	if got := contentType("notes.txt"); got != "application/octet-stream" {
		t.Errorf("contentType(notes.txt) = %q", got)
	}
	if got := contentType("noext"); got != "application/octet-stream" {
		t.Errorf("contentType(noext) = %q", got)
	}
}
