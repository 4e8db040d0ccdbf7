// Package deepgram provides a Deepgram-backed [stt.Recognizer] using the
// pre-recorded audio API with speaker diarization enabled.
//
// Deepgram answers synchronously, so there is no job polling. Its word list
// is converted into the json-v2 shaped [stt.RecognitionResult] the rest of
// callscribe consumes: integer speaker indices become tags "S1", "S2", ...
// and punctuated words are preferred over bare ones.
//
// Only the language of [stt.RecognizeConfig] is honoured; Deepgram has no
// equivalent of the Speechmatics operating point or diarization tuning.
package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/MrWong99/callscribe/pkg/provider/stt"
)

const (
	defaultBaseURL  = "https://api.deepgram.com/v1"
	defaultModel    = "nova-3"
	defaultLanguage = "en"

	maxErrorBody = 2048
)

// Compile-time assertion that Provider implements stt.Recognizer.
var _ stt.Recognizer = (*Provider)(nil)

// Option is a functional option for configuring the Deepgram Provider.
type Option func(*Provider)

// WithModel sets the Deepgram model to use (e.g., "nova-3", "nova-2-phonecall").
func WithModel(model string) Option {
	return func(p *Provider) {
		if model != "" {
			p.model = model
		}
	}
}

// WithLanguage sets the language used when the recognize config has none.
func WithLanguage(language string) Option {
	return func(p *Provider) {
		if language != "" {
			p.language = language
		}
	}
}

// WithBaseURL overrides the API root (default "https://api.deepgram.com/v1").
func WithBaseURL(u string) Option {
	return func(p *Provider) {
		if u != "" {
			p.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithHTTPClient replaces the HTTP client. Long recordings need a generous
// timeout because the request only returns once recognition is complete.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		if c != nil {
			p.httpClient = c
		}
	}
}

// Provider implements stt.Recognizer backed by the Deepgram pre-recorded API.
type Provider struct {
	apiKey     string
	model      string
	language   string
	baseURL    string
	httpClient *http.Client
}

// New creates a new Deepgram Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("deepgram: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:     apiKey,
		model:      defaultModel,
		language:   defaultLanguage,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Minute},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// listenResponse is the subset of the /listen response callscribe reads.
type listenResponse struct {
	Metadata struct {
		RequestID string `json:"request_id"`
	} `json:"metadata"`
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Words []word `json:"words"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

type word struct {
	Word           string   `json:"word"`
	PunctuatedWord string   `json:"punctuated_word"`
	Start          float64  `json:"start"`
	End            float64  `json:"end"`
	Confidence     *float64 `json:"confidence"`
	Speaker        *int     `json:"speaker"`
}

// Recognize uploads the audio and converts the diarized word list of the
// first channel into a [stt.RecognitionResult].
func (p *Provider) Recognize(ctx context.Context, audio stt.Audio, cfg stt.RecognizeConfig) (*stt.RecognitionResult, error) {
	if audio.Open == nil {
		return nil, fmt.Errorf("deepgram: audio %q has no source", audio.Name)
	}
	src, err := audio.Open()
	if err != nil {
		return nil, fmt.Errorf("deepgram: open audio: %w", err)
	}
	defer src.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.buildURL(cfg), src)
	if err != nil {
		return nil, fmt.Errorf("deepgram: create request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+p.apiKey)
	req.Header.Set("Content-Type", contentType(audio.Name))
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("deepgram: listen: %w", ctxErr)
		}
		return nil, fmt.Errorf("deepgram: listen: %w: %v", stt.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		body := strings.TrimSpace(string(data))
		if resp.StatusCode == http.StatusBadRequest {
			// Unsupported or corrupt audio; a retry would fail the same way.
			return nil, fmt.Errorf("deepgram: listen: %w: %s", stt.ErrJobRejected, body)
		}
		return nil, fmt.Errorf("deepgram: %w", &stt.StatusError{
			Op:         "listen",
			StatusCode: resp.StatusCode,
			Body:       body,
		})
	}

	var lr listenResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return nil, fmt.Errorf("deepgram: listen: %w: decode response: %v", stt.ErrTransport, err)
	}
	slog.Debug("deepgram: recognition complete", "request_id", lr.Metadata.RequestID, "audio", audio.Name)
	return toResult(&lr), nil
}

// buildURL constructs the /listen endpoint URL for cfg.
func (p *Provider) buildURL(cfg stt.RecognizeConfig) string {
	lang := cfg.Language
	if lang == "" {
		lang = p.language
	}
	q := url.Values{}
	q.Set("model", p.model)
	q.Set("language", lang)
	q.Set("diarize", "true")
	q.Set("punctuate", "true")
	return p.baseURL + "/listen?" + q.Encode()
}

// toResult converts the first channel's best alternative. Multi-channel
// recordings are diarized by Deepgram per channel; callscribe expects mono
// call audio.
func toResult(lr *listenResponse) *stt.RecognitionResult {
	res := &stt.RecognitionResult{Results: []stt.ResultItem{}}
	if len(lr.Results.Channels) == 0 || len(lr.Results.Channels[0].Alternatives) == 0 {
		return res
	}
	words := lr.Results.Channels[0].Alternatives[0].Words
	res.Results = make([]stt.ResultItem, 0, len(words))
	for _, w := range words {
		content := w.PunctuatedWord
		if content == "" {
			content = w.Word
		}
		var tag string
		if w.Speaker != nil {
			tag = "S" + strconv.Itoa(*w.Speaker+1)
		}
		res.Results = append(res.Results, stt.ResultItem{
			Type:      "word",
			StartTime: w.Start,
			EndTime:   w.End,
			Alternatives: []stt.Alternative{{
				Content:    content,
				Confidence: w.Confidence,
				Speaker:    tag,
			}},
		})
	}
	return res
}

// contentType guesses the upload MIME type from the file name. Deepgram
// sniffs the container itself when it is not recognised.
func contentType(name string) string {
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); strings.HasPrefix(t, "audio/") {
		return t
	}
	return "application/octet-stream"
}
