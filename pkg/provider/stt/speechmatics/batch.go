// Package speechmatics provides Speechmatics-backed implementations of
// [stt.Recognizer].
//
// [Provider] uses the batch jobs API: the audio file is uploaded as a
// multipart job, the job status is polled at a fixed interval until it is
// done, and the json-v2 transcript (word items with speaker tags) is fetched.
// [Realtime] streams the same file over the realtime WebSocket API and
// collects the transcript items as they arrive.
//
// Usage:
//
//	p, err := speechmatics.New(apiKey,
//	    speechmatics.WithPollInterval(5*time.Second),
//	    speechmatics.WithMaxPolls(60),
//	)
//	result, err := p.Recognize(ctx, stt.FileAudio("call.wav"), cfg)
package speechmatics

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/MrWong99/callscribe/pkg/provider/stt"
)

const (
	defaultBaseURL      = "https://asr.api.speechmatics.com/v2"
	defaultPollInterval = 5 * time.Second
	defaultMaxPolls     = 60

	// maxErrorBody bounds how much of an error response is kept in a
	// StatusError.
	maxErrorBody = 2048
)

// Job status values reported by the jobs API.
const (
	statusDone     = "done"
	statusRejected = "rejected"
)

// Compile-time assertion that Provider implements stt.Recognizer.
var _ stt.Recognizer = (*Provider)(nil)

// Option is a functional option for configuring a [Provider].
type Option func(*Provider)

// WithBaseURL overrides the jobs API base URL
// (default "https://asr.api.speechmatics.com/v2").
func WithBaseURL(u string) Option {
	return func(p *Provider) {
		if u != "" {
			p.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithHTTPClient replaces the HTTP client used for all requests.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		if c != nil {
			p.httpClient = c
		}
	}
}

// WithPollInterval sets the sleep between two job status checks. Default: 5s.
func WithPollInterval(d time.Duration) Option {
	return func(p *Provider) {
		if d > 0 {
			p.pollInterval = d
		}
	}
}

// WithMaxPolls sets the hard ceiling on status checks before the job is
// reported as timed out. Default: 60.
func WithMaxPolls(n int) Option {
	return func(p *Provider) {
		if n > 0 {
			p.maxPolls = n
		}
	}
}

// Provider implements stt.Recognizer against the Speechmatics batch API.
type Provider struct {
	apiKey       string
	baseURL      string
	pollInterval time.Duration
	maxPolls     int
	httpClient   *http.Client
}

// New creates a batch Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("speechmatics: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:       apiKey,
		baseURL:      defaultBaseURL,
		pollInterval: defaultPollInterval,
		maxPolls:     defaultMaxPolls,
		httpClient:   &http.Client{Timeout: 2 * time.Minute},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// jobRequest is the "config" form field of a job submission.
type jobRequest struct {
	Type                string              `json:"type"`
	TranscriptionConfig transcriptionConfig `json:"transcription_config"`
}

type jobCreated struct {
	ID string `json:"id"`
}

type jobStatus struct {
	Job struct {
		ID     string `json:"id"`
		Status string `json:"status"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	} `json:"job"`
}

// Recognize submits audio as a batch job, polls it to completion and returns
// the json-v2 transcript.
func (p *Provider) Recognize(ctx context.Context, audio stt.Audio, cfg stt.RecognizeConfig) (*stt.RecognitionResult, error) {
	jobID, err := p.submit(ctx, audio, cfg)
	if err != nil {
		return nil, err
	}
	slog.Debug("speechmatics: job created", "job_id", jobID, "audio", audio.Name)
	return p.poll(ctx, jobID)
}

// submit uploads the audio and transcription config and returns the job ID.
func (p *Provider) submit(ctx context.Context, audio stt.Audio, cfg stt.RecognizeConfig) (string, error) {
	if audio.Open == nil {
		return "", fmt.Errorf("speechmatics: audio %q has no source", audio.Name)
	}
	src, err := audio.Open()
	if err != nil {
		return "", fmt.Errorf("speechmatics: open audio: %w", err)
	}
	defer src.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	name := audio.Name
	if name == "" {
		name = "audio"
	}
	fw, err := mw.CreateFormFile("data_file", name)
	if err != nil {
		return "", fmt.Errorf("speechmatics: create form file: %w", err)
	}
	if _, err := io.Copy(fw, src); err != nil {
		return "", fmt.Errorf("speechmatics: copy audio: %w", err)
	}

	conf, err := json.Marshal(jobRequest{
		Type:                "transcription",
		TranscriptionConfig: buildTranscriptionConfig(cfg),
	})
	if err != nil {
		return "", fmt.Errorf("speechmatics: encode config: %w", err)
	}
	if err := mw.WriteField("config", string(conf)); err != nil {
		return "", fmt.Errorf("speechmatics: write config field: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("speechmatics: close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/jobs", &body)
	if err != nil {
		return "", fmt.Errorf("speechmatics: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var created jobCreated
	if err := p.do(req, "submit job", &created); err != nil {
		return "", err
	}
	if created.ID == "" {
		return "", fmt.Errorf("speechmatics: submit job: %w: response has no job id", stt.ErrTransport)
	}
	return created.ID, nil
}

// poll checks the job status until it is done, rejected, or the poll budget
// is exhausted.
func (p *Provider) poll(ctx context.Context, jobID string) (*stt.RecognitionResult, error) {
	for i := 0; i < p.maxPolls; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/jobs/"+jobID, nil)
		if err != nil {
			return nil, fmt.Errorf("speechmatics: create request: %w", err)
		}
		var st jobStatus
		if err := p.do(req, "job status", &st); err != nil {
			return nil, err
		}

		switch st.Job.Status {
		case statusDone:
			return p.fetchTranscript(ctx, jobID)
		case statusRejected:
			reason := "unknown error"
			if len(st.Job.Errors) > 0 && st.Job.Errors[0].Message != "" {
				reason = st.Job.Errors[0].Message
			}
			return nil, fmt.Errorf("speechmatics: job %s: %w: %s", jobID, stt.ErrJobRejected, reason)
		default:
			slog.Debug("speechmatics: job not finished", "job_id", jobID, "status", st.Job.Status, "poll", i+1)
		}
		if i+1 >= p.maxPolls {
			break
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("speechmatics: job %s: %w", jobID, ctx.Err())
		case <-time.After(p.pollInterval):
		}
	}
	return nil, fmt.Errorf("speechmatics: job %s: %w after %d polls", jobID, stt.ErrPollTimeout, p.maxPolls)
}

// fetchTranscript downloads the json-v2 transcript of a finished job.
func (p *Provider) fetchTranscript(ctx context.Context, jobID string) (*stt.RecognitionResult, error) {
	url := p.baseURL + "/jobs/" + jobID + "/transcript?format=json-v2"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("speechmatics: create request: %w", err)
	}
	var result stt.RecognitionResult
	if err := p.do(req, "fetch transcript", &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// do authenticates and sends req, then decodes a JSON response into out.
func (p *Provider) do(req *http.Request, op string, out any) error {
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return fmt.Errorf("speechmatics: %s: %w", op, ctxErr)
		}
		return fmt.Errorf("speechmatics: %s: %w: %v", op, stt.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("speechmatics: %w", &stt.StatusError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(data)),
		})
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("speechmatics: %s: %w: decode response: %v", op, stt.ErrTransport, err)
	}
	return nil
}
