// Package mock provides test doubles for the stt package interfaces.
//
// Recognizer replays a scripted sequence of responses, one per Recognize
// call, and records every invocation:
//
//	rec := &mock.Recognizer{
//	    Responses: []mock.Response{
//	        {Err: stt.ErrTransport},
//	        {Result: &stt.RecognitionResult{...}},
//	    },
//	}
//	res, err := rec.Recognize(ctx, audio, cfg)
package mock

import (
	"context"
	"io"
	"sync"

	"github.com/MrWong99/callscribe/pkg/provider/stt"
)

// RecognizeCall records a single invocation of Recognizer.Recognize.
type RecognizeCall struct {
	// Ctx is the context passed to Recognize.
	Ctx context.Context
	// AudioName is the Name of the audio passed to Recognize.
	AudioName string
	// AudioBytes is the number of bytes read from the audio source.
	AudioBytes int
	// Cfg is the RecognizeConfig passed to Recognize.
	Cfg stt.RecognizeConfig
}

// Response is one scripted Recognize outcome.
type Response struct {
	Result *stt.RecognitionResult
	Err    error
}

// Recognizer is a mock implementation of stt.Recognizer.
type Recognizer struct {
	mu sync.Mutex

	// Responses are returned in order, one per call. Once exhausted, the last
	// response is repeated. With no responses, Recognize returns an empty
	// result.
	Responses []Response

	// ReadAudio makes Recognize drain the audio source and record its size.
	ReadAudio bool

	// Calls records every call to Recognize.
	Calls []RecognizeCall
}

// Recognize records the call and returns the next scripted response.
func (r *Recognizer) Recognize(ctx context.Context, audio stt.Audio, cfg stt.RecognizeConfig) (*stt.RecognitionResult, error) {
	call := RecognizeCall{Ctx: ctx, AudioName: audio.Name, Cfg: cfg}
	if r.ReadAudio && audio.Open != nil {
		rc, err := audio.Open()
		if err != nil {
			return nil, err
		}
		n, _ := io.Copy(io.Discard, rc)
		rc.Close()
		call.AudioBytes = int(n)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	idx := len(r.Calls)
	r.Calls = append(r.Calls, call)

	if len(r.Responses) == 0 {
		return &stt.RecognitionResult{}, nil
	}
	if idx >= len(r.Responses) {
		idx = len(r.Responses) - 1
	}
	resp := r.Responses[idx]
	return resp.Result, resp.Err
}

// CallCount returns the number of Recognize calls so far. Thread-safe.
func (r *Recognizer) CallCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Calls)
}

// Reset clears all recorded calls. Thread-safe.
func (r *Recognizer) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls = nil
}

// Ensure Recognizer implements stt.Recognizer at compile time.
var _ stt.Recognizer = (*Recognizer)(nil)
