// Package stt defines the Recognizer interface for batch speech-to-text
// backends that support speaker diarization.
//
// A recognizer wraps a remote transcription service (e.g., the Speechmatics
// batch or realtime API) and turns one audio recording into a raw
// [RecognitionResult]: an ordered list of word and punctuation items, each
// carrying the provider's own (often unstable) speaker tag. Turning those raw
// tags into a stable conversation transcript is the job of
// internal/transcript; recognizers never interpret speaker tags themselves.
//
// Implementations must be safe for concurrent use. Each call to Recognize is
// independent and owns its own request state.
package stt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Error taxonomy shared by all recognizers. Implementations wrap one of these
// sentinels so callers can classify failures with [errors.Is].
var (
	// ErrTransport marks failures to complete the recognition call at all:
	// network errors, authentication failures, malformed submissions.
	ErrTransport = errors.New("stt: transport failure")

	// ErrJobRejected marks an explicit rejection of the submitted job by the
	// provider.
	ErrJobRejected = errors.New("stt: job rejected")

	// ErrPollTimeout marks a job that never reached completion within the
	// bounded polling window.
	ErrPollTimeout = errors.New("stt: poll timeout")
)

// StatusError is returned when the provider answers with a non-success HTTP
// status. It unwraps to [ErrTransport].
type StatusError struct {
	// Op names the request that failed (e.g., "submit job").
	Op string

	// StatusCode is the HTTP status returned by the provider.
	StatusCode int

	// Body is the (possibly truncated) response body.
	Body string
}

// Error implements error.
func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: unexpected status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Op, e.StatusCode, e.Body)
}

// Unwrap lets errors.Is(err, ErrTransport) match status failures.
func (e *StatusError) Unwrap() error { return ErrTransport }

// Audio is a re-openable audio source. Every recognition attempt opens the
// source again so retries never observe a half-consumed reader.
type Audio struct {
	// Name is the file name reported to the provider (e.g., "call.wav").
	Name string

	// Open returns a fresh reader positioned at the start of the audio.
	Open func() (io.ReadCloser, error)
}

// FileAudio returns an [Audio] reading from the file at path.
func FileAudio(path string) Audio {
	return Audio{
		Name: filepath.Base(path),
		Open: func() (io.ReadCloser, error) { return os.Open(path) },
	}
}

// BytesAudio returns an [Audio] serving an in-memory copy of data.
func BytesAudio(name string, data []byte) Audio {
	return Audio{
		Name: name,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

// Recognizer is the abstraction over any diarizing batch STT backend.
type Recognizer interface {
	// Recognize transcribes audio with speaker diarization enabled and returns
	// the provider's raw result. It blocks until the provider has finished
	// (submission and polling included) or ctx is cancelled.
	//
	// Errors wrap [ErrTransport], [ErrJobRejected] or [ErrPollTimeout].
	Recognize(ctx context.Context, audio Audio, cfg RecognizeConfig) (*RecognitionResult, error)
}
