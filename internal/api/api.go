// Package api exposes the transcription pipeline over HTTP.
//
// Routes:
//
//   - POST /v1/transcriptions: multipart upload (field "audio"); runs the
//     full recognize, format and validate loop.
//   - POST /v1/transcripts/parse: plain-text transcript (raw body or
//     multipart field "text") to structured transcript.
//   - POST /v1/transcripts/format: raw json-v2 recognition result to
//     transcript, without calling a recognizer.
//
// Failures are reported as {"success": false, "error": "..."}.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/MrWong99/callscribe/internal/observe"
	"github.com/MrWong99/callscribe/internal/orchestrator"
	"github.com/MrWong99/callscribe/internal/transcript"
	"github.com/MrWong99/callscribe/pkg/provider/stt"
)

const (
	defaultMaxUploadBytes = 100 << 20

	// multipartMemory is the part of an upload kept in memory before
	// mime/multipart spills to disk.
	multipartMemory = 8 << 20
)

// Transcriber runs the transcription loop. [*orchestrator.Orchestrator]
// implements it.
type Transcriber interface {
	Transcribe(ctx context.Context, audio stt.Audio) (*orchestrator.Result, error)
	Options() orchestrator.Options
}

// Option configures a [Handler].
type Option func(*Handler)

// WithMaxUploadBytes caps request bodies. Default: 100 MiB.
func WithMaxUploadBytes(n int64) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxUpload = n
		}
	}
}

// WithTempDir sets the directory uploads are spooled to. Default:
// [os.TempDir].
func WithTempDir(dir string) Option {
	return func(h *Handler) { h.tempDir = dir }
}

// Handler serves the transcription API.
type Handler struct {
	tr        Transcriber
	maxUpload int64
	tempDir   string
}

// New returns a [Handler] backed by tr.
func New(tr Transcriber, opts ...Option) *Handler {
	h := &Handler{tr: tr, maxUpload: defaultMaxUploadBytes}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Register adds the API routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/transcriptions", h.Transcribe)
	mux.HandleFunc("POST /v1/transcripts/parse", h.Parse)
	mux.HandleFunc("POST /v1/transcripts/format", h.Format)
}

// TranscriptionResponse is the body of a successful POST /v1/transcriptions.
type TranscriptionResponse struct {
	Success      bool                    `json:"success"`
	ID           string                  `json:"id"`
	Attempts     int                     `json:"attempts"`
	BestEffort   bool                    `json:"best_effort"`
	Plausibility transcript.Plausibility `json:"plausibility"`
	Transcript   transcript.Transcript   `json:"transcript"`
}

// TranscriptResponse is the body of a successful parse or format call.
type TranscriptResponse struct {
	Success      bool                    `json:"success"`
	Plausibility transcript.Plausibility `json:"plausibility"`
	Transcript   transcript.Transcript   `json:"transcript"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// Transcribe handles POST /v1/transcriptions.
func (h *Handler) Transcribe(w http.ResponseWriter, r *http.Request) {
	log := observe.Logger(r.Context())
	if r.ContentLength > h.maxUpload {
		writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("request body exceeds %d bytes", h.maxUpload))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)

	file, header, err := r.FormFile("audio")
	if err != nil {
		status, msg := uploadError(err)
		writeError(w, status, msg)
		return
	}
	defer file.Close()

	path, err := h.spool(file, header.Filename)
	if err != nil {
		status, msg := uploadError(err)
		if status == http.StatusInternalServerError {
			log.Error("api: spool upload", "err", err)
		}
		writeError(w, status, msg)
		return
	}
	defer os.Remove(path)

	audio := stt.Audio{
		Name: filepath.Base(header.Filename),
		Open: func() (io.ReadCloser, error) { return os.Open(path) },
	}
	res, err := h.tr.Transcribe(r.Context(), audio)
	if err != nil {
		log.Warn("api: transcription failed", "audio", audio.Name, "err", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, TranscriptionResponse{
		Success:      true,
		ID:           res.ID,
		Attempts:     res.Attempts,
		BestEffort:   res.BestEffort,
		Plausibility: res.Plausibility,
		Transcript:   res.Transcript,
	})
}

// spool copies an upload to a temporary file so every attempt can re-read
// it from the start.
func (h *Handler) spool(src io.Reader, name string) (string, error) {
	f, err := os.CreateTemp(h.tempDir, "callscribe-*"+filepath.Ext(filepath.Base(name)))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, src); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

// Parse handles POST /v1/transcripts/parse.
func (h *Handler) Parse(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)

	var text string
	if isMultipart(r) {
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			status, msg := uploadError(err)
			writeError(w, status, msg)
			return
		}
		text = r.FormValue("text")
	} else {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			status, msg := uploadError(err)
			writeError(w, status, msg)
			return
		}
		text = string(body)
	}
	if strings.TrimSpace(text) == "" {
		writeError(w, http.StatusBadRequest, "transcript text is empty")
		return
	}

	t := transcript.ParseText(text)
	writeJSON(w, http.StatusOK, TranscriptResponse{
		Success:      true,
		Plausibility: transcript.CheckPlausibility(t),
		Transcript:   t,
	})
}

// Format handles POST /v1/transcripts/format.
func (h *Handler) Format(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)

	var raw stt.RecognitionResult
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		status, _ := uploadError(err)
		if status == http.StatusInternalServerError {
			status = http.StatusBadRequest
		}
		writeError(w, status, fmt.Sprintf("invalid recognition result: %v", err))
		return
	}

	t := h.tr.Options().Formatter.Format(&raw)
	writeJSON(w, http.StatusOK, TranscriptResponse{
		Success:      true,
		Plausibility: transcript.CheckPlausibility(t),
		Transcript:   t,
	})
}

func isMultipart(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "multipart/form-data"
}

// uploadError maps request body errors to a status and client message.
func uploadError(err error) (int, string) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit)
	case errors.Is(err, http.ErrMissingFile):
		return http.StatusBadRequest, `multipart field "audio" is required`
	case errors.Is(err, http.ErrNotMultipart), errors.Is(err, http.ErrMissingBoundary):
		return http.StatusBadRequest, "request must be multipart/form-data"
	default:
		return http.StatusInternalServerError, "could not read request body"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Success: false, Error: msg})
}
