package speechmatics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/MrWong99/callscribe/pkg/provider/stt"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

const (
	defaultRealtimeURL     = "wss://eu2.rt.speechmatics.com/v2"
	defaultSessionTimeout  = 10 * time.Minute
	defaultChunkSize       = 8 * 1024
	realtimeReadLimitBytes = 16 << 20
)

// Realtime message types.
const (
	msgStartRecognition   = "StartRecognition"
	msgRecognitionStarted = "RecognitionStarted"
	msgAddTranscript      = "AddTranscript"
	msgEndOfStream        = "EndOfStream"
	msgEndOfTranscript    = "EndOfTranscript"
	msgError              = "Error"
	msgWarning            = "Warning"
)

// Compile-time assertion that Realtime implements stt.Recognizer.
var _ stt.Recognizer = (*Realtime)(nil)

// RealtimeOption is a functional option for configuring a [Realtime]
// recognizer.
type RealtimeOption func(*Realtime)

// WithRealtimeURL overrides the WebSocket endpoint
// (default "wss://eu2.rt.speechmatics.com/v2").
func WithRealtimeURL(u string) RealtimeOption {
	return func(r *Realtime) {
		if u != "" {
			r.url = u
		}
	}
}

// WithSessionTimeout bounds one whole realtime session. When it elapses
// before EndOfTranscript arrives the attempt fails with [stt.ErrPollTimeout].
// Default: 10m.
func WithSessionTimeout(d time.Duration) RealtimeOption {
	return func(r *Realtime) {
		if d > 0 {
			r.sessionTimeout = d
		}
	}
}

// WithChunkSize sets the size of the binary audio frames. Default: 8 KiB.
func WithChunkSize(n int) RealtimeOption {
	return func(r *Realtime) {
		if n > 0 {
			r.chunkSize = n
		}
	}
}

// Realtime implements stt.Recognizer by streaming a recorded file through the
// Speechmatics realtime API. It is useful when batch queueing latency matters
// more than the enhanced batch models.
type Realtime struct {
	apiKey         string
	url            string
	sessionTimeout time.Duration
	chunkSize      int
}

// NewRealtime creates a realtime recognizer. apiKey must be non-empty.
func NewRealtime(apiKey string, opts ...RealtimeOption) (*Realtime, error) {
	if apiKey == "" {
		return nil, errors.New("speechmatics: apiKey must not be empty")
	}
	r := &Realtime{
		apiKey:         apiKey,
		url:            defaultRealtimeURL,
		sessionTimeout: defaultSessionTimeout,
		chunkSize:      defaultChunkSize,
	}
	for _, o := range opts {
		o(r)
	}
	return r, nil
}

type startRecognition struct {
	Message             string              `json:"message"`
	AudioFormat         audioFormat         `json:"audio_format"`
	TranscriptionConfig transcriptionConfig `json:"transcription_config"`
}

type audioFormat struct {
	Type string `json:"type"`
}

type endOfStream struct {
	Message   string `json:"message"`
	LastSeqNo int    `json:"last_seq_no"`
}

// realtimeMessage is the union of all server messages we care about.
type realtimeMessage struct {
	Message string           `json:"message"`
	ID      string           `json:"id,omitempty"`
	Type    string           `json:"type,omitempty"`
	Reason  string           `json:"reason,omitempty"`
	Results []stt.ResultItem `json:"results,omitempty"`
}

// Recognize streams audio to the realtime API and returns every final
// transcript item received before EndOfTranscript.
func (r *Realtime) Recognize(ctx context.Context, audio stt.Audio, cfg stt.RecognizeConfig) (*stt.RecognitionResult, error) {
	if audio.Open == nil {
		return nil, fmt.Errorf("speechmatics: audio %q has no source", audio.Name)
	}

	sessCtx, cancel := context.WithTimeout(ctx, r.sessionTimeout)
	defer cancel()

	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+r.apiKey)
	conn, _, err := websocket.Dial(sessCtx, r.url, &websocket.DialOptions{HTTPHeader: headers})
	if err != nil {
		return nil, r.wrapErr(ctx, sessCtx, "dial", err)
	}
	defer conn.CloseNow()
	conn.SetReadLimit(realtimeReadLimitBytes)

	tc := buildTranscriptionConfig(cfg)
	tc.Domain = ""
	if err := wsjson.Write(sessCtx, conn, startRecognition{
		Message:             msgStartRecognition,
		AudioFormat:         audioFormat{Type: "file"},
		TranscriptionConfig: tc,
	}); err != nil {
		return nil, r.wrapErr(ctx, sessCtx, "start recognition", err)
	}

	if err := r.awaitStarted(ctx, sessCtx, conn); err != nil {
		return nil, err
	}

	writeErr := make(chan error, 1)
	go func() {
		writeErr <- r.streamAudio(sessCtx, conn, audio)
	}()

	result := &stt.RecognitionResult{}
	for {
		msg, err := readMessage(sessCtx, conn)
		if err != nil {
			select {
			case werr := <-writeErr:
				if werr != nil {
					return nil, werr
				}
			default:
			}
			return nil, r.wrapErr(ctx, sessCtx, "read", err)
		}

		switch msg.Message {
		case msgAddTranscript:
			result.Results = append(result.Results, msg.Results...)
		case msgEndOfTranscript:
			if werr := <-writeErr; werr != nil {
				return nil, werr
			}
			conn.Close(websocket.StatusNormalClosure, "done")
			return result, nil
		case msgError:
			return nil, fmt.Errorf("speechmatics: realtime: %w: %s: %s", stt.ErrJobRejected, msg.Type, msg.Reason)
		case msgWarning:
			slog.Warn("speechmatics: realtime warning", "type", msg.Type, "reason", msg.Reason)
		}
	}
}

// awaitStarted blocks until the server acknowledges StartRecognition.
func (r *Realtime) awaitStarted(ctx, sessCtx context.Context, conn *websocket.Conn) error {
	for {
		msg, err := readMessage(sessCtx, conn)
		if err != nil {
			return r.wrapErr(ctx, sessCtx, "await start", err)
		}
		switch msg.Message {
		case msgRecognitionStarted:
			slog.Debug("speechmatics: realtime session started", "session_id", msg.ID)
			return nil
		case msgError:
			return fmt.Errorf("speechmatics: realtime: %w: %s: %s", stt.ErrJobRejected, msg.Type, msg.Reason)
		}
	}
}

// streamAudio sends the audio as binary frames followed by EndOfStream.
func (r *Realtime) streamAudio(ctx context.Context, conn *websocket.Conn, audio stt.Audio) error {
	src, err := audio.Open()
	if err != nil {
		return fmt.Errorf("speechmatics: open audio: %w", err)
	}
	defer src.Close()

	buf := make([]byte, r.chunkSize)
	seq := 0
	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			if err := conn.Write(ctx, websocket.MessageBinary, buf[:n]); err != nil {
				return fmt.Errorf("speechmatics: realtime: send audio: %w: %v", stt.ErrTransport, err)
			}
			seq++
		}
		if errors.Is(rerr, io.EOF) {
			break
		}
		if rerr != nil {
			return fmt.Errorf("speechmatics: read audio: %w", rerr)
		}
	}

	if err := wsjson.Write(ctx, conn, endOfStream{Message: msgEndOfStream, LastSeqNo: seq}); err != nil {
		return fmt.Errorf("speechmatics: realtime: end of stream: %w: %v", stt.ErrTransport, err)
	}
	return nil
}

// wrapErr classifies a session failure: caller cancellation is passed
// through, an elapsed session deadline becomes ErrPollTimeout, everything
// else is a transport failure.
func (r *Realtime) wrapErr(parent, sessCtx context.Context, op string, err error) error {
	if parent.Err() != nil {
		return fmt.Errorf("speechmatics: realtime: %s: %w", op, parent.Err())
	}
	if errors.Is(sessCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("speechmatics: realtime: %s: %w after %s", op, stt.ErrPollTimeout, r.sessionTimeout)
	}
	return fmt.Errorf("speechmatics: realtime: %s: %w: %v", op, stt.ErrTransport, err)
}

func readMessage(ctx context.Context, conn *websocket.Conn) (realtimeMessage, error) {
	var msg realtimeMessage
	typ, data, err := conn.Read(ctx)
	if err != nil {
		return msg, err
	}
	if typ != websocket.MessageText {
		return msg, nil
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		slog.Debug("speechmatics: ignoring undecodable realtime message", "err", err)
		return realtimeMessage{}, nil
	}
	return msg, nil
}
