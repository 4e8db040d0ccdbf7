package main

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/MrWong99/callscribe/internal/config"
	"github.com/MrWong99/callscribe/pkg/provider/stt"
	"github.com/MrWong99/callscribe/pkg/provider/stt/deepgram"
	"github.com/MrWong99/callscribe/pkg/provider/stt/speechmatics"
)

// registerBuiltinRecognizers wires the recognizers that ship with callscribe
// into reg. Batch recognizers poll according to polling.
func registerBuiltinRecognizers(reg *config.Registry, polling config.PollingConfig) {
	reg.RegisterRecognizer("speechmatics", func(entry config.ProviderEntry) (stt.Recognizer, error) {
		opts := []speechmatics.Option{
			speechmatics.WithPollInterval(polling.Interval),
			speechmatics.WithMaxPolls(polling.MaxPolls),
		}
		if entry.BaseURL != "" {
			opts = append(opts, speechmatics.WithBaseURL(entry.BaseURL))
		}
		if d := optDuration(entry.Options, "poll_interval"); d > 0 {
			opts = append(opts, speechmatics.WithPollInterval(d))
		}
		if n := optInt(entry.Options, "max_polls"); n > 0 {
			opts = append(opts, speechmatics.WithMaxPolls(n))
		}
		return speechmatics.New(entry.APIKey, opts...)
	})

	reg.RegisterRecognizer("speechmatics-rt", func(entry config.ProviderEntry) (stt.Recognizer, error) {
		var opts []speechmatics.RealtimeOption
		if entry.BaseURL != "" {
			opts = append(opts, speechmatics.WithRealtimeURL(entry.BaseURL))
		}
		if d := optDuration(entry.Options, "session_timeout"); d > 0 {
			opts = append(opts, speechmatics.WithSessionTimeout(d))
		}
		if n := optInt(entry.Options, "chunk_size"); n > 0 {
			opts = append(opts, speechmatics.WithChunkSize(n))
		}
		return speechmatics.NewRealtime(entry.APIKey, opts...)
	})

	reg.RegisterRecognizer("deepgram", func(entry config.ProviderEntry) (stt.Recognizer, error) {
		opts := []deepgram.Option{
			deepgram.WithBaseURL(entry.BaseURL),
			deepgram.WithModel(optString(entry.Options, "model")),
			deepgram.WithLanguage(optString(entry.Options, "language")),
		}
		if d := optDuration(entry.Options, "timeout"); d > 0 {
			opts = append(opts, deepgram.WithHTTPClient(&http.Client{Timeout: d}))
		}
		return deepgram.New(entry.APIKey, opts...)
	})

	for _, name := range reg.Names() {
		slog.Debug("registered recognizer", "name", name)
	}
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// optString extracts a string value from a provider Options map.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	s, _ := opts[key].(string)
	return s
}

// optInt extracts an integer. YAML decodes whole numbers as int; JSON-shaped
// sources produce float64.
func optInt(opts map[string]any, key string) int {
	switch v := opts[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

// optDuration parses a Go duration string such as "90s". Invalid values are
// logged and ignored.
func optDuration(opts map[string]any, key string) time.Duration {
	s := optString(opts, key)
	if s == "" {
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		slog.Warn("ignoring invalid duration option", "key", key, "value", s, "err", err)
		return 0
	}
	return d
}
