// Package config provides the configuration schema, loader, recognizer
// registry and hot-reload watcher for callscribe.
package config

import (
	"log/slog"
	"time"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Level converts l to an [slog.Level]. Unknown values map to info.
func (l LogLevel) Level() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LogFormat selects the slog handler.
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// IsValid reports whether f is a recognised log format.
func (f LogFormat) IsValid() bool {
	return f == LogFormatText || f == LogFormatJSON
}

// Config is the root configuration structure. It is typically loaded from a
// YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server         ServerConfig         `yaml:"server"`
	Providers      ProvidersConfig      `yaml:"providers"`
	Transcription  TranscriptionConfig  `yaml:"transcription"`
	Polling        PollingConfig        `yaml:"polling"`
	Retry          RetryConfig          `yaml:"retry"`
	Segmentation   SegmentationConfig   `yaml:"segmentation"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
	Observability  ObservabilityConfig  `yaml:"observability"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the HTTP server listens on. Default: ":8080".
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity. Default: info.
	LogLevel LogLevel `yaml:"log_level"`

	// LogFormat selects text or JSON log lines. Default: text.
	LogFormat LogFormat `yaml:"log_format"`

	// MaxUploadMB caps the size of an uploaded recording. Default: 100.
	MaxUploadMB int `yaml:"max_upload_mb"`

	// TLS configures TLS for the server. When nil, the server runs plain HTTP.
	TLS *TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	// CertFile is the path to the PEM-encoded TLS certificate.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the PEM-encoded TLS private key.
	KeyFile string `yaml:"key_file"`
}

// ProvidersConfig selects the recognizers. The primary is always tried first;
// fallbacks are tried in order behind their own circuit breakers.
type ProvidersConfig struct {
	Recognizer ProviderEntry   `yaml:"recognizer"`
	Fallbacks  []ProviderEntry `yaml:"fallbacks"`
}

// ProviderEntry configures one recognizer. Name looks up the constructor in
// the [Registry].
type ProviderEntry struct {
	// Name selects the registered implementation (e.g., "speechmatics").
	Name string `yaml:"name"`

	// ID distinguishes two entries with the same Name in logs, metrics and
	// health reports. Default: Name.
	ID string `yaml:"id"`

	// APIKey is the authentication key for the provider's API.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	BaseURL string `yaml:"base_url"`

	// Options holds provider-specific values not covered above.
	Options map[string]any `yaml:"options"`
}

// Label returns ID, or Name when no ID is set.
func (e ProviderEntry) Label() string {
	if e.ID != "" {
		return e.ID
	}
	return e.Name
}

// TranscriptionConfig is the recognition parameter set sent on every attempt.
type TranscriptionConfig struct {
	// Language is the provider language code. Default: "id".
	Language string `yaml:"language"`

	// OperatingPoint is "standard" or "enhanced". Default: "enhanced".
	OperatingPoint string `yaml:"operating_point"`

	// Domain is an optional acoustic domain hint (e.g., "telephony").
	Domain string `yaml:"domain"`

	// PunctuationSensitivity is in [0, 1]. Zero leaves the provider default.
	PunctuationSensitivity float64 `yaml:"punctuation_sensitivity"`

	Diarization DiarizationConfig `yaml:"diarization"`
}

// DiarizationConfig tunes speaker separation.
type DiarizationConfig struct {
	// SpeakerSensitivity is in [0, 1]. Default: 0.5.
	SpeakerSensitivity float64 `yaml:"speaker_sensitivity"`

	// PreferCurrentSpeaker reduces switching on short pauses. Default: true.
	PreferCurrentSpeaker *bool `yaml:"prefer_current_speaker"`

	// MaxSpeakers caps distinct speaker tags. Default: 3.
	MaxSpeakers int `yaml:"max_speakers"`
}

// PollingConfig bounds the batch job polling loop.
type PollingConfig struct {
	// Interval is the wait between status checks. Default: 5s.
	Interval time.Duration `yaml:"interval"`

	// MaxPolls is the number of status checks before giving up. Default: 60.
	MaxPolls int `yaml:"max_polls"`
}

// RetryConfig configures the orchestrator attempt loop.
type RetryConfig struct {
	// MaxAttempts is the attempt ceiling. Default: 3.
	MaxAttempts int `yaml:"max_attempts"`

	// FailureBackoff is the wait after a failed recognizer call. Default: 3s.
	FailureBackoff time.Duration `yaml:"failure_backoff"`

	// InvalidBackoff is the wait after an implausible transcript. Default: 2s.
	InvalidBackoff time.Duration `yaml:"invalid_backoff"`
}

// SegmentationConfig tunes transcript formatting.
type SegmentationConfig struct {
	// PauseThreshold is the silence gap in seconds that closes an utterance.
	// Default: 2.0.
	PauseThreshold float64 `yaml:"pause_threshold"`

	// MergeConsecutive joins adjacent same-speaker utterances.
	MergeConsecutive bool `yaml:"merge_consecutive"`

	// AgentLexicon replaces the built-in agent vocabulary when non-empty.
	AgentLexicon []string `yaml:"agent_lexicon"`
}

// CircuitBreakerConfig configures the breaker placed in front of every
// recognizer.
type CircuitBreakerConfig struct {
	// MaxFailures is the number of consecutive failures that open the
	// breaker. Default: 5.
	MaxFailures int `yaml:"max_failures"`

	// ResetTimeout is how long an open breaker rejects calls. Default: 30s.
	ResetTimeout time.Duration `yaml:"reset_timeout"`

	// HalfOpenMax is the number of successful probes that close it again.
	// Default: 1.
	HalfOpenMax int `yaml:"half_open_max"`
}

// ObservabilityConfig configures telemetry.
type ObservabilityConfig struct {
	// ServiceName is reported in telemetry. Default: "callscribe".
	ServiceName string `yaml:"service_name"`

	// Metrics enables the /metrics endpoint. Default: true.
	Metrics *bool `yaml:"metrics"`
}

// MetricsEnabled reports whether the /metrics endpoint should be served.
func (o ObservabilityConfig) MetricsEnabled() bool {
	return o.Metrics == nil || *o.Metrics
}
