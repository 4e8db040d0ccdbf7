package config

import "time"

// Default values applied by [ApplyDefaults].
const (
	DefaultListenAddr     = ":8080"
	DefaultMaxUploadMB    = 100
	DefaultLanguage       = "id"
	DefaultOperatingPoint = "enhanced"
	DefaultServiceName    = "callscribe"
)

// ApplyDefaults fills every zero-valued field of cfg with its default.
// Negative values are left alone so [Validate] can report them.
func ApplyDefaults(cfg *Config) {
	s := &cfg.Server
	if s.ListenAddr == "" {
		s.ListenAddr = DefaultListenAddr
	}
	if s.LogLevel == "" {
		s.LogLevel = LogInfo
	}
	if s.LogFormat == "" {
		s.LogFormat = LogFormatText
	}
	if s.MaxUploadMB == 0 {
		s.MaxUploadMB = DefaultMaxUploadMB
	}

	t := &cfg.Transcription
	if t.Language == "" {
		t.Language = DefaultLanguage
	}
	if t.OperatingPoint == "" {
		t.OperatingPoint = DefaultOperatingPoint
	}
	if t.Diarization.SpeakerSensitivity == 0 {
		t.Diarization.SpeakerSensitivity = 0.5
	}
	if t.Diarization.PreferCurrentSpeaker == nil {
		prefer := true
		t.Diarization.PreferCurrentSpeaker = &prefer
	}
	if t.Diarization.MaxSpeakers == 0 {
		t.Diarization.MaxSpeakers = 3
	}

	if cfg.Polling.Interval == 0 {
		cfg.Polling.Interval = 5 * time.Second
	}
	if cfg.Polling.MaxPolls == 0 {
		cfg.Polling.MaxPolls = 60
	}

	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry.MaxAttempts = 3
	}
	if cfg.Retry.FailureBackoff == 0 {
		cfg.Retry.FailureBackoff = 3 * time.Second
	}
	if cfg.Retry.InvalidBackoff == 0 {
		cfg.Retry.InvalidBackoff = 2 * time.Second
	}

	if cfg.Segmentation.PauseThreshold == 0 {
		cfg.Segmentation.PauseThreshold = 2.0
	}

	cb := &cfg.CircuitBreaker
	if cb.MaxFailures == 0 {
		cb.MaxFailures = 5
	}
	if cb.ResetTimeout == 0 {
		cb.ResetTimeout = 30 * time.Second
	}
	if cb.HalfOpenMax == 0 {
		cb.HalfOpenMax = 1
	}

	if cfg.Observability.ServiceName == "" {
		cfg.Observability.ServiceName = DefaultServiceName
	}
}
