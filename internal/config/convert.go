package config

import (
	"github.com/MrWong99/callscribe/internal/orchestrator"
	"github.com/MrWong99/callscribe/internal/resilience"
	"github.com/MrWong99/callscribe/internal/transcript"
	"github.com/MrWong99/callscribe/pkg/provider/stt"
)

// RecognizeConfig returns the recognition parameter set described by t.
func (t TranscriptionConfig) RecognizeConfig() stt.RecognizeConfig {
	prefer := true
	if t.Diarization.PreferCurrentSpeaker != nil {
		prefer = *t.Diarization.PreferCurrentSpeaker
	}
	return stt.RecognizeConfig{
		Language:               t.Language,
		OperatingPoint:         t.OperatingPoint,
		Domain:                 t.Domain,
		PunctuationSensitivity: t.PunctuationSensitivity,
		Diarization: stt.DiarizationConfig{
			SpeakerSensitivity:   t.Diarization.SpeakerSensitivity,
			PreferCurrentSpeaker: prefer,
			MaxSpeakers:          t.Diarization.MaxSpeakers,
		},
	}
}

// Formatter builds the transcript formatter described by s.
func (s SegmentationConfig) Formatter() *transcript.Formatter {
	return transcript.NewFormatter(
		transcript.WithPauseThreshold(s.PauseThreshold),
		transcript.WithMergeConsecutive(s.MergeConsecutive),
		transcript.WithAgentLexicon(s.AgentLexicon),
	)
}

// OrchestratorOptions collects the hot-reloadable orchestrator settings.
func (c *Config) OrchestratorOptions() orchestrator.Options {
	return orchestrator.Options{
		MaxAttempts:    c.Retry.MaxAttempts,
		FailureBackoff: c.Retry.FailureBackoff,
		InvalidBackoff: c.Retry.InvalidBackoff,
		Recognize:      c.Transcription.RecognizeConfig(),
		Formatter:      c.Segmentation.Formatter(),
	}
}

// FallbackConfig returns the per-recognizer circuit breaker settings.
func (c CircuitBreakerConfig) FallbackConfig() resilience.FallbackConfig {
	return resilience.FallbackConfig{
		CircuitBreaker: resilience.CircuitBreakerConfig{
			MaxFailures:  c.MaxFailures,
			ResetTimeout: c.ResetTimeout,
			HalfOpenMax:  c.HalfOpenMax,
		},
	}
}
