package config

import (
	"reflect"
	"slices"
)

// ConfigDiff describes what changed between two configs. Only settings that
// can be applied without a restart are tracked; recognizer, server and
// circuit breaker changes need one.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// TranscriptionChanged is set when the recognition parameters changed.
	TranscriptionChanged bool

	// RetryChanged is set when attempts or backoffs changed.
	RetryChanged bool

	// SegmentationChanged is set when formatting settings changed.
	SegmentationChanged bool

	// RestartRequired lists changed top-level sections that are only read at
	// start-up.
	RestartRequired []string
}

// OrchestratorChanged reports whether the orchestrator options must be
// rebuilt.
func (d ConfigDiff) OrchestratorChanged() bool {
	return d.TranscriptionChanged || d.RetryChanged || d.SegmentationChanged
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	d.TranscriptionChanged = !reflect.DeepEqual(old.Transcription, new.Transcription)
	d.RetryChanged = old.Retry != new.Retry
	d.SegmentationChanged = old.Segmentation.PauseThreshold != new.Segmentation.PauseThreshold ||
		old.Segmentation.MergeConsecutive != new.Segmentation.MergeConsecutive ||
		!slices.Equal(old.Segmentation.AgentLexicon, new.Segmentation.AgentLexicon)

	oldServer, newServer := old.Server, new.Server
	oldServer.LogLevel, newServer.LogLevel = "", ""
	if !reflect.DeepEqual(oldServer, newServer) {
		d.RestartRequired = append(d.RestartRequired, "server")
	}
	if !reflect.DeepEqual(old.Providers, new.Providers) {
		d.RestartRequired = append(d.RestartRequired, "providers")
	}
	if old.Polling != new.Polling {
		d.RestartRequired = append(d.RestartRequired, "polling")
	}
	if old.CircuitBreaker != new.CircuitBreaker {
		d.RestartRequired = append(d.RestartRequired, "circuit_breaker")
	}
	if !reflect.DeepEqual(old.Observability, new.Observability) {
		d.RestartRequired = append(d.RestartRequired, "observability")
	}
	return d
}
