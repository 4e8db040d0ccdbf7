package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// ValidRecognizerNames lists the recognizer names that ship with callscribe.
// Used by [Validate] to warn about unrecognised names.
var ValidRecognizerNames = []string{"deepgram", "speechmatics", "speechmatics-rt"}

// envRef matches ${VAR} references. Bare $VAR is left alone so secrets
// containing a dollar sign survive expansion.
var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads the YAML configuration file at path and returns a validated
// [Config] with defaults applied.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader expands ${VAR} references in r from the environment,
// decodes the YAML, applies defaults and validates the result.
func LoadFromReader(r io.Reader) (*Config, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}
	expanded := ExpandEnv(string(raw), os.LookupEnv)

	cfg := &Config{}
	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ExpandEnv replaces every ${VAR} in s with the value returned by lookup.
// Unset variables expand to the empty string and are logged at warn level.
func ExpandEnv(s string, lookup func(string) (string, bool)) string {
	return envRef.ReplaceAllStringFunc(s, func(ref string) string {
		name := envRef.FindStringSubmatch(ref)[1]
		v, ok := lookup(name)
		if !ok {
			slog.Warn("config: environment variable not set", "name", name)
		}
		return v
	})
}

// Validate checks that cfg contains a coherent set of values. It returns a
// joined error listing all validation failures found. Validate expects
// defaults to be applied already.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if !cfg.Server.LogFormat.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_format %q is invalid; valid values: text, json", cfg.Server.LogFormat))
	}
	if cfg.Server.MaxUploadMB < 0 {
		errs = append(errs, fmt.Errorf("server.max_upload_mb %d must not be negative", cfg.Server.MaxUploadMB))
	}
	if tls := cfg.Server.TLS; tls != nil && (tls.CertFile == "" || tls.KeyFile == "") {
		errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
	}

	// Providers
	labelsSeen := make(map[string]string)
	checkEntry := func(prefix string, e ProviderEntry) {
		if e.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
			return
		}
		validateRecognizerName(prefix, e.Name)
		if e.APIKey == "" {
			errs = append(errs, fmt.Errorf("%s.api_key is required", prefix))
		}
		if prev, ok := labelsSeen[e.Label()]; ok {
			errs = append(errs, fmt.Errorf("%s %q is a duplicate of %s; set a distinct id", prefix, e.Label(), prev))
		}
		labelsSeen[e.Label()] = prefix
	}
	checkEntry("providers.recognizer", cfg.Providers.Recognizer)
	for i, fb := range cfg.Providers.Fallbacks {
		checkEntry(fmt.Sprintf("providers.fallbacks[%d]", i), fb)
	}

	// Transcription
	t := cfg.Transcription
	if t.OperatingPoint != "standard" && t.OperatingPoint != "enhanced" {
		errs = append(errs, fmt.Errorf("transcription.operating_point %q is invalid; valid values: standard, enhanced", t.OperatingPoint))
	}
	if t.PunctuationSensitivity < 0 || t.PunctuationSensitivity > 1 {
		errs = append(errs, fmt.Errorf("transcription.punctuation_sensitivity %.2f is out of range [0, 1]", t.PunctuationSensitivity))
	}
	if s := t.Diarization.SpeakerSensitivity; s < 0 || s > 1 {
		errs = append(errs, fmt.Errorf("transcription.diarization.speaker_sensitivity %.2f is out of range [0, 1]", s))
	}
	if t.Diarization.MaxSpeakers < 0 {
		errs = append(errs, fmt.Errorf("transcription.diarization.max_speakers %d must not be negative", t.Diarization.MaxSpeakers))
	} else if t.Diarization.MaxSpeakers == 1 {
		slog.Warn("transcription.diarization.max_speakers is 1; every call will be a single-speaker transcript")
	}

	// Polling
	if cfg.Polling.Interval < 0 {
		errs = append(errs, fmt.Errorf("polling.interval %s must not be negative", cfg.Polling.Interval))
	}
	if cfg.Polling.MaxPolls < 0 {
		errs = append(errs, fmt.Errorf("polling.max_polls %d must not be negative", cfg.Polling.MaxPolls))
	}

	// Retry
	if cfg.Retry.MaxAttempts < 0 {
		errs = append(errs, fmt.Errorf("retry.max_attempts %d must not be negative", cfg.Retry.MaxAttempts))
	}
	if cfg.Retry.FailureBackoff < 0 || cfg.Retry.InvalidBackoff < 0 {
		errs = append(errs, errors.New("retry backoffs must not be negative"))
	} else if cfg.Retry.FailureBackoff < cfg.Retry.InvalidBackoff {
		slog.Warn("retry.failure_backoff is shorter than retry.invalid_backoff",
			"failure_backoff", cfg.Retry.FailureBackoff,
			"invalid_backoff", cfg.Retry.InvalidBackoff,
		)
	}

	// Segmentation
	if cfg.Segmentation.PauseThreshold < 0 {
		errs = append(errs, fmt.Errorf("segmentation.pause_threshold %.2f must not be negative", cfg.Segmentation.PauseThreshold))
	}

	// Circuit breaker
	if cfg.CircuitBreaker.MaxFailures < 0 || cfg.CircuitBreaker.HalfOpenMax < 0 || cfg.CircuitBreaker.ResetTimeout < 0 {
		errs = append(errs, errors.New("circuit_breaker values must not be negative"))
	}

	return errors.Join(errs...)
}

// validateRecognizerName logs a warning if name is not a built-in recognizer.
func validateRecognizerName(prefix, name string) {
	if slices.Contains(ValidRecognizerNames, name) {
		return
	}
	slog.Warn("unknown recognizer name, may be a typo or third-party provider",
		"field", prefix+".name",
		"name", name,
		"known", ValidRecognizerNames,
	)
}
