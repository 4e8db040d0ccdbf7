package config_test

import (
	"strings"
	"testing"

	"github.com/MrWong99/callscribe/internal/config"
)

func TestValidate_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		yaml string
		want []string
	}{
		{
			name: "missing recognizer",
			yaml: `server: {log_level: info}`,
			want: []string{"providers.recognizer.name is required"},
		},
		{
			name: "missing api key",
			yaml: `
providers:
  recognizer: {name: speechmatics}
`,
			want: []string{"providers.recognizer.api_key is required"},
		},
		{
			name: "bad log level and format",
			yaml: minimalYAML + `
server:
  log_level: bananas
  log_format: xml
`,
			want: []string{"server.log_level", "server.log_format"},
		},
		{
			name: "sensitivities out of range",
			yaml: minimalYAML + `
transcription:
  punctuation_sensitivity: 1.5
  diarization:
    speaker_sensitivity: -0.1
`,
			want: []string{"punctuation_sensitivity", "speaker_sensitivity"},
		},
		{
			name: "bad operating point",
			yaml: minimalYAML + `
transcription:
  operating_point: turbo
`,
			want: []string{"operating_point"},
		},
		{
			name: "negative retry values",
			yaml: minimalYAML + `
retry:
  max_attempts: -1
  failure_backoff: -1s
`,
			want: []string{"retry.max_attempts", "backoffs"},
		},
		{
			name: "duplicate fallback label",
			yaml: minimalYAML + `
  fallbacks:
    - name: speechmatics
      api_key: other
`,
			want: []string{"duplicate", "distinct id"},
		},
		{
			name: "tls without key",
			yaml: minimalYAML + `
server:
  tls: {cert_file: cert.pem}
`,
			want: []string{"server.tls"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := config.LoadFromReader(strings.NewReader(tt.yaml))
			if err == nil {
				t.Fatal("expected validation error")
			}
			for _, w := range tt.want {
				if !strings.Contains(err.Error(), w) {
					t.Errorf("error should mention %q, got: %v", w, err)
				}
			}
		})
	}
}

func TestValidate_ReportsAllErrors(t *testing.T) {
	t.Parallel()

	_, err := config.LoadFromReader(strings.NewReader(`
server:
  log_level: loud
  max_upload_mb: -5
polling:
  max_polls: -1
`))
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, w := range []string{"log_level", "max_upload_mb", "max_polls", "providers.recognizer.name"} {
		if !strings.Contains(err.Error(), w) {
			t.Errorf("joined error should mention %q, got: %v", w, err)
		}
	}
}

func TestValidate_FallbackWithDistinctID(t *testing.T) {
	t.Parallel()

	cfg := mustLoad(t, minimalYAML+`
  fallbacks:
    - name: speechmatics
      id: speechmatics-eu
      api_key: other
      base_url: https://eu.asr.example.com/v2
`)
	if got := cfg.Providers.Fallbacks[0].Label(); got != "speechmatics-eu" {
		t.Errorf("Label() = %q, want speechmatics-eu", got)
	}
}

func TestValidate_UnknownRecognizerIsOnlyAWarning(t *testing.T) {
	t.Parallel()

	cfg := mustLoad(t, `
providers:
  recognizer:
    name: in-house-asr
    api_key: k
`)
	if cfg.Providers.Recognizer.Name != "in-house-asr" {
		t.Errorf("name = %q", cfg.Providers.Recognizer.Name)
	}
}
