package speechmatics

import "github.com/MrWong99/callscribe/pkg/provider/stt"

const (
	defaultLanguage       = "id"
	defaultOperatingPoint = "enhanced"
)

// transcriptionConfig is the "transcription_config" object understood by both
// the batch and the realtime API.
type transcriptionConfig struct {
	Language                 string                    `json:"language"`
	Diarization              string                    `json:"diarization,omitempty"`
	OperatingPoint           string                    `json:"operating_point,omitempty"`
	Domain                   string                    `json:"domain,omitempty"`
	SpeakerDiarizationConfig *speakerDiarizationConfig `json:"speaker_diarization_config,omitempty"`
	PunctuationOverrides     *punctuationOverrides     `json:"punctuation_overrides,omitempty"`
}

type speakerDiarizationConfig struct {
	SpeakerSensitivity   float64 `json:"speaker_sensitivity,omitempty"`
	PreferCurrentSpeaker bool    `json:"prefer_current_speaker"`
	MaxSpeakers          int     `json:"max_speakers,omitempty"`
}

type punctuationOverrides struct {
	Sensitivity float64 `json:"sensitivity"`
}

// buildTranscriptionConfig maps the provider-neutral cfg onto the Speechmatics
// schema. Speaker diarization is always requested.
func buildTranscriptionConfig(cfg stt.RecognizeConfig) transcriptionConfig {
	tc := transcriptionConfig{
		Language:       cfg.Language,
		Diarization:    "speaker",
		OperatingPoint: cfg.OperatingPoint,
		Domain:         cfg.Domain,
		SpeakerDiarizationConfig: &speakerDiarizationConfig{
			SpeakerSensitivity:   cfg.Diarization.SpeakerSensitivity,
			PreferCurrentSpeaker: cfg.Diarization.PreferCurrentSpeaker,
			MaxSpeakers:          cfg.Diarization.MaxSpeakers,
		},
	}
	if tc.Language == "" {
		tc.Language = defaultLanguage
	}
	if tc.OperatingPoint == "" {
		tc.OperatingPoint = defaultOperatingPoint
	}
	if cfg.PunctuationSensitivity > 0 {
		tc.PunctuationOverrides = &punctuationOverrides{Sensitivity: cfg.PunctuationSensitivity}
	}
	return tc
}
