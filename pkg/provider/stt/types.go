package stt

// RecognizeConfig is the tunable recognition parameter set sent to the
// provider on every attempt.
type RecognizeConfig struct {
	// Language is the provider language code (e.g., "id", "en").
	Language string

	// OperatingPoint selects the provider accuracy tier ("standard" or
	// "enhanced").
	OperatingPoint string

	// Domain is an optional acoustic domain hint (e.g., "telephony").
	Domain string

	// PunctuationSensitivity is in [0, 1]. Zero leaves the provider default.
	PunctuationSensitivity float64

	// Diarization tunes speaker separation.
	Diarization DiarizationConfig
}

// DiarizationConfig tunes how eagerly the provider splits speakers.
type DiarizationConfig struct {
	// SpeakerSensitivity is in [0, 1]; higher values detect more speakers.
	SpeakerSensitivity float64

	// PreferCurrentSpeaker reduces speaker switching on short pauses.
	PreferCurrentSpeaker bool

	// MaxSpeakers caps the number of distinct speaker tags. Zero means no cap.
	MaxSpeakers int
}

// RecognitionResult is the raw provider output: an ordered list of result
// items in encounter order.
type RecognitionResult struct {
	Results []ResultItem `json:"results"`
}

// ResultItem is one recognized token. Word items carry at least one
// alternative; punctuation and other item types are ignored downstream.
// Every field is optional.
type ResultItem struct {
	// Type is the item kind ("word", "punctuation", ...).
	Type string `json:"type,omitempty"`

	// Speaker is the item-level speaker tag, used when the primary
	// alternative has none.
	Speaker string `json:"speaker,omitempty"`

	// StartTime and EndTime are offsets in seconds from the start of the audio.
	StartTime float64 `json:"start_time,omitempty"`
	EndTime   float64 `json:"end_time,omitempty"`

	// Alternatives are the candidate decodings, best first.
	Alternatives []Alternative `json:"alternatives,omitempty"`
}

// Alternative is one candidate decoding of a [ResultItem].
type Alternative struct {
	Content string `json:"content,omitempty"`

	// Confidence is nil when the provider did not report one.
	Confidence *float64 `json:"confidence,omitempty"`

	Speaker string `json:"speaker,omitempty"`
}
