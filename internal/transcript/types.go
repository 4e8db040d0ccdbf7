package transcript

// Semantic roles assigned to raw speaker tags.
const (
	RoleAgent    = "Agent"
	RoleCustomer = "Customer"
)

// EmptyTranscriptText is the full transcript text of a transcript without
// utterances.
const EmptyTranscriptText = "Tidak ada transkrip tersedia"

const (
	// DefaultRawSpeaker is the tag given to word items that carry no speaker
	// on either the alternative or the item.
	DefaultRawSpeaker = "S1"

	// DefaultConfidence is used for word alternatives without a confidence.
	DefaultConfidence = 0.9

	// DefaultPauseThreshold is the silence gap, in seconds, above which two
	// consecutive words of the same role are split into separate utterances.
	DefaultPauseThreshold = 2.0
)

// Speakers returns the fixed speaker list carried by every [Transcript].
// A fresh slice is returned on each call.
func Speakers() []string {
	return []string{RoleAgent, RoleCustomer}
}

// WordToken is a single recognised word with its raw diarization tag.
type WordToken struct {
	Word       string
	RawSpeaker string
	Confidence float64
	StartTime  float64
	EndTime    float64
}

// SpeakerStats summarises what one raw speaker tag said in a recognition
// result. It is recomputed for every attempt.
type SpeakerStats struct {
	// WordCount is the number of tokens carrying this tag.
	WordCount int

	// Vocabulary holds every word of the tag, lowercased, in spoken order.
	Vocabulary []string

	// StartsFirst is true only for the tag of the very first token.
	StartsFirst bool

	// AvgWordsPerUtterance is a coarse word-volume signal. Utterance
	// boundaries are not known before segmentation, so the divisor is one
	// and the value equals WordCount.
	AvgWordsPerUtterance float64

	// FirstSeen is the token index at which the tag first occurs.
	FirstSeen int
}

// SpeakerMap maps raw speaker tags to roles: [RoleAgent], [RoleCustomer] or
// an overflow label "Speaker_N".
type SpeakerMap map[string]string

// Utterance is a contiguous run of words attributed to one role.
type Utterance struct {
	Speaker    string  `json:"speaker"`
	Text       string  `json:"text"`
	StartTime  float64 `json:"start_time"`
	EndTime    float64 `json:"end_time"`
	Confidence float64 `json:"confidence"`
}

// Transcript is the final two-party conversation handed to analysis.
// Speakers is always ["Agent", "Customer"], whichever roles occurred.
type Transcript struct {
	Speakers   []string    `json:"speakers"`
	Utterances []Utterance `json:"utterances"`
	FullText   string      `json:"full_transcript"`
}
