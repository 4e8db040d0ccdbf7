// Package transcript turns diarized speech-recognition output into a stable
// two-party call transcript.
//
// Recognisers tag every word with a raw speaker label ("S1", "S2", ...) that
// says nothing about who is who and is frequently unstable for short turns.
// A [Formatter] runs the following stages, each a pure function that can be
// used on its own:
//
//  1. [ExtractWords]: word items of the raw result become [WordToken]s.
//  2. [AnalyzeSpeakers]: per raw tag word counts, vocabulary and who opened
//     the call.
//  3. [MapSpeakers]: raw tags become "Agent", "Customer" or "Speaker_N".
//  4. [SegmentUtterances]: words are grouped into utterances, split on role
//     changes and silence gaps.
//  5. [CorrectSpeakers]: lexical overrides for greetings and short
//     affirmations.
//  6. [MergeConsecutive] (optional): adjacent same-speaker utterances are
//     joined.
//  7. [Assemble]: the [Transcript] with its "[mm:ss] Role: text" full text.
//
// [CheckPlausibility] decides whether the speaker structure of a transcript is
// believable enough to accept, and [ParseText] reads a plain-text transcript
// back into the same shape.
package transcript

import (
	"context"
	"log/slog"

	"github.com/MrWong99/callscribe/pkg/provider/stt"
)

// Option is a functional option for configuring a [Formatter].
type Option func(*Formatter)

// WithPauseThreshold sets the silence gap, in seconds, above which an
// utterance is closed even when the speaker does not change. Non-positive
// values are ignored. Default: 2.0.
func WithPauseThreshold(seconds float64) Option {
	return func(f *Formatter) {
		if seconds > 0 {
			f.pauseThreshold = seconds
		}
	}
}

// WithMergeConsecutive enables [MergeConsecutive] after speaker correction.
// Default: false.
func WithMergeConsecutive(enabled bool) Option {
	return func(f *Formatter) {
		f.mergeConsecutive = enabled
	}
}

// WithAgentLexicon replaces the vocabulary used to recognise the agent during
// speaker mapping. An empty lexicon keeps the default.
func WithAgentLexicon(lexicon []string) Option {
	return func(f *Formatter) {
		if len(lexicon) > 0 {
			f.lexicon = append([]string(nil), lexicon...)
		}
	}
}

// Formatter converts raw recognition results into transcripts. It is
// read-only after construction and safe for concurrent use.
type Formatter struct {
	pauseThreshold   float64
	mergeConsecutive bool
	lexicon          []string
}

// NewFormatter returns a [Formatter] configured with opts.
func NewFormatter(opts ...Option) *Formatter {
	f := &Formatter{
		pauseThreshold: DefaultPauseThreshold,
		lexicon:        DefaultAgentLexicon,
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

var defaultFormatter = NewFormatter()

// Format runs the full pipeline with default settings.
func Format(result *stt.RecognitionResult) Transcript {
	return defaultFormatter.Format(result)
}

// Format runs the full pipeline on result. A nil or wordless result yields a
// transcript without utterances.
func (f *Formatter) Format(result *stt.RecognitionResult) Transcript {
	tokens := ExtractWords(result)
	if len(tokens) == 0 {
		return Assemble(nil)
	}

	stats := AnalyzeSpeakers(tokens)
	speakers := mapSpeakers(tokens, stats, f.lexicon)
	utterances := CorrectSpeakers(segment(tokens, speakers, f.pauseThreshold))
	if f.mergeConsecutive {
		utterances = MergeConsecutive(utterances)
	}

	t := Assemble(utterances)
	if slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		slog.Debug("transcript: formatted",
			"words", len(tokens),
			"raw_speakers", len(stats),
			"utterances", len(t.Utterances),
			"distribution", CheckPlausibility(t).Roles,
		)
	}
	return t
}
