package transcript

import "github.com/MrWong99/callscribe/pkg/provider/stt"

const itemTypeWord = "word"

// ExtractWords flattens a recognition result into word tokens in encounter
// order. Only word items whose first alternative has non-empty content are
// kept; punctuation and other item types are dropped.
//
// The raw speaker is taken from the first alternative, then the item, then
// [DefaultRawSpeaker]. A missing confidence becomes [DefaultConfidence].
// An end time before the start time is clamped to the start time.
func ExtractWords(result *stt.RecognitionResult) []WordToken {
	if result == nil {
		return nil
	}
	tokens := make([]WordToken, 0, len(result.Results))
	for _, item := range result.Results {
		if item.Type != itemTypeWord || len(item.Alternatives) == 0 {
			continue
		}
		alt := item.Alternatives[0]
		// Content is kept verbatim; a whitespace-only word still counts and
		// still bridges pauses.
		word := alt.Content
		if word == "" {
			continue
		}

		speaker := alt.Speaker
		if speaker == "" {
			speaker = item.Speaker
		}
		if speaker == "" {
			speaker = DefaultRawSpeaker
		}

		conf := DefaultConfidence
		if alt.Confidence != nil {
			conf = *alt.Confidence
		}

		start, end := max(item.StartTime, 0), max(item.EndTime, 0)
		if end < start {
			end = start
		}

		tokens = append(tokens, WordToken{
			Word:       word,
			RawSpeaker: speaker,
			Confidence: conf,
			StartTime:  start,
			EndTime:    end,
		})
	}
	return tokens
}
