package transcript_test

import (
	"strings"

	"github.com/MrWong99/callscribe/internal/transcript"
	"github.com/MrWong99/callscribe/pkg/provider/stt"
)

func conf(v float64) *float64 { return &v }

// wordItem builds a json-v2 word item with the speaker on the alternative.
func wordItem(content, speaker string, start, end float64) stt.ResultItem {
	return stt.ResultItem{
		Type:      "word",
		StartTime: start,
		EndTime:   end,
		Alternatives: []stt.Alternative{
			{Content: content, Confidence: conf(0.95), Speaker: speaker},
		},
	}
}

func punctItem(content, speaker string, at float64) stt.ResultItem {
	return stt.ResultItem{
		Type:         "punctuation",
		StartTime:    at,
		EndTime:      at,
		Alternatives: []stt.Alternative{{Content: content, Confidence: conf(1), Speaker: speaker}},
	}
}

// sentence lays the words of text out back to back, 0.4s per word.
func sentence(text, speaker string, start float64) []stt.ResultItem {
	var items []stt.ResultItem
	t := start
	for _, w := range strings.Fields(text) {
		items = append(items, wordItem(w, speaker, t, t+0.3))
		t += 0.4
	}
	return items
}

// tokens builds word tokens with 0.5s per word and no gaps.
func tokens(speaker string, start float64, words ...string) []transcript.WordToken {
	out := make([]transcript.WordToken, len(words))
	t := start
	for i, w := range words {
		out[i] = transcript.WordToken{Word: w, RawSpeaker: speaker, Confidence: 0.9, StartTime: t, EndTime: t + 0.4}
		t += 0.5
	}
	return out
}

func join(parts ...[]transcript.WordToken) []transcript.WordToken {
	var out []transcript.WordToken
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func utt(speaker, text string, start float64) transcript.Utterance {
	return transcript.Utterance{Speaker: speaker, Text: text, StartTime: start, EndTime: start + 1, Confidence: 0.9}
}
