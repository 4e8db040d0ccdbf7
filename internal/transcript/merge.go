package transcript

import (
	"strings"
	"unicode/utf8"
)

// minMergedRunes drops merged utterances that are most likely noise.
const minMergedRunes = 3

// MergeConsecutive joins adjacent utterances of the same speaker into one.
// The text is concatenated with a space, the end time is taken from the later
// utterance and the confidence is the mean of the running value and the next
// utterance's confidence. Results shorter than three characters after
// trimming are dropped. The input is not modified.
func MergeConsecutive(utterances []Utterance) []Utterance {
	merged := make([]Utterance, 0, len(utterances))
	for _, u := range utterances {
		if n := len(merged); n > 0 && merged[n-1].Speaker == u.Speaker {
			cur := &merged[n-1]
			cur.Text += " " + u.Text
			cur.EndTime = max(cur.EndTime, u.EndTime)
			cur.Confidence = (cur.Confidence + u.Confidence) / 2
			continue
		}
		merged = append(merged, u)
	}

	kept := merged[:0]
	for _, u := range merged {
		if utf8.RuneCountInString(strings.TrimSpace(u.Text)) >= minMergedRunes {
			kept = append(kept, u)
		}
	}
	return kept
}
