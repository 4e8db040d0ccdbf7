package transcript

import (
	"fmt"
	"math"
	"strings"
)

const entrySeparator = "\n\n"

// Assemble renders utterances into a [Transcript]. Each entry of FullText is
// "[mm:ss] Role: text"; entries are separated by a blank line. Without
// utterances FullText is [EmptyTranscriptText].
func Assemble(utterances []Utterance) Transcript {
	t := Transcript{
		Speakers:   Speakers(),
		Utterances: utterances,
	}
	if t.Utterances == nil {
		t.Utterances = []Utterance{}
	}
	if len(utterances) == 0 {
		t.FullText = EmptyTranscriptText
		return t
	}

	entries := make([]string, len(utterances))
	for i, u := range utterances {
		entries[i] = FormatEntry(u)
	}
	t.FullText = strings.Join(entries, entrySeparator)
	return t
}

// FormatEntry renders one utterance as a full-transcript line.
func FormatEntry(u Utterance) string {
	return fmt.Sprintf("[%s] %s: %s", FormatTimestamp(u.StartTime), u.Speaker, u.Text)
}

// FormatTimestamp renders seconds as zero-padded mm:ss. Fractions are
// floored; minutes are not wrapped at one hour.
func FormatTimestamp(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	total := int(math.Floor(seconds))
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}
