package transcript

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/MrWong99/callscribe/internal/transcript/labels"
)

const (
	// parsedTurnSeconds is the duration given to each parsed line, and the
	// start offset of a line without a timestamp.
	parsedTurnSeconds = 30

	parsedConfidence = 1.0
)

var timestampLine = regexp.MustCompile(`^\[([^\]]+)\]\s*([^:]+):\s*(.+)$`)

var defaultLabels = labels.New()

// ParseText turns a plain-text transcript into a [Transcript]. Each
// non-blank line is one utterance in one of these forms:
//
//	[mm:ss] Speaker: text
//	Speaker: text
//	text
//
// Speaker labels are normalised with the [labels] package. A bare line is
// the agent's or the customer's when it mentions that role, otherwise roles
// alternate starting with the agent. A line without a timestamp starts at
// 30 seconds per preceding line. Every utterance lasts 30 seconds and has
// confidence 1.
//
// The full text of an assembled transcript parses back to the same speakers
// and texts in the same order.
func ParseText(text string) Transcript {
	return parseText(text, defaultLabels)
}

func parseText(text string, norm *labels.Normalizer) Transcript {
	if strings.TrimSpace(text) == EmptyTranscriptText {
		return Assemble(nil)
	}
	var utterances []Utterance
	index := 0
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		speaker, content, start := parseLine(line, index, norm)
		if content == "" {
			continue
		}
		utterances = append(utterances, Utterance{
			Speaker:    speaker,
			Text:       content,
			StartTime:  start,
			EndTime:    start + parsedTurnSeconds,
			Confidence: parsedConfidence,
		})
		index++
	}
	return Assemble(utterances)
}

func parseLine(line string, index int, norm *labels.Normalizer) (speaker, content string, start float64) {
	start = float64(index * parsedTurnSeconds)

	if m := timestampLine.FindStringSubmatch(line); m != nil {
		if ts, ok := parseTimestamp(m[1]); ok {
			start = ts
		}
		return labelOrAlternate(m[2], index, norm), strings.TrimSpace(m[3]), start
	}

	if label, rest, ok := strings.Cut(line, ":"); ok {
		return labelOrAlternate(label, index, norm), strings.TrimSpace(rest), start
	}

	if role, ok := norm.Mentions(line); ok {
		return role, line, start
	}
	return alternate(index), line, start
}

func labelOrAlternate(label string, index int, norm *labels.Normalizer) string {
	label = strings.TrimSpace(label)
	if label == "" {
		return alternate(index)
	}
	speaker, _ := norm.Normalize(label)
	return speaker
}

func alternate(index int) string {
	if index%2 == 0 {
		return RoleAgent
	}
	return RoleCustomer
}

// parseTimestamp reads "m:ss" or "mm:ss".
func parseTimestamp(s string) (float64, bool) {
	minStr, secStr, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, false
	}
	minutes, err := strconv.Atoi(minStr)
	if err != nil || minutes < 0 {
		return 0, false
	}
	seconds, err := strconv.Atoi(secStr)
	if err != nil || seconds < 0 {
		return 0, false
	}
	return float64(minutes*60 + seconds), true
}
