package transcript

import "strings"

// AnalyzeSpeakers computes per-tag statistics in a single pass over tokens.
// The returned map has an entry for every raw speaker in tokens.
func AnalyzeSpeakers(tokens []WordToken) map[string]SpeakerStats {
	stats := make(map[string]SpeakerStats)
	for i, tok := range tokens {
		s, ok := stats[tok.RawSpeaker]
		if !ok {
			s.FirstSeen = i
			s.StartsFirst = i == 0
		}
		s.WordCount++
		s.Vocabulary = append(s.Vocabulary, strings.ToLower(tok.Word))
		stats[tok.RawSpeaker] = s
	}

	for tag, s := range stats {
		// No utterance boundaries exist yet; see SpeakerStats.
		utteranceCount := 0
		s.AvgWordsPerUtterance = float64(s.WordCount) / float64(max(utteranceCount, 1))
		stats[tag] = s
	}
	return stats
}
