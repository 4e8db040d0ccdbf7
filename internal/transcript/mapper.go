package transcript

import (
	"fmt"
	"log/slog"
)

// MapSpeakers assigns a role to every raw speaker tag in tokens using
// [DefaultAgentLexicon]. See [Formatter] for a configurable lexicon.
func MapSpeakers(tokens []WordToken, stats map[string]SpeakerStats) SpeakerMap {
	return mapSpeakers(tokens, stats, DefaultAgentLexicon)
}

// mapSpeakers is total over the tags in tokens and deterministic.
//
// With exactly two tags the first tag heard is the agent when it opens the
// call, has the higher words-per-utterance, or hits the lexicon at least
// AgentLexiconMinMatches times; otherwise the roles swap. Any other tag
// count is mapped by encounter order: Agent, Customer, then Speaker_N with N
// the one-based encounter position.
func mapSpeakers(tokens []WordToken, stats map[string]SpeakerStats, lexicon []string) SpeakerMap {
	order := encounterOrder(tokens)
	m := make(SpeakerMap, len(order))

	if len(order) == 2 {
		first, second := order[0], order[1]
		a, b := stats[first], stats[second]

		opens := a.StartsFirst
		longer := a.AvgWordsPerUtterance > b.AvgWordsPerUtterance
		formal := lexiconMatches(a.Vocabulary, lexicon) >= AgentLexiconMinMatches
		if opens || longer || formal {
			m[first], m[second] = RoleAgent, RoleCustomer
		} else {
			m[first], m[second] = RoleCustomer, RoleAgent
		}
		slog.Debug("transcript: speaker map", "map", m,
			"opens", opens, "longer", longer, "formal", formal)
		return m
	}

	for i, tag := range order {
		m[tag] = overflowRole(i)
	}
	if len(m) > 0 {
		slog.Debug("transcript: speaker map", "map", m)
	}
	return m
}

// overflowRole is the role of the i-th (zero-based) tag in encounter order.
func overflowRole(i int) string {
	switch i {
	case 0:
		return RoleAgent
	case 1:
		return RoleCustomer
	default:
		return fmt.Sprintf("Speaker_%d", i+1)
	}
}

// encounterOrder lists the distinct raw speakers of tokens in the order they
// first occur.
func encounterOrder(tokens []WordToken) []string {
	seen := make(map[string]struct{})
	var order []string
	for _, tok := range tokens {
		if _, ok := seen[tok.RawSpeaker]; ok {
			continue
		}
		seen[tok.RawSpeaker] = struct{}{}
		order = append(order, tok.RawSpeaker)
	}
	return order
}
