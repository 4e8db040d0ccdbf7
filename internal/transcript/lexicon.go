package transcript

import (
	"strings"
	"unicode"
)

// DefaultAgentLexicon holds the formal and sales-opening terms of an
// Indonesian insurance call. A raw speaker whose vocabulary contains at least
// [AgentLexiconMinMatches] of them is likely the agent. Entries may be
// multi-word phrases.
var DefaultAgentLexicon = []string{
	"selamat", "perkenalkan", "saya", "dari", "pt", "perusahaan", "kami",
	"produk", "asuransi", "terima kasih", "membantu", "informasi", "manfaat",
	"premi", "polis",
}

// AgentLexiconMinMatches is the number of distinct lexicon entries that must
// occur in a speaker's vocabulary to count as an agent signal.
const AgentLexiconMinMatches = 3

// greetingTokens force the opening utterance to the agent.
var greetingTokens = map[string]struct{}{
	"selamat": {},
}

// affirmationTokens mark short acknowledgement turns as the customer's.
var affirmationTokens = map[string]struct{}{
	"ya":    {},
	"iya":   {},
	"tidak": {},
}

// tokenize lowercases text and splits it on every rune that is neither a
// letter nor a digit.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// containsAny reports whether any token of text is in set.
func containsAny(text string, set map[string]struct{}) bool {
	for _, tok := range tokenize(text) {
		if _, ok := set[tok]; ok {
			return true
		}
	}
	return false
}

// lexiconMatches counts the lexicon entries found in words. Matching is on
// whole tokens, so a phrase entry matches only a contiguous token run.
func lexiconMatches(words []string, lexicon []string) int {
	normalized := tokenize(strings.Join(words, " "))
	if len(normalized) == 0 {
		return 0
	}
	haystack := " " + strings.Join(normalized, " ") + " "

	n := 0
	for _, entry := range lexicon {
		needle := strings.Join(tokenize(entry), " ")
		if needle == "" {
			continue
		}
		if strings.Contains(haystack, " "+needle+" ") {
			n++
		}
	}
	return n
}
