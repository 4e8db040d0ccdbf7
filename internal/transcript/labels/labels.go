// Package labels normalises free-form speaker labels found in hand-written
// or exported transcripts ("Agen", "Pelanggan", "Custmer") to the roles
// "Agent" and "Customer".
//
// Normalisation proceeds in two stages:
//
//  1. Alias containment: the lowercased label is checked for each known alias
//     ("agent", "agen", "customer", "pelanggan", "client", ...). Agent aliases
//     are checked first.
//
//  2. Fuzzy matching: each word of the label is compared with each alias.
//     When their Double Metaphone codes overlap, a Jaro-Winkler score above
//     the phonetic threshold (default 0.80) is enough. Without a phonetic
//     overlap the score must reach the fuzzy threshold (default 0.90).
//
// Labels that match nothing are returned unchanged.
package labels

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.80
	defaultFuzzyThreshold    = 0.90

	// minFuzzyRunes keeps very short words ("a", "cs") out of fuzzy matching.
	minFuzzyRunes = 3
)

// Canonical roles.
const (
	Agent    = "Agent"
	Customer = "Customer"
)

// Option is a functional option for configuring a [Normalizer].
type Option func(*Normalizer)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score for a
// phonetically overlapping alias. Default: 0.80.
func WithPhoneticThreshold(threshold float64) Option {
	return func(n *Normalizer) {
		n.phoneticThreshold = threshold
	}
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score for an alias without
// phonetic overlap. Default: 0.90.
func WithFuzzyThreshold(threshold float64) Option {
	return func(n *Normalizer) {
		n.fuzzyThreshold = threshold
	}
}

// WithAliases adds aliases for role. Added aliases are checked after the
// defaults.
func WithAliases(role string, aliases ...string) Option {
	return func(n *Normalizer) {
		for _, a := range aliases {
			a = strings.ToLower(strings.TrimSpace(a))
			if a != "" {
				n.aliases = append(n.aliases, alias{role: role, term: a})
			}
		}
	}
}

type alias struct {
	role string
	term string
}

func defaultAliases() []alias {
	return []alias{
		{Agent, "agent"},
		{Agent, "agen"},
		{Customer, "customer"},
		{Customer, "pelanggan"},
		{Customer, "client"},
		{Customer, "klien"},
		{Customer, "nasabah"},
	}
}

// Normalizer maps speaker labels to roles. It is read-only after
// construction and safe for concurrent use.
type Normalizer struct {
	aliases           []alias
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// New returns a [Normalizer] with the default aliases and thresholds.
func New(opts ...Option) *Normalizer {
	n := &Normalizer{
		aliases:           defaultAliases(),
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(n)
	}
	return n
}

// Normalize returns the role for label and true, or label unchanged and
// false when no alias matches.
func (n *Normalizer) Normalize(label string) (role string, matched bool) {
	lower := strings.ToLower(strings.TrimSpace(label))
	if lower == "" {
		return label, false
	}

	if role, ok := n.Mentions(lower); ok {
		return role, true
	}

	var (
		bestRole  string
		bestScore float64
	)
	for _, word := range strings.Fields(lower) {
		if len([]rune(word)) < minFuzzyRunes {
			continue
		}
		wordCodes := codes(word)
		for _, a := range n.aliases {
			score := matchr.JaroWinkler(word, a.term, false)
			threshold := n.fuzzyThreshold
			if overlap(wordCodes, codes(a.term)) {
				threshold = n.phoneticThreshold
			}
			if score >= threshold && score > bestScore {
				bestRole, bestScore = a.role, score
			}
		}
	}
	if bestRole != "" {
		return bestRole, true
	}
	return label, false
}

// Mentions returns the role of the first alias contained in text. Unlike
// [Normalizer.Normalize] it does no fuzzy matching, so it suits free text.
func (n *Normalizer) Mentions(text string) (role string, ok bool) {
	lower := strings.ToLower(text)
	for _, a := range n.aliases {
		if strings.Contains(lower, a.term) {
			return a.role, true
		}
	}
	return "", false
}

// codes returns the non-empty Double Metaphone codes of word.
func codes(word string) []string {
	p, s := matchr.DoubleMetaphone(word)
	out := make([]string, 0, 2)
	if p != "" {
		out = append(out, p)
	}
	if s != "" && s != p {
		out = append(out, s)
	}
	return out
}

func overlap(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}
