package transcript

import "unicode/utf8"

// shortUtteranceRunes is the length below which an affirmation marks an
// utterance as the customer's.
const shortUtteranceRunes = 50

// CorrectSpeakers applies lexical overrides to the speaker of each utterance
// and returns the same slice, modified in place. Only Speaker is changed.
//
// The opening utterance is the agent's when it contains a greeting token. An
// utterance shorter than 50 characters that contains "ya", "iya" or "tidak"
// as a whole word is the customer's; this rule wins over the greeting rule.
// Both rules depend only on the text and position, so the function is
// idempotent.
func CorrectSpeakers(utterances []Utterance) []Utterance {
	for i := range utterances {
		u := &utterances[i]
		if i == 0 && containsAny(u.Text, greetingTokens) {
			u.Speaker = RoleAgent
		}
		if utf8.RuneCountInString(u.Text) < shortUtteranceRunes && containsAny(u.Text, affirmationTokens) {
			u.Speaker = RoleCustomer
		}
	}
	return utterances
}
