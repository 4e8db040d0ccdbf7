package transcript

import "strings"

// SegmentUtterances groups tokens into utterances with the
// [DefaultPauseThreshold].
func SegmentUtterances(tokens []WordToken, speakers SpeakerMap) []Utterance {
	return segment(tokens, speakers, DefaultPauseThreshold)
}

// segment closes the running utterance whenever the role changes or the gap
// between a token's start and the previous token's end exceeds pause. Tags
// missing from speakers fall back to the agent. Buffers whose joined text is
// blank are discarded.
func segment(tokens []WordToken, speakers SpeakerMap, pause float64) []Utterance {
	utterances := make([]Utterance, 0)

	var (
		buf     []WordToken
		curRole string
		prevEnd float64
	)
	flush := func() {
		if u, ok := buildUtterance(curRole, buf); ok {
			utterances = append(utterances, u)
		}
		buf = buf[:0]
	}

	for _, tok := range tokens {
		role, ok := speakers[tok.RawSpeaker]
		if !ok {
			role = RoleAgent
		}
		if len(buf) > 0 && (role != curRole || tok.StartTime-prevEnd > pause) {
			flush()
		}
		if len(buf) == 0 {
			curRole = role
		}
		buf = append(buf, tok)
		prevEnd = tok.EndTime
	}
	if len(buf) > 0 {
		flush()
	}
	return utterances
}

func buildUtterance(role string, tokens []WordToken) (Utterance, bool) {
	if len(tokens) == 0 {
		return Utterance{}, false
	}
	words := make([]string, len(tokens))
	var confSum float64
	for i, tok := range tokens {
		words[i] = tok.Word
		confSum += tok.Confidence
	}
	text := strings.TrimSpace(strings.Join(words, " "))
	if text == "" {
		return Utterance{}, false
	}

	start := tokens[0].StartTime
	end := max(tokens[len(tokens)-1].EndTime, start)
	return Utterance{
		Speaker:    role,
		Text:       text,
		StartTime:  start,
		EndTime:    end,
		Confidence: confSum / float64(len(tokens)),
	}, true
}
