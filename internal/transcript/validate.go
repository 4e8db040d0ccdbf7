package transcript

import "fmt"

const (
	// maxPlausibleRoles is the largest number of distinct roles a call may
	// have.
	maxPlausibleRoles = 3

	// dominantShare is the share of utterances above which a role counts as
	// a dominant speaker.
	dominantShare = 0.10
)

// Plausibility is the outcome of [CheckPlausibility].
type Plausibility struct {
	// Valid reports whether the transcript has a believable speaker structure.
	Valid bool `json:"valid"`

	// SingleSpeaker is set for valid transcripts with only one role. Such
	// calls are accepted but may need splitting later.
	SingleSpeaker bool `json:"single_speaker,omitempty"`

	// Roles counts utterances per role.
	Roles map[string]int `json:"roles"`

	// Dominant is the number of roles holding more than 10% of utterances.
	Dominant int `json:"dominant"`

	// Reason explains a rejection.
	Reason string `json:"reason,omitempty"`
}

// CheckPlausibility validates the speaker structure of t. It rejects an empty
// transcript and more than three distinct roles. A single role is accepted.
// Otherwise the number of roles with more than 10% of the utterances must be
// between one and three.
func CheckPlausibility(t Transcript) Plausibility {
	p := Plausibility{Roles: make(map[string]int)}
	for _, u := range t.Utterances {
		p.Roles[u.Speaker]++
	}

	total := len(t.Utterances)
	switch {
	case total == 0:
		p.Reason = "transcript has no utterances"
		return p
	case len(p.Roles) == 1:
		p.Valid, p.SingleSpeaker, p.Dominant = true, true, 1
		return p
	case len(p.Roles) > maxPlausibleRoles:
		p.Reason = fmt.Sprintf("%d distinct speakers, at most %d expected", len(p.Roles), maxPlausibleRoles)
		return p
	}

	for _, n := range p.Roles {
		if float64(n)/float64(total) > dominantShare {
			p.Dominant++
		}
	}
	if p.Dominant < 1 || p.Dominant > maxPlausibleRoles {
		p.Reason = fmt.Sprintf("%d dominant speakers", p.Dominant)
		return p
	}
	p.Valid = true
	return p
}
