package labels_test

import (
	"testing"

	"github.com/MrWong99/callscribe/internal/transcript/labels"
)

func TestNormalize_Aliases(t *testing.T) {
	t.Parallel()

	n := labels.New()
	tests := []struct {
		label string
		want  string
	}{
		{"Agent", labels.Agent},
		{"agen", labels.Agent},
		{"Agen Asuransi", labels.Agent},
		{"Customer", labels.Customer},
		{"PELANGGAN", labels.Customer},
		{"Client", labels.Customer},
		{"Nasabah", labels.Customer},
	}
	for _, tc := range tests {
		t.Run(tc.label, func(t *testing.T) {
			t.Parallel()
			got, matched := n.Normalize(tc.label)
			if !matched {
				t.Fatalf("Normalize(%q): matched=false, want true", tc.label)
			}
			if got != tc.want {
				t.Errorf("Normalize(%q) = %q, want %q", tc.label, got, tc.want)
			}
		})
	}
}

func TestNormalize_Typos(t *testing.T) {
	t.Parallel()

	n := labels.New()
	tests := []struct {
		label string
		want  string
	}{
		{"Custmer", labels.Customer},
		{"Costumer", labels.Customer},
		{"Pelangan", labels.Customer},
		{"Agnet", labels.Agent},
	}
	for _, tc := range tests {
		got, matched := n.Normalize(tc.label)
		if !matched {
			t.Errorf("Normalize(%q): matched=false, want true", tc.label)
			continue
		}
		if got != tc.want {
			t.Errorf("Normalize(%q) = %q, want %q", tc.label, got, tc.want)
		}
	}
}

func TestNormalize_NoMatchKeepsLabel(t *testing.T) {
	t.Parallel()

	n := labels.New()
	for _, label := range []string{"Speaker_3", "Speaker", "Budi", ""} {
		got, matched := n.Normalize(label)
		if matched {
			t.Errorf("Normalize(%q): matched=true (%q), want false", label, got)
		}
		if got != label {
			t.Errorf("Normalize(%q) = %q, want label unchanged", label, got)
		}
	}
}

func TestNormalize_AgentCheckedFirst(t *testing.T) {
	t.Parallel()

	got, _ := labels.New().Normalize("customer service agent")
	if got != labels.Agent {
		t.Errorf("Normalize = %q, want %q", got, labels.Agent)
	}
}

func TestNormalize_ThresholdFiltering(t *testing.T) {
	t.Parallel()

	n := labels.New(
		labels.WithPhoneticThreshold(0.99),
		labels.WithFuzzyThreshold(0.99),
	)
	if got, matched := n.Normalize("Custmer"); matched {
		t.Errorf("Normalize with threshold=0.99 matched %q, want no match", got)
	}
}

func TestWithAliases(t *testing.T) {
	t.Parallel()

	n := labels.New(labels.WithAliases(labels.Agent, "Telemarketer", " "))
	got, matched := n.Normalize("Telemarketer 1")
	if !matched || got != labels.Agent {
		t.Errorf("Normalize = (%q, %v), want (%q, true)", got, matched, labels.Agent)
	}
}

func TestMentions(t *testing.T) {
	t.Parallel()

	n := labels.New()
	if role, ok := n.Mentions("Baik, saya agen dari PT Maju"); !ok || role != labels.Agent {
		t.Errorf("Mentions = (%q, %v), want (%q, true)", role, ok, labels.Agent)
	}
	if role, ok := n.Mentions("Pelanggan bertanya soal premi"); !ok || role != labels.Customer {
		t.Errorf("Mentions = (%q, %v), want (%q, true)", role, ok, labels.Customer)
	}
	// No fuzzy matching on free text.
	if role, ok := n.Mentions("custmer"); ok {
		t.Errorf("Mentions(custmer) = %q, want no match", role)
	}
}
