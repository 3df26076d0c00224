package matcher

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestMatcher_Match(t *testing.T) {
	m, err := New(Options{Terms: []string{"Invoice", "  payment "}})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	tests := []struct {
		name   string
		corpus string
		want   bool
	}{
		{name: "subject hit", corpus: "alice@example.com\nbob@example.com\ninvoice 123\nplease pay", want: true},
		{name: "second term", corpus: "a\nb\nreminder\nyour payment is late", want: true},
		{name: "substring inside word", corpus: "a\nb\nc\npreinvoiced", want: true},
		{name: "no hit", corpus: "a\nb\nmeeting\nsee you tomorrow", want: false},
		{name: "empty corpus", corpus: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := m.Match(tt.corpus); got != tt.want {
				t.Errorf("Match(%q) = %v, want %v", tt.corpus, got, tt.want)
			}
		})
	}
}

func TestMatcher_CaseInsensitiveByConstruction(t *testing.T) {
	terms := []string{"InVoIcE", "CONTRACT"}
	m, err := New(Options{Terms: terms})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	for _, corpus := range []string{"INVOICE", "Invoice", "the Contract was signed"} {
		if !m.Match(strings.ToLower(corpus)) {
			t.Errorf("Match(%q) = false, want true", corpus)
		}
	}
	if m.Match(strings.ToLower("Meeting notes")) {
		t.Error("Match(meeting notes) = true, want false")
	}
}

func TestMatcher_NoTerms(t *testing.T) {
	for _, terms := range [][]string{nil, {}, {"", "   "}} {
		_, err := New(Options{Terms: terms})
		if !errors.Is(err, ErrNoTerms) {
			t.Errorf("New(%q) error = %v, want ErrNoTerms", terms, err)
		}
	}
}

func TestMatcher_Stats(t *testing.T) {
	m, err := New(Options{Terms: []string{"alpha", "beta", "Alpha"}})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if got := m.Terms(); len(got) != 2 || got[0] != "alpha" || got[1] != "beta" {
		t.Fatalf("Terms() = %v, want [alpha beta]", got)
	}

	m.Match("alpha and beta")
	m.Match("alpha only")
	m.Match("neither")

	stats := m.GetStats()
	if stats.Hits["alpha"] != 2 {
		t.Errorf("alpha hits = %d, want 2", stats.Hits["alpha"])
	}
	if stats.Hits["beta"] != 1 {
		t.Errorf("beta hits = %d, want 1", stats.Hits["beta"])
	}
}

func TestNormalizeTerms(t *testing.T) {
	got := NormalizeTerms([]string{" Invoice ", "", "PAYMENT", "invoice", "  "})
	if want := []string{"invoice", "payment"}; !reflect.DeepEqual(got, want) {
		t.Errorf("NormalizeTerms() = %v, want %v", got, want)
	}
}
