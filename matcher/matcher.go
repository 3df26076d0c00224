package matcher

import (
	"errors"
	"strings"
	"sync"
)

var ErrNoTerms = errors.New("at least one search term is required")

// Options captures the matching configuration.
type Options struct {
	Terms []string
}

// Matcher decides whether a message corpus contains any of the search terms.
type Matcher struct {
	terms []string

	mu   sync.Mutex
	hits map[string]int
}

// Stats reports how often each term matched.
type Stats struct {
	Terms []string
	Hits  map[string]int
}

// New creates a new Matcher from the provided options. Terms are trimmed and
// lower-cased; empty terms are ignored.
func New(opts Options) (*Matcher, error) {
	terms := NormalizeTerms(opts.Terms)
	if len(terms) == 0 {
		return nil, ErrNoTerms
	}

	return &Matcher{
		terms: terms,
		hits:  make(map[string]int, len(terms)),
	}, nil
}

// NormalizeTerms trims and lower-cases terms, dropping empty entries and
// duplicates while keeping the order they were given in.
func NormalizeTerms(terms []string) []string {
	out := make([]string, 0, len(terms))
	seen := make(map[string]struct{}, len(terms))
	for _, term := range terms {
		term = strings.ToLower(strings.TrimSpace(term))
		if term == "" {
			continue
		}
		if _, ok := seen[term]; ok {
			continue
		}
		seen[term] = struct{}{}
		out = append(out, term)
	}
	return out
}

// Terms returns the normalized terms in their original order.
func (m *Matcher) Terms() []string {
	return append([]string(nil), m.terms...)
}

// Match returns true if at least one term is a substring of the corpus.
// The corpus is expected to be lower-cased already.
func (m *Matcher) Match(corpus string) bool {
	matched := false
	for _, term := range m.terms {
		if strings.Contains(corpus, term) {
			matched = true
			m.mu.Lock()
			m.hits[term]++
			m.mu.Unlock()
		}
	}
	return matched
}

// GetStats returns a copy of the per-term hit counters.
func (m *Matcher) GetStats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	hits := make(map[string]int, len(m.hits))
	for k, v := range m.hits {
		hits[k] = v
	}
	return Stats{Terms: m.Terms(), Hits: hits}
}
