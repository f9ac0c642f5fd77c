package domain

import (
	"strings"
	"time"
	"unicode"
)

// Memory is a record held by the local memory source.
type Memory struct {
	ID        string
	Content   string
	Metadata  map[string]any
	CreatedAt time.Time
}

// MemoryHit is a local memory matched by a search, with its score in [0,1].
type MemoryHit struct {
	Memory Memory
	Score  float64
}

// minMemoryTermLength drops short words that match almost everything.
const minMemoryTermLength = 3

// MemoryTerms lower-cases a query and returns its distinct words of at
// least three characters, in order of first appearance.
func MemoryTerms(query string) []string {
	seen := make(map[string]bool)
	var terms []string
	for _, word := range strings.FieldsFunc(strings.ToLower(query), isTermSeparator) {
		if len(word) < minMemoryTermLength || seen[word] {
			continue
		}
		seen[word] = true
		terms = append(terms, word)
	}
	return terms
}

// TermScore returns the fraction of terms contained in content.
func TermScore(content string, terms []string) float64 {
	if len(terms) == 0 {
		return 0
	}
	lower := strings.ToLower(content)
	hits := 0
	for _, t := range terms {
		if strings.Contains(lower, t) {
			hits++
		}
	}
	return float64(hits) / float64(len(terms))
}

func isTermSeparator(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != '-'
}
