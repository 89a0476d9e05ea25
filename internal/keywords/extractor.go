package keywords

import (
	"iter"
	"slices"
	"strings"
	"unicode"
)

// MaxExtracted is the number of terms Extract yields at most.
const MaxExtracted = 10

var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "are": {}, "but": {}, "not": {}, "you": {}, "all": {},
	"any": {}, "can": {}, "had": {}, "her": {}, "was": {}, "one": {}, "our": {}, "out": {},
	"day": {}, "get": {}, "has": {}, "him": {}, "his": {}, "how": {}, "its": {}, "may": {},
	"new": {}, "now": {}, "old": {}, "see": {}, "two": {}, "who": {}, "did": {}, "she": {},
	"use": {}, "way": {}, "too": {}, "this": {}, "that": {}, "with": {}, "have": {}, "from": {},
	"they": {}, "will": {}, "been": {}, "were": {}, "said": {}, "each": {}, "which": {}, "their": {},
	"what": {}, "when": {}, "where": {}, "there": {}, "them": {}, "than": {}, "then": {}, "these": {},
	"those": {}, "into": {}, "your": {}, "also": {}, "some": {}, "such": {}, "only": {}, "very": {},
	"just": {}, "more": {}, "most": {}, "other": {}, "about": {}, "would": {}, "could": {}, "should": {},
}

// IsStopWord reports whether w is filtered out by the extractor.
func IsStopWord(w string) bool {
	_, ok := stopWords[strings.ToLower(w)]
	return ok
}

// Extract yields the most frequent significant words of text, most frequent
// first. Ties keep first-seen order. The sequence is computed on first
// iteration and can be ranged over any number of times.
func Extract(text string) iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, w := range rank(text, MaxExtracted) {
			if !yield(w) {
				return
			}
		}
	}
}

// Top collects up to n extracted words into a slice.
func Top(text string, n int) []string {
	if n <= 0 {
		return nil
	}
	out := slices.Collect(Extract(text))
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func rank(text string, limit int) []string {
	counts := make(map[string]int)
	order := make([]string, 0)

	for _, tok := range strings.Fields(normalize(text)) {
		if !significant(tok) {
			continue
		}
		if _, seen := counts[tok]; !seen {
			order = append(order, tok)
		}
		counts[tok]++
	}

	slices.SortStableFunc(order, func(a, b string) int {
		return counts[b] - counts[a]
	})

	if len(order) > limit {
		order = order[:limit]
	}
	return order
}

// normalize lowercases text and drops punctuation.
func normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '_':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return b.String()
}

func significant(tok string) bool {
	if len([]rune(tok)) <= 2 {
		return false
	}
	if _, stop := stopWords[tok]; stop {
		return false
	}
	return !numeric(tok)
}

func numeric(tok string) bool {
	for _, r := range tok {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
