package picker

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// FuzzyScore matches query as a case-insensitive subsequence of candidate.
// Higher scores mean tighter matches: consecutive runs and matches at word
// boundaries (after '.', '-', '_', '/', ' ' or at the start) earn bonuses.
func FuzzyScore(query, candidate string) (int, bool) {
	if query == "" {
		return 0, true
	}

	q := []rune(strings.ToLower(query))
	score := 0
	qi := 0
	prevMatched := false
	prev := rune(0)

	for i, r := range strings.ToLower(candidate) {
		if qi == len(q) {
			break
		}
		if r != q[qi] {
			prevMatched = false
			prev = r
			continue
		}

		score++
		if prevMatched {
			score += 3
		}
		if i == 0 || isBoundary(prev) {
			score += 2
		}
		prevMatched = true
		prev = r
		qi++
	}

	if qi < len(q) {
		return 0, false
	}
	// Prefer shorter candidates among equal matches.
	score -= utf8.RuneCountInString(candidate) / 16
	return score, true
}

func isBoundary(r rune) bool {
	return r == '.' || r == '-' || r == '_' || r == '/' || unicode.IsSpace(r)
}

// Filter keeps the items matching query, best match first. Ties keep the
// provider's order.
func Filter(items []Item, query string) []Item {
	if query == "" {
		return items
	}

	type scored struct {
		item  Item
		score int
	}
	matches := make([]scored, 0, len(items))
	for _, it := range items {
		if s, ok := FuzzyScore(query, it.Value); ok {
			matches = append(matches, scored{item: it, score: s})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].score > matches[j].score
	})

	out := make([]Item, len(matches))
	for i, m := range matches {
		out[i] = m.item
	}
	return out
}
