// Package similarity provides the string comparators used to deduplicate
// extracted insights.
//
// Two strategies are exposed behind a single Metric interface:
//   - EditDistanceRatio: 1 - levenshtein(a, b) / max(len(a), len(b))
//   - JaccardWordOverlap: |words(a) ∩ words(b)| / |words(a) ∪ words(b)|
//
// Both are case-insensitive and return a value in [0, 1], where 1 means
// identical. Lengths are measured in runes, not bytes.
package similarity

import (
	"strings"
	"unicode"
)

// Metric compares two strings and returns a similarity in [0, 1].
type Metric interface {
	Name() string
	Similarity(a, b string) float64
}

// EditDistanceRatio scores strings by normalized Levenshtein distance.
type EditDistanceRatio struct{}

// Name returns the metric name.
func (EditDistanceRatio) Name() string { return "edit_distance_ratio" }

// Similarity returns 1 - distance/maxLen over lowercased runes.
func (EditDistanceRatio) Similarity(a, b string) float64 {
	ra := []rune(strings.ToLower(a))
	rb := []rune(strings.ToLower(b))

	if string(ra) == string(rb) {
		return 1.0
	}
	if len(ra) == 0 || len(rb) == 0 {
		return 0.0
	}

	distance := levenshteinRunes(ra, rb)
	maxLen := max(len(ra), len(rb))
	return 1.0 - float64(distance)/float64(maxLen)
}

// JaccardWordOverlap scores strings by the overlap of their word sets.
type JaccardWordOverlap struct{}

// Name returns the metric name.
func (JaccardWordOverlap) Name() string { return "jaccard_word_overlap" }

// Similarity returns |A ∩ B| / |A ∪ B| over lowercased word sets.
// Two strings without any words are considered identical.
func (JaccardWordOverlap) Similarity(a, b string) float64 {
	left := WordSet(a)
	right := WordSet(b)
	if len(left) == 0 && len(right) == 0 {
		return 1.0
	}
	if len(left) == 0 || len(right) == 0 {
		return 0.0
	}

	intersection := 0
	for w := range left {
		if _, ok := right[w]; ok {
			intersection++
		}
	}
	union := len(left) + len(right) - intersection
	return float64(intersection) / float64(union)
}

// Levenshtein computes the edit distance between two strings in runes.
func Levenshtein(a, b string) int {
	return levenshteinRunes([]rune(a), []rune(b))
}

func levenshteinRunes(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	// Two rolling rows instead of the full matrix.
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}

	return prev[len(b)]
}

// WordSet splits text on anything that is not a letter or digit and returns
// the set of lowercased words.
func WordSet(text string) map[string]struct{} {
	parts := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	set := make(map[string]struct{}, len(parts))
	for _, p := range parts {
		set[p] = struct{}{}
	}
	return set
}

var (
	_ Metric = EditDistanceRatio{}
	_ Metric = JaccardWordOverlap{}
)
