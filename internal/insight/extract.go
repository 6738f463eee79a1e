package insight

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// softPunctuation is stripped from the end of a clause.
const softPunctuation = ",;:-–—"

const ellipsis = "..."

// match is one marker/clause occurrence in a message.
type match struct {
	rule       string
	marker     string
	clause     string
	confidence float64
}

// extractFromMessage applies a table to one message text. It returns nil
// for empty or short text and for text hit by any exclusion pattern.
func extractFromMessage(text string, t *Table) []match {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}
	if utf8.RuneCountInString(trimmed) < t.minLength {
		return nil
	}

	// Exclusions short-circuit the whole message.
	if t.Excluded(trimmed) {
		return nil
	}

	var matches []match
	for _, r := range t.rules {
		for _, sub := range r.regex.FindAllStringSubmatch(trimmed, -1) {
			marker := strings.TrimSpace(sub[1])
			clause := cleanClause(sub[2], t.maxClauseLength)
			if marker == "" || utf8.RuneCountInString(clause) < minClauseLength {
				continue
			}
			matches = append(matches, match{
				rule:       r.name,
				marker:     marker,
				clause:     clause,
				confidence: t.Confidence(marker),
			})
		}
	}
	return matches
}

// minClauseLength drops matches whose clause is a stray word or two letters.
const minClauseLength = 3

// cleanClause trims whitespace and trailing soft punctuation, then
// truncates to maxLen characters with an ellipsis.
func cleanClause(s string, maxLen int) string {
	s = strings.TrimSpace(s)
	s = strings.TrimRightFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || strings.ContainsRune(softPunctuation, r)
	})
	return truncate(s, maxLen)
}

// truncate shortens s to maxLen characters, appending an ellipsis.
// A maxLen of zero disables truncation.
func truncate(s string, maxLen int) string {
	if maxLen <= 0 || utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return strings.TrimRightFunc(string(runes[:maxLen]), unicode.IsSpace) + ellipsis
}

// capitalizeFirst upper-cases the first letter of s.
func capitalizeFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
