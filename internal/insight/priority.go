package insight

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// Level thresholds. Level is a pure function of score.
const (
	UrgentThreshold = 10
	HighThreshold   = 5
)

// Contribution weights of the priority rules.
const (
	urgentKeywordWeight    = 10
	importantKeywordWeight = 5
	timeSensitiveWeight    = 7
	exclamationWeight      = 2
	exclamationCap         = 10
	minExclamations        = 2
	shoutingWeight         = 8
	shoutingRatio          = 0.5
	shoutingMinLetters     = 10
	urgentQuestionWeight   = 3
	problemWeight          = 6
	actionRequiredWeight   = 5
)

// LevelForScore maps a score to its level.
func LevelForScore(score int) PriorityLevel {
	switch {
	case score >= UrgentThreshold:
		return PriorityUrgent
	case score >= HighThreshold:
		return PriorityHigh
	default:
		return PriorityNormal
	}
}

// keyword is a phrase matched on word boundaries.
type keyword struct {
	phrase string
	regex  *regexp.Regexp
}

func compileKeywords(phrases []string) ([]keyword, error) {
	out := make([]keyword, 0, len(phrases))
	for _, p := range phrases {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		re, err := regexp.Compile(`\b` + regexp.QuoteMeta(p) + `\b`)
		if err != nil {
			return nil, fmt.Errorf("%w: keyword %q: %v", ErrInvalidRule, p, err)
		}
		out = append(out, keyword{phrase: p, regex: re})
	}
	return out, nil
}

// PriorityScorer scores single message texts with additive rules.
type PriorityScorer struct {
	urgent         []keyword
	important      []keyword
	timeSensitive  []keyword
	questionWords  []keyword
	problems       []keyword
	actionRequired []keyword
}

// NewPriorityScorer compiles the keyword lists of r.
func NewPriorityScorer(r PriorityRules) (*PriorityScorer, error) {
	s := &PriorityScorer{}
	lists := []struct {
		dst *[]keyword
		src []string
	}{
		{&s.urgent, r.Urgent},
		{&s.important, r.Important},
		{&s.timeSensitive, r.TimeSensitive},
		{&s.questionWords, r.QuestionWords},
		{&s.problems, r.ProblemIndicators},
		{&s.actionRequired, r.ActionRequired},
	}
	for _, l := range lists {
		kws, err := compileKeywords(l.src)
		if err != nil {
			return nil, err
		}
		*l.dst = kws
	}
	return s, nil
}

// DefaultPriorityScorer returns a scorer over the built-in keyword lists.
func DefaultPriorityScorer() *PriorityScorer {
	s, err := NewPriorityScorer(DefaultPriorityRules())
	if err != nil {
		panic(fmt.Sprintf("default priority rules: %v", err))
	}
	return s
}

// Score computes the priority of text. Reasons are listed in rule order.
func (s *PriorityScorer) Score(text string) PriorityResult {
	lower := strings.ToLower(text)
	score := 0
	reasons := []string{}

	// 1-3: every distinct keyword counts once.
	for _, kw := range s.urgent {
		if kw.regex.MatchString(lower) {
			score += urgentKeywordWeight
			reasons = append(reasons, "urgent keyword: "+kw.phrase)
		}
	}
	for _, kw := range s.important {
		if kw.regex.MatchString(lower) {
			score += importantKeywordWeight
			reasons = append(reasons, "important keyword: "+kw.phrase)
		}
	}
	for _, kw := range s.timeSensitive {
		if kw.regex.MatchString(lower) {
			score += timeSensitiveWeight
			reasons = append(reasons, "time sensitive: "+kw.phrase)
		}
	}

	// 4: exclamation marks.
	if n := strings.Count(text, "!"); n >= minExclamations {
		score += min(n*exclamationWeight, exclamationCap)
		reasons = append(reasons, fmt.Sprintf("exclamation marks: %d", n))
	}

	// 5: shouting, on the original case.
	if upper, letters := countLetters(text); letters > shoutingMinLetters &&
		float64(upper)/float64(letters) > shoutingRatio {
		score += shoutingWeight
		reasons = append(reasons, "mostly uppercase")
	}

	// 6: urgent question.
	if strings.Contains(text, "?") {
		if kw, ok := firstMatch(s.questionWords, lower); ok {
			score += urgentQuestionWeight
			reasons = append(reasons, "urgent question: "+kw)
		}
	}

	// 7-8: only the first match counts.
	if kw, ok := firstMatch(s.problems, lower); ok {
		score += problemWeight
		reasons = append(reasons, "problem indicator: "+kw)
	}
	if kw, ok := firstMatch(s.actionRequired, lower); ok {
		score += actionRequiredWeight
		reasons = append(reasons, "action required: "+kw)
	}

	return PriorityResult{
		Level:   LevelForScore(score),
		Score:   score,
		Reasons: reasons,
	}
}

func firstMatch(keywords []keyword, text string) (string, bool) {
	for _, kw := range keywords {
		if kw.regex.MatchString(text) {
			return kw.phrase, true
		}
	}
	return "", false
}

func countLetters(text string) (upper, letters int) {
	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		if unicode.IsUpper(r) {
			upper++
		}
	}
	return upper, letters
}

var defaultScorer = DefaultPriorityScorer()

// ScorePriority scores text with the built-in rules. It needs no
// conversation context.
func ScorePriority(text string) PriorityResult {
	return defaultScorer.Score(text)
}
