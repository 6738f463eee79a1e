package insight

import (
	"fmt"
	"regexp"
	"strings"
)

// Rule is one marker/clause pattern. The pattern must capture the marker
// phrase in group 1 and the trailing clause in group 2.
type Rule struct {
	Name    string `yaml:"name" json:"name"`
	Pattern string `yaml:"pattern" json:"pattern"`
}

// Tier maps a set of marker phrases to a fixed confidence. Tiers are
// evaluated in order and the first tier with a marker contained in the
// matched marker text wins.
type Tier struct {
	Markers    []string `yaml:"markers" json:"markers"`
	Confidence float64  `yaml:"confidence" json:"confidence"`
}

// RuleSet is the rule table for one extraction category.
type RuleSet struct {
	Rules      []Rule   `yaml:"rules" json:"rules"`
	Exclusions []string `yaml:"exclusions" json:"exclusions"`
	Tiers      []Tier   `yaml:"tiers" json:"tiers"`

	// DefaultConfidence applies when no tier matches the marker.
	DefaultConfidence float64 `yaml:"default_confidence" json:"default_confidence"`
	// MinLength skips messages shorter than this many characters.
	MinLength int `yaml:"min_length" json:"min_length"`
	// MaxClauseLength truncates clauses, in characters, with an ellipsis.
	MaxClauseLength int `yaml:"max_clause_length" json:"max_clause_length"`

	// CanonicalMarkers maps a normalized marker to the label used in
	// decision content. Unmapped markers are capitalized as written.
	CanonicalMarkers map[string]string `yaml:"canonical_markers,omitempty" json:"canonical_markers,omitempty"`

	// AssigneePattern and DuePattern are matched against the full message
	// text. Group 1 of AssigneePattern is the handle; the whole DuePattern
	// match is the due hint.
	AssigneePattern string `yaml:"assignee_pattern,omitempty" json:"assignee_pattern,omitempty"`
	DuePattern      string `yaml:"due_pattern,omitempty" json:"due_pattern,omitempty"`
}

// PriorityRules holds the keyword lists used by the priority scorer.
// Keywords are matched on word boundaries against the lowercased text.
type PriorityRules struct {
	Urgent            []string `yaml:"urgent" json:"urgent"`
	Important         []string `yaml:"important" json:"important"`
	TimeSensitive     []string `yaml:"time_sensitive" json:"time_sensitive"`
	QuestionWords     []string `yaml:"question_words" json:"question_words"`
	ProblemIndicators []string `yaml:"problem_indicators" json:"problem_indicators"`
	ActionRequired    []string `yaml:"action_required" json:"action_required"`
}

// Rules groups the rule tables of every category.
type Rules struct {
	Actions   RuleSet       `yaml:"actions" json:"actions"`
	Decisions RuleSet       `yaml:"decisions" json:"decisions"`
	Priority  PriorityRules `yaml:"priority" json:"priority"`
}

// DefaultRules returns the built-in rule tables.
func DefaultRules() Rules {
	return Rules{
		Actions:   DefaultActionRules(),
		Decisions: DefaultDecisionRules(),
		Priority:  DefaultPriorityRules(),
	}
}

const clauseGroup = `([^.!?\n]+)`

// Hedging language shared by the action and decision tables.
var hedgingExclusions = []string{
	`(?i)\b(maybe|perhaps|might|probably)\b`,
	`(?i)\b(i think|not sure|i guess|i suppose)\b`,
	`(?i)^\s*(hi|hello|hey|thanks|thank you|good morning|good night|ok|okay)\b[\s!.,]*(all|everyone|team)?[\s!.,]*$`,
}

// DefaultActionRules returns the built-in action item table.
func DefaultActionRules() RuleSet {
	return RuleSet{
		Rules: []Rule{
			{Name: "commitment", Pattern: `(?i)\b(i will|i['’]ll|i am going to|i['’]m going to)\s+` + clauseGroup},
			{Name: "todo", Pattern: `(?i)\b(todo|to-do|action item)\s*[:\-]\s*` + clauseGroup},
			{Name: "obligation", Pattern: `(?i)\b(need to|needs to|have to|has to|must|remind me to)\s+` + clauseGroup},
			{Name: "request", Pattern: `(?i)\b(can you|could you|would you|please)\s+` + clauseGroup},
			{Name: "proposal", Pattern: `(?i)\b(let['’]s|let us)\s+` + clauseGroup},
		},
		Exclusions: append([]string(nil), hedgingExclusions...),
		Tiers: []Tier{
			{Markers: []string{"i will", "i'll", "i am going to", "i'm going to", "todo", "to-do", "action item"}, Confidence: 0.9},
			{Markers: []string{"need to", "needs to", "have to", "has to", "must", "remind me to"}, Confidence: 0.75},
			{Markers: []string{"can you", "could you", "would you", "please"}, Confidence: 0.65},
			{Markers: []string{"let's", "let us"}, Confidence: 0.6},
		},
		DefaultConfidence: 0.5,
		MinLength:         5,
		MaxClauseLength:   100,
		AssigneePattern:   `(?:^|[^A-Za-z0-9_])@([A-Za-z0-9_][A-Za-z0-9_.\-]*[A-Za-z0-9_]|[A-Za-z0-9_])`,
		DuePattern: `(?i)\b(?:(?:by|before|on|until|due)\s+)?` +
			`(?:eod|eow|end of (?:the )?(?:day|week|month)|tonight|today|tomorrow|` +
			`this (?:week|weekend|afternoon|evening)|next (?:week|month)|` +
			`(?:next\s+)?(?:monday|tuesday|wednesday|thursday|friday|saturday|sunday)|` +
			`\d{1,2}(?::\d{2})?\s?(?:am|pm))\b`,
	}
}

// DefaultDecisionRules returns the built-in decision table.
func DefaultDecisionRules() RuleSet {
	return RuleSet{
		Rules: []Rule{
			{Name: "agreed", Pattern: `(?i)\b(we agreed|we['’]ve agreed|we have agreed|everyone agreed)(?:\s+(?:to|that|on))?\s+` + clauseGroup},
			{Name: "decided", Pattern: `(?i)\b(we decided|we['’]ve decided|we have decided|it was decided)(?:\s+(?:to|that|on))?\s+` + clauseGroup},
			{Name: "decision_label", Pattern: `(?i)\b(final decision|decision)\s*[:\-]\s*` + clauseGroup},
			{Name: "going_with", Pattern: `(?i)\b(let['’]s go with|we['’]re going with|we are going with)\s+` + clauseGroup},
			{Name: "confirmed", Pattern: `(?i)\b(it['’]s confirmed|confirmed)(?:\s*[:\-]|\s+that)?\s+` + clauseGroup},
			{Name: "settled", Pattern: `(?i)\b(we settled on|settled on)\s+` + clauseGroup},
			{Name: "approved", Pattern: `(?i)\b(signed off on|approved)\s*:?\s+` + clauseGroup},
			{Name: "plan", Pattern: `(?i)\b(the plan is)(?:\s+to)?\s+` + clauseGroup},
		},
		Exclusions: append(append([]string(nil), hedgingExclusions...),
			`\?\s*$`,
			`(?i)\b(should we|what if|shall we|do we want)\b`,
		),
		Tiers: []Tier{
			{Markers: []string{"agreed", "decided", "confirmed", "final decision"}, Confidence: 0.9},
			{Markers: []string{"going with", "go with", "settled on", "decision"}, Confidence: 0.8},
			{Markers: []string{"approved", "signed off"}, Confidence: 0.75},
			{Markers: []string{"the plan is"}, Confidence: 0.6},
		},
		DefaultConfidence: 0.5,
		MinLength:         10,
		MaxClauseLength:   150,
		CanonicalMarkers: map[string]string{
			"we agreed":         "We agreed",
			"we've agreed":      "We agreed",
			"we have agreed":    "We agreed",
			"everyone agreed":   "Everyone agreed",
			"we decided":        "We decided",
			"we've decided":     "We decided",
			"we have decided":   "We decided",
			"it was decided":    "Decided",
			"final decision":    "Final decision",
			"decision":          "Decision",
			"let's go with":     "Going with",
			"we're going with":  "We're going with",
			"we are going with": "We're going with",
			"it's confirmed":    "Confirmed",
			"confirmed":         "Confirmed",
			"we settled on":     "Settled on",
			"settled on":        "Settled on",
			"signed off on":     "Signed off",
			"approved":          "Approved",
			"the plan is":       "Plan",
		},
	}
}

// DefaultPriorityRules returns the built-in priority keyword lists.
func DefaultPriorityRules() PriorityRules {
	return PriorityRules{
		Urgent:            []string{"urgent", "asap", "emergency", "critical", "immediately", "right now"},
		Important:         []string{"important", "priority", "deadline", "blocker", "blocking", "required", "attention"},
		TimeSensitive:     []string{"today", "tonight", "by eod", "end of day", "this morning", "within the hour", "right away", "due today"},
		QuestionWords:     []string{"when", "status", "eta", "update", "how long"},
		ProblemIndicators: []string{"down", "broken", "failing", "failed", "error", "crash", "outage", "bug", "not working", "issue"},
		ActionRequired:    []string{"action required", "please review", "please respond", "need you to", "needs your", "waiting on you", "waiting for you", "your input", "sign off"},
	}
}

// Table is a compiled RuleSet.
type Table struct {
	rules             []compiledRule
	exclusions        []*regexp.Regexp
	tiers             []Tier
	defaultConfidence float64
	minLength         int
	maxClauseLength   int
	canonical         map[string]string
	assignee          *regexp.Regexp
	due               *regexp.Regexp
}

type compiledRule struct {
	name  string
	regex *regexp.Regexp
}

// Compile validates and compiles the rule set. Any invalid pattern fails
// the whole set.
func (rs RuleSet) Compile() (*Table, error) {
	if len(rs.Rules) == 0 {
		return nil, fmt.Errorf("%w: rule set has no rules", ErrInvalidRule)
	}

	t := &Table{
		defaultConfidence: rs.DefaultConfidence,
		minLength:         rs.MinLength,
		maxClauseLength:   rs.MaxClauseLength,
		canonical:         make(map[string]string, len(rs.CanonicalMarkers)),
	}

	for _, r := range rs.Rules {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidRule, r.Name, err)
		}
		if re.NumSubexp() < 2 {
			return nil, fmt.Errorf("%w: %s: pattern needs marker and clause groups", ErrInvalidRule, r.Name)
		}
		t.rules = append(t.rules, compiledRule{name: r.Name, regex: re})
	}

	for _, ex := range rs.Exclusions {
		re, err := regexp.Compile(ex)
		if err != nil {
			return nil, fmt.Errorf("%w: exclusion %q: %v", ErrInvalidRule, ex, err)
		}
		t.exclusions = append(t.exclusions, re)
	}

	for _, tier := range rs.Tiers {
		if tier.Confidence < 0 || tier.Confidence > 1 {
			return nil, fmt.Errorf("%w: tier confidence %v out of range", ErrInvalidRule, tier.Confidence)
		}
		markers := make([]string, 0, len(tier.Markers))
		for _, m := range tier.Markers {
			markers = append(markers, normalizeMarker(m))
		}
		t.tiers = append(t.tiers, Tier{Markers: markers, Confidence: tier.Confidence})
	}

	for k, v := range rs.CanonicalMarkers {
		t.canonical[normalizeMarker(k)] = v
	}

	if rs.AssigneePattern != "" {
		re, err := regexp.Compile(rs.AssigneePattern)
		if err != nil {
			return nil, fmt.Errorf("%w: assignee pattern: %v", ErrInvalidRule, err)
		}
		t.assignee = re
	}
	if rs.DuePattern != "" {
		re, err := regexp.Compile(rs.DuePattern)
		if err != nil {
			return nil, fmt.Errorf("%w: due pattern: %v", ErrInvalidRule, err)
		}
		t.due = re
	}

	return t, nil
}

// Confidence returns the confidence tier for a matched marker.
func (t *Table) Confidence(marker string) float64 {
	m := normalizeMarker(marker)
	for _, tier := range t.tiers {
		for _, tm := range tier.Markers {
			if strings.Contains(m, tm) {
				return tier.Confidence
			}
		}
	}
	return t.defaultConfidence
}

// Excluded reports whether any exclusion pattern matches text.
func (t *Table) Excluded(text string) bool {
	for _, re := range t.exclusions {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// canonicalLabel returns the display label for a marker.
func (t *Table) canonicalLabel(marker string) string {
	if label, ok := t.canonical[normalizeMarker(marker)]; ok {
		return label
	}
	return capitalizeFirst(strings.Join(strings.Fields(marker), " "))
}

// normalizeMarker lowercases, folds typographic apostrophes, and collapses
// whitespace.
func normalizeMarker(s string) string {
	s = strings.ToLower(strings.ReplaceAll(s, "’", "'"))
	return strings.Join(strings.Fields(s), " ")
}

// CompiledRules holds the compiled tables of every category.
type CompiledRules struct {
	Actions   *Table
	Decisions *Table
	Priority  *PriorityScorer
}

// Compile compiles every table in r.
func (r Rules) Compile() (*CompiledRules, error) {
	actions, err := r.Actions.Compile()
	if err != nil {
		return nil, fmt.Errorf("actions: %w", err)
	}
	decisions, err := r.Decisions.Compile()
	if err != nil {
		return nil, fmt.Errorf("decisions: %w", err)
	}
	priority, err := NewPriorityScorer(r.Priority)
	if err != nil {
		return nil, fmt.Errorf("priority: %w", err)
	}
	return &CompiledRules{Actions: actions, Decisions: decisions, Priority: priority}, nil
}
