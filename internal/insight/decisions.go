package insight

import "strings"

// DecisionExtractor turns messages into decision candidates.
type DecisionExtractor struct {
	table *Table
}

// NewDecisionExtractor creates an extractor over a compiled decision table.
func NewDecisionExtractor(t *Table) *DecisionExtractor {
	return &DecisionExtractor{table: t}
}

// Extract returns every decision candidate in one message.
func (e *DecisionExtractor) Extract(text string, meta messageMeta) []ExtractedDecision {
	matches := extractFromMessage(text, e.table)
	if len(matches) == 0 {
		return nil
	}

	decisions := make([]ExtractedDecision, 0, len(matches))
	for _, m := range matches {
		decisions = append(decisions, ExtractedDecision{
			Content:         formatDecision(e.table.canonicalLabel(m.marker), m.clause),
			SourceMessageID: meta.ID,
			Timestamp:       meta.Timestamp,
			SenderID:        meta.SenderID,
			SenderName:      meta.SenderName,
			Confidence:      m.confidence,
		})
	}
	return decisions
}

// formatDecision builds "<label>: <Clause>.".
func formatDecision(label, clause string) string {
	content := label + ": " + capitalizeFirst(clause)
	if !strings.HasSuffix(content, ellipsis) {
		content += "."
	}
	return content
}
