package insight

import "strings"

// ActionExtractor turns messages into action item candidates.
type ActionExtractor struct {
	table *Table
}

// NewActionExtractor creates an extractor over a compiled action table.
func NewActionExtractor(t *Table) *ActionExtractor {
	return &ActionExtractor{table: t}
}

// Extract returns every action candidate in one message. Assignee and due
// hint are taken from the full text and shared by all candidates of the
// message.
func (e *ActionExtractor) Extract(text string, meta messageMeta) []ExtractedAction {
	matches := extractFromMessage(text, e.table)
	if len(matches) == 0 {
		return nil
	}

	assignee := e.assignee(text)
	due := e.due(text)

	actions := make([]ExtractedAction, 0, len(matches))
	for _, m := range matches {
		actions = append(actions, ExtractedAction{
			Title:           capitalizeFirst(m.clause),
			SourceMessageID: meta.ID,
			Timestamp:       meta.Timestamp,
			SenderID:        meta.SenderID,
			SenderName:      meta.SenderName,
			Assignee:        assignee,
			DueHint:         due,
			Confidence:      m.confidence,
		})
	}
	return actions
}

func (e *ActionExtractor) assignee(text string) string {
	if e.table.assignee == nil {
		return ""
	}
	sub := e.table.assignee.FindStringSubmatch(text)
	if len(sub) < 2 {
		return ""
	}
	return sub[1]
}

func (e *ActionExtractor) due(text string) string {
	if e.table.due == nil {
		return ""
	}
	return strings.TrimSpace(e.table.due.FindString(text))
}
