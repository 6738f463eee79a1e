package insight

import (
	"math"
	"slices"

	"github.com/fyrsmithlabs/insightd/internal/similarity"
)

// Aggregation thresholds.
const (
	// ConfidenceTolerance is the band inside which two confidences sort as
	// equal and recency decides.
	ConfidenceTolerance = 0.05
	// MinConfidence is the exclusive lower bound of returned confidence.
	MinConfidence = 0.5
	// ActionDuplicateThreshold is the title similarity above which two
	// actions of the same message are duplicates.
	ActionDuplicateThreshold = 0.8
	// DecisionDuplicateThreshold is the word overlap above which two
	// decisions are duplicates.
	DecisionDuplicateThreshold = 0.7
)

// floatEpsilon absorbs rounding so tiers exactly 0.05 apart fall inside
// the tolerance band.
const floatEpsilon = 1e-9

var (
	actionMetric   similarity.Metric = similarity.EditDistanceRatio{}
	decisionMetric similarity.Metric = similarity.JaccardWordOverlap{}
)

// compareRanked orders by confidence descending, treating confidences
// within the tolerance band as equal, then by timestamp descending.
func compareRanked(confA, confB float64, tsA, tsB int64) int {
	if math.Abs(confA-confB) > ConfidenceTolerance+floatEpsilon {
		if confA > confB {
			return -1
		}
		return 1
	}
	switch {
	case tsA > tsB:
		return -1
	case tsA < tsB:
		return 1
	default:
		return 0
	}
}

// AggregateActions sorts, deduplicates, and filters action candidates.
// The order of these steps matters: dedup keeps the first occurrence, which
// after sorting is the best scored.
func AggregateActions(candidates []ExtractedAction) []ExtractedAction {
	sorted := slices.Clone(candidates)
	slices.SortStableFunc(sorted, func(a, b ExtractedAction) int {
		return compareRanked(a.Confidence, b.Confidence, a.Timestamp, b.Timestamp)
	})
	return filterConfidence(DedupeActions(sorted), func(a ExtractedAction) float64 { return a.Confidence })
}

// AggregateDecisions sorts, deduplicates, and filters decision candidates.
func AggregateDecisions(candidates []ExtractedDecision) []ExtractedDecision {
	sorted := slices.Clone(candidates)
	slices.SortStableFunc(sorted, func(a, b ExtractedDecision) int {
		return compareRanked(a.Confidence, b.Confidence, a.Timestamp, b.Timestamp)
	})
	return filterConfidence(DedupeDecisions(sorted), func(d ExtractedDecision) float64 { return d.Confidence })
}

// DedupeActions drops an action when an earlier kept action from the same
// source message has a title similarity above ActionDuplicateThreshold.
// Actions from different messages are never compared.
func DedupeActions(actions []ExtractedAction) []ExtractedAction {
	kept := make([]ExtractedAction, 0, len(actions))
	bySource := make(map[string][]string)
	for _, a := range actions {
		if isDuplicate(actionMetric, a.Title, bySource[a.SourceMessageID], ActionDuplicateThreshold) {
			continue
		}
		kept = append(kept, a)
		bySource[a.SourceMessageID] = append(bySource[a.SourceMessageID], a.Title)
	}
	return kept
}

// DedupeDecisions drops a decision when any earlier kept decision has a
// word overlap above DecisionDuplicateThreshold, regardless of source.
func DedupeDecisions(decisions []ExtractedDecision) []ExtractedDecision {
	kept := make([]ExtractedDecision, 0, len(decisions))
	var contents []string
	for _, d := range decisions {
		if isDuplicate(decisionMetric, d.Content, contents, DecisionDuplicateThreshold) {
			continue
		}
		kept = append(kept, d)
		contents = append(contents, d.Content)
	}
	return kept
}

func isDuplicate(m similarity.Metric, text string, seen []string, threshold float64) bool {
	for _, s := range seen {
		if m.Similarity(text, s) > threshold {
			return true
		}
	}
	return false
}

func filterConfidence[T any](items []T, confidence func(T) float64) []T {
	out := make([]T, 0, len(items))
	for _, it := range items {
		if confidence(it) > MinConfidence {
			out = append(out, it)
		}
	}
	return out
}
