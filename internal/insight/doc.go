// Package insight extracts action items, decisions, and priority signals
// from a window of conversation messages.
//
// Extraction is rule based. Each category owns a RuleSet: an ordered list
// of marker/clause patterns, a set of exclusion patterns that short-circuit
// a message, and a confidence tier table keyed on the matched marker.
// Candidates from every message are aggregated, sorted by confidence and
// recency, deduplicated with a category-specific similarity metric, and
// filtered to confidence above 0.5.
//
// Results are cached per conversation, category, and calendar day through
// an injected CacheStore. An optional refinement bridge rewrites results
// through an external service and falls back to the originals on failure.
//
// Priority scoring is stateless and works on a single message text.
package insight
