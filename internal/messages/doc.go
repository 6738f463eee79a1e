// Package messages provides message sources and sender directories backed
// by SQLite or PostgreSQL.
//
// Both backends share one schema: a messages table keyed by message id and
// indexed by (conversation_id, timestamp_ms), and a profiles table mapping
// sender ids to display names.
package messages
