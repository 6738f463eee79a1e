// Package mcp exposes the insight engine as Model Context Protocol tools.
//
// Tools:
//   - extract_actions: action items of a conversation
//   - extract_decisions: decisions of a conversation
//   - priority_messages: urgent and high priority messages of a conversation
//   - score_priority: priority of a single text
//
// The server speaks MCP over stdio and is started by `insightd mcp`.
package mcp
