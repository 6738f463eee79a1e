package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/insightd/internal/insight"
	"github.com/fyrsmithlabs/insightd/internal/logging"
)

type extractInput struct {
	ConversationID string `json:"conversation_id" jsonschema:"Conversation to analyze"`
	ForceRefresh   bool   `json:"force_refresh,omitempty" jsonschema:"Bypass today's cached result"`
}

type conversationInput struct {
	ConversationID string `json:"conversation_id" jsonschema:"Conversation to analyze"`
}

type scoreInput struct {
	Text string `json:"text" jsonschema:"Message text to score"`
}

type actionsOutput struct {
	ConversationID string                    `json:"conversation_id"`
	Actions        []insight.ExtractedAction `json:"actions"`
	Count          int                       `json:"count"`
}

type decisionsOutput struct {
	ConversationID string                      `json:"conversation_id"`
	Decisions      []insight.ExtractedDecision `json:"decisions"`
	Count          int                         `json:"count"`
}

type prioritiesOutput struct {
	ConversationID string                    `json:"conversation_id"`
	Messages       []insight.PriorityMessage `json:"messages"`
	Count          int                       `json:"count"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "extract_actions",
		Description: "Extract action items (commitments, todos, requests) from the recent messages of a conversation. Results are cached per day unless force_refresh is set.",
	}, instrument(s, "extract_actions", s.extractActions))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "extract_decisions",
		Description: "Extract decisions (agreements, confirmations, plans) from the recent messages of a conversation. Results are cached per day unless force_refresh is set.",
	}, instrument(s, "extract_decisions", s.extractDecisions))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "priority_messages",
		Description: "List the urgent and high priority messages of a conversation, highest score first.",
	}, instrument(s, "priority_messages", s.priorityMessages))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "score_priority",
		Description: "Score the priority of a single message text and explain the score.",
	}, instrument(s, "score_priority", s.scorePriority))
}

// instrument wraps a tool handler with metrics and logging.
func instrument[In, Out any](s *Server, name string, h mcp.ToolHandlerFor[In, Out]) mcp.ToolHandlerFor[In, Out] {
	return func(ctx context.Context, req *mcp.CallToolRequest, in In) (*mcp.CallToolResult, Out, error) {
		start := time.Now()
		s.metrics.IncrementActive(ctx, name)
		defer s.metrics.DecrementActive(ctx, name)

		res, out, err := h(ctx, req, in)
		s.metrics.RecordInvocation(ctx, name, time.Since(start), err)
		if err != nil {
			logging.With(ctx, s.logger).Warn("tool call failed", zap.String("tool", name), zap.Error(err))
		}
		return res, out, err
	}
}

func (s *Server) extractActions(ctx context.Context, _ *mcp.CallToolRequest, in extractInput) (*mcp.CallToolResult, actionsOutput, error) {
	items, err := s.engine.ExtractActions(ctx, in.ConversationID, in.ForceRefresh)
	if err != nil {
		return nil, actionsOutput{}, fmt.Errorf("extract actions: %w", err)
	}
	if items == nil {
		items = []insight.ExtractedAction{}
	}
	out := actionsOutput{ConversationID: in.ConversationID, Actions: items, Count: len(items)}
	return textResult(fmt.Sprintf("Found %d action items.", out.Count)), out, nil
}

func (s *Server) extractDecisions(ctx context.Context, _ *mcp.CallToolRequest, in extractInput) (*mcp.CallToolResult, decisionsOutput, error) {
	items, err := s.engine.ExtractDecisions(ctx, in.ConversationID, in.ForceRefresh)
	if err != nil {
		return nil, decisionsOutput{}, fmt.Errorf("extract decisions: %w", err)
	}
	if items == nil {
		items = []insight.ExtractedDecision{}
	}
	out := decisionsOutput{ConversationID: in.ConversationID, Decisions: items, Count: len(items)}
	return textResult(fmt.Sprintf("Found %d decisions.", out.Count)), out, nil
}

func (s *Server) priorityMessages(ctx context.Context, _ *mcp.CallToolRequest, in conversationInput) (*mcp.CallToolResult, prioritiesOutput, error) {
	items, err := s.engine.PriorityMessages(ctx, in.ConversationID)
	if err != nil {
		return nil, prioritiesOutput{}, fmt.Errorf("priority messages: %w", err)
	}
	if items == nil {
		items = []insight.PriorityMessage{}
	}
	out := prioritiesOutput{ConversationID: in.ConversationID, Messages: items, Count: len(items)}
	return textResult(fmt.Sprintf("Found %d priority messages.", out.Count)), out, nil
}

func (s *Server) scorePriority(_ context.Context, _ *mcp.CallToolRequest, in scoreInput) (*mcp.CallToolResult, insight.PriorityResult, error) {
	result := s.engine.ScorePriority(in.Text)
	return textResult(fmt.Sprintf("Priority %s (score %d).", result.Level, result.Score)), result, nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}
