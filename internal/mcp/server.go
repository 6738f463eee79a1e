package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/insightd/internal/insight"
)

// Extractor is the engine surface exposed as tools.
type Extractor interface {
	ExtractActions(ctx context.Context, conversationID string, forceRefresh bool) ([]insight.ExtractedAction, error)
	ExtractDecisions(ctx context.Context, conversationID string, forceRefresh bool) ([]insight.ExtractedDecision, error)
	PriorityMessages(ctx context.Context, conversationID string) ([]insight.PriorityMessage, error)
	ScorePriority(text string) insight.PriorityResult
}

// Server serves insight tools over MCP.
type Server struct {
	mcp     *mcp.Server
	engine  Extractor
	metrics *Metrics
	logger  *zap.Logger
}

// Config configures the MCP server.
type Config struct {
	// Name is the implementation name (default: "insightd")
	Name string

	// Version is the server version (default: "dev")
	Version string

	Logger *zap.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Name:    "insightd",
		Version: "dev",
		Logger:  zap.NewNop(),
	}
}

// NewServer creates an MCP server backed by engine.
func NewServer(cfg *Config, engine Extractor) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if engine == nil {
		return nil, fmt.Errorf("engine is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("mcp")

	s := &Server{
		mcp: mcp.NewServer(&mcp.Implementation{
			Name:    cfg.Name,
			Version: cfg.Version,
		}, nil),
		engine:  engine,
		metrics: NewMetrics(logger),
		logger:  logger,
	}
	s.registerTools()
	return s, nil
}

// Run serves on the stdio transport until ctx is done or the client leaves.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting MCP server on stdio transport")
	if err := s.mcp.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("server run failed: %w", err)
	}
	return nil
}
