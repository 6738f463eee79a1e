package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/insightd/internal/mcp"
)

// runMCP serves the engine as MCP tools on stdio. Logs go to stderr
// because stdout carries the protocol.
func runMCP(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cfg, zapcore.Lock(os.Stderr))
	if err != nil {
		return err
	}
	defer a.close(context.Background())

	server, err := mcp.NewServer(&mcp.Config{
		Name:    "insightd",
		Version: version,
		Logger:  a.logger,
	}, a.engine)
	if err != nil {
		return fmt.Errorf("failed to create mcp server: %w", err)
	}
	return server.Run(ctx)
}
