package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.opentelemetry.io/otel/log/global"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/insightd/internal/cachestore"
	"github.com/fyrsmithlabs/insightd/internal/config"
	"github.com/fyrsmithlabs/insightd/internal/insight"
	"github.com/fyrsmithlabs/insightd/internal/logging"
	"github.com/fyrsmithlabs/insightd/internal/messages"
	"github.com/fyrsmithlabs/insightd/internal/refine"
	"github.com/fyrsmithlabs/insightd/internal/telemetry"
)

// messageStore is a message source that also resolves sender names.
type messageStore interface {
	insight.MessageSource
	insight.SenderDirectory
	Close() error
}

// app holds the initialized dependencies shared by the HTTP and MCP modes.
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	telemetry *telemetry.Telemetry
	messages  messageStore
	cache     cachestore.Store
	engine    *insight.Engine
	watcher   *insight.RulesWatcher
}

// newApp initializes every dependency in order:
//  1. Logger and telemetry
//  2. Message store and cache store
//  3. Refinement client
//  4. Rules and engine
//
// Logs go to logOut. On error everything opened so far is closed.
func newApp(ctx context.Context, cfg *config.Config, logOut zapcore.WriteSyncer) (_ *app, err error) {
	a := &app{cfg: cfg}
	defer func() {
		if err != nil {
			a.close(context.Background())
		}
	}()

	a.logger, err = initLogger(cfg, logOut)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	a.telemetry, err = telemetry.New(ctx, telemetry.FromSettings(cfg.Telemetry, version), a.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	a.messages, err = initMessages(ctx, cfg.Messages, a.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize message store: %w", err)
	}

	cacheCfg := cachestore.Config{
		Provider:      cfg.Cache.Provider,
		MaxEntries:    cfg.Cache.MaxEntries,
		RedisAddr:     cfg.Cache.Redis.Addr,
		RedisPassword: cfg.Cache.Redis.Password.Value(),
		RedisDB:       cfg.Cache.Redis.DB,
		RedisTTL:      cfg.Cache.Redis.TTL,
	}
	if cfg.Cache.Provider == config.ProviderSQLite {
		if cacheCfg.SQLitePath, err = config.DataPath(cfg.Cache.SQLite.Path); err != nil {
			return nil, err
		}
	}
	a.cache, err = cachestore.New(ctx, cacheCfg, a.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cache store: %w", err)
	}

	refiner, err := refine.New(refine.Config{
		Provider:   cfg.Refinement.Provider,
		ServiceURL: cfg.Refinement.ServiceURL,
		APIKey:     cfg.Refinement.APIKey.Value(),
		Model:      cfg.Refinement.Model,
		BaseURL:    cfg.Refinement.BaseURL,
		Timeout:    cfg.Refinement.Timeout,
		RateLimit:  cfg.Refinement.RateLimit,
		Burst:      cfg.Refinement.Burst,
		MaxRetries: cfg.Refinement.MaxRetries,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize refinement client: %w", err)
	}

	if err := a.initEngine(ctx, refiner); err != nil {
		return nil, err
	}

	a.logger.Info("insightd initialized",
		zap.String("messages", cfg.Messages.Provider),
		zap.String("cache", cfg.Cache.Provider),
		zap.String("refinement", cfg.Refinement.Provider),
		zap.Bool("telemetry", a.telemetry.IsEnabled()),
		zap.Bool("rules_watch", a.watcher != nil),
	)
	return a, nil
}

func initLogger(cfg *config.Config, out zapcore.WriteSyncer) (*zap.Logger, error) {
	logCfg, err := logging.FromSettings(cfg.Logging)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = zapcore.Lock(os.Stdout)
	}
	return logging.NewWithWriter(logCfg, out, global.GetLoggerProvider())
}

func initMessages(ctx context.Context, cfg config.MessagesConfig, logger *zap.Logger) (messageStore, error) {
	switch cfg.Provider {
	case config.ProviderPostgres:
		store, err := messages.NewPostgresSource(ctx, cfg.Postgres.DSN.Value())
		if err != nil {
			return nil, err
		}
		if cfg.Postgres.Migrate {
			if err := store.AutoMigrate(ctx); err != nil {
				_ = store.Close()
				return nil, err
			}
		}
		logger.Info("message store ready", zap.String("provider", cfg.Provider))
		return store, nil
	case config.ProviderSQLite:
		path, err := config.DataPath(cfg.SQLite.Path)
		if err != nil {
			return nil, err
		}
		store, err := messages.NewSQLiteStore(ctx, path)
		if err != nil {
			return nil, err
		}
		logger.Info("message store ready", zap.String("provider", cfg.Provider), zap.String("path", path))
		return store, nil
	default:
		return nil, fmt.Errorf("unknown messages provider %q", cfg.Provider)
	}
}

func (a *app) initEngine(ctx context.Context, refiner refine.Client) error {
	ext := a.cfg.Extraction

	rulesPath, err := config.ExpandPath(ext.RulesFile)
	if err != nil {
		return err
	}
	var rules *insight.CompiledRules
	if rulesPath != "" {
		rules, err = insight.LoadRules(rulesPath)
		if err != nil {
			return fmt.Errorf("failed to load rules: %w", err)
		}
	}

	loc, err := ext.Location()
	if err != nil {
		return err
	}

	metrics, err := insight.NewMetrics(a.telemetry.Meter(insight.InstrumentationName))
	if err != nil {
		return fmt.Errorf("failed to create engine metrics: %w", err)
	}

	a.engine, err = insight.NewEngine(insight.Options{
		Source:      a.messages,
		Directory:   a.messages,
		Store:       a.cache,
		Refiner:     refiner,
		Rules:       rules,
		Metrics:     metrics,
		Tracer:      a.telemetry.Tracer(insight.InstrumentationName),
		Logger:      a.logger,
		WindowSize:  ext.WindowSize,
		CachePrefix: ext.CachePrefix,
		Location:    loc,
	})
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}

	if ext.WatchRules {
		a.watcher, err = insight.NewRulesWatcher(rulesPath, a.engine.SetRules, a.logger)
		if err != nil {
			return fmt.Errorf("failed to watch rules: %w", err)
		}
		a.watcher.Start(ctx)
	}
	return nil
}

// close releases resources in reverse order of initialization.
func (a *app) close(ctx context.Context) {
	var errs []error
	if a.watcher != nil {
		a.watcher.Stop()
	}
	if a.cache != nil {
		errs = append(errs, a.cache.Close())
	}
	if a.messages != nil {
		errs = append(errs, a.messages.Close())
	}
	if a.telemetry != nil {
		errs = append(errs, a.telemetry.Shutdown(ctx))
	}
	if a.logger != nil {
		if err := errors.Join(errs...); err != nil {
			a.logger.Warn("shutdown incomplete", zap.Error(err))
		}
		_ = logging.Sync(a.logger)
	}
}
