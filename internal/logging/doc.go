// Package logging builds the service's zap logger.
//
// The root logger is a plain *zap.Logger so services can take one directly.
// This package adds:
//   - a Trace level below Debug
//   - stdout and OpenTelemetry outputs
//   - conversation and request correlation carried on context.Context
//   - key and pattern based redaction in the stdout encoder
//   - level-aware sampling where errors are never dropped
//
// Typical use:
//
//	cfg, err := logging.FromSettings(appCfg.Logging)
//	logger, err := logging.New(cfg, otelProvider)
//	defer logging.Sync(logger)
//
//	ctx = logging.WithConversationID(ctx, id)
//	logging.With(ctx, logger).Info("extraction finished", zap.Int("count", n))
package logging
