// Package logging builds the service's zap loggers.
//
// Entries go to stdout as JSON (or console text) and, when telemetry is on,
// through the OTEL log bridge as well. Token-like fields and query values
// are redacted before encoding. Sampling applies below Error only.
//
// Level names follow the LOG_LEVEL values operators already use: trace,
// debug, info, warning, error and critical.
//
//	cfg, err := logging.ConfigFromSettings(appCfg.Logging, false)
//	logger, err := logging.NewLogger(cfg, nil)
//	defer logger.Sync()
//
// Request handlers put the request ID on the context. Components that hold
// a plain *zap.Logger attach it with ForContext:
//
//	ctx = logging.WithRequestID(ctx, id)
//	logging.ForContext(ctx, base).Info("search completed", zap.Int("results", n))
//
// Request URIs are logged with URI so post_token never reaches the output.
package logging
