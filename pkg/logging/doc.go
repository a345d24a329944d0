// Package logging configures the structured loggers used by mockresolver.
//
// It wraps log/slog so every component logs the same way. Components accept
// a *slog.Logger through an option; when none is given they use Nop.
//
//	logger := logging.New(logging.Config{
//	    Level:  logging.LevelInfo,
//	    Format: logging.FormatText,
//	})
//	logger.Info("server started", "addr", ":4280")
//
// Text output suits a terminal; JSON suits log aggregation. Config.Tee adds a
// second, always-JSON destination alongside the primary one.
package logging
