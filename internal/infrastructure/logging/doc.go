// Package logging provides structured logging using uber/zap.
//
// This package offers production-ready logging with two modes:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Component loggers carry a fixed "component" field so one process's logs
// can be filtered per subsystem.
//
// Example Usage:
//
//	logger := logging.NewDefault()
//	logger.Info("Server starting", zap.String("port", "8000"))
//	logger.Component("fetcher").Warn("fetch failed", zap.Error(err))
package logging
