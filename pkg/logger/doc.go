// Package logger provides the structured logging interface used across fanslydl.
//
// It wraps zerolog behind a small Logger interface so components can accept a
// logger in their constructor and tests can inject NewTestLogger or
// NewNopLogger.
//
//	logger.Initialize(&cfg.Logging)
//	log := logger.WithField("creator", "alice")
//	log.WithError(err).Error("timeline page failed")
package logger
