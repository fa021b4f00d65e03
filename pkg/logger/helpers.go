package logger

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// LogRequest logs an API request against the global logger
func LogRequest(method, path string, statusCode int, duration time.Duration) {
	fields := map[string]interface{}{
		"method":      method,
		"path":        path,
		"status_code": statusCode,
		"duration_ms": duration.Milliseconds(),
	}

	switch {
	case statusCode >= 500:
		GetLogger().ErrorWithFields("API request server error", fields)
	case statusCode >= 400:
		GetLogger().WarnWithFields("API request client error", fields)
	default:
		GetLogger().DebugWithFields("API request completed", fields)
	}
}

// LogDownload logs the outcome of a single media download
func LogDownload(l Logger, creator, mediaID, kind, outcome string, err error) {
	entry := l.WithFields(map[string]interface{}{
		"creator":  creator,
		"media_id": mediaID,
		"kind":     kind,
		"outcome":  outcome,
	})

	if err != nil {
		entry.WithError(err).Error("Download failed")
		return
	}
	entry.Debug("Download finished")
}

// LogRateLimit logs rate limiting events
func LogRateLimit(l Logger, path string, retryAfter time.Duration) {
	l.WithFields(map[string]interface{}{
		"path":        path,
		"retry_after": retryAfter,
		"action":      "rate_limited",
	}).Warn("Rate limit reached, backing off")
}

// NewNopLogger creates a no-operation logger for testing
func NewNopLogger() Logger {
	return &nopLogger{}
}

type nopLogger struct{}

func (n *nopLogger) Debug(msg string)                                          {}
func (n *nopLogger) Info(msg string)                                           {}
func (n *nopLogger) Warn(msg string)                                           {}
func (n *nopLogger) Error(msg string)                                          {}
func (n *nopLogger) Fatal(msg string)                                          {}
func (n *nopLogger) WithField(key string, value interface{}) Logger            { return n }
func (n *nopLogger) WithFields(fields map[string]interface{}) Logger           { return n }
func (n *nopLogger) WithError(err error) Logger                                { return n }
func (n *nopLogger) WithContext(ctx context.Context) Logger                    { return n }
func (n *nopLogger) DebugWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) InfoWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) WarnWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) ErrorWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) FatalWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) GetZerolog() *zerolog.Logger                               { return nil }
