package logger

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// LogDocument logs the outcome of a single document ID. Failures go out at
// warn, empty documents at debug so that long gaps in a range stay quiet.
func LogDocument(l Logger, docType string, id int, surface, outcome string, records int, err error) {
	fields := map[string]interface{}{
		"doc_type": docType,
		"id":       id,
		"surface":  surface,
		"outcome":  outcome,
		"records":  records,
	}

	switch {
	case err != nil && outcome == "empty":
		l.WithError(err).DebugWithFields("Document has no content", fields)
	case err != nil:
		l.WithError(err).WarnWithFields("Document failed", fields)
	case outcome == "empty":
		l.DebugWithFields("Document empty", fields)
	default:
		l.DebugWithFields("Document extracted", fields)
	}
}

// LogRecycle logs the replacement of a render surface
func LogRecycle(l Logger, docType, oldSurface, newSurface string, used int) {
	l.WithFields(map[string]interface{}{
		"doc_type":    docType,
		"old_surface": oldSurface,
		"new_surface": newSurface,
		"documents":   used,
	}).Info("Render surface recycled")
}

// LogProgress logs batch progress through an ID range
func LogProgress(l Logger, docType string, processed, total, records int) {
	percentage := 0.0
	if total > 0 {
		percentage = float64(processed) / float64(total) * 100
	}

	l.WithFields(map[string]interface{}{
		"doc_type":   docType,
		"processed":  processed,
		"total":      total,
		"records":    records,
		"percentage": fmt.Sprintf("%.1f%%", percentage),
	}).Info("Scrape progress")
}

// LogPassSummary logs the totals of a finished document-type pass
func LogPassSummary(l Logger, docType string, succeeded, empty, failed, records int, elapsed time.Duration) {
	l.WithFields(map[string]interface{}{
		"doc_type":  docType,
		"succeeded": succeeded,
		"empty":     empty,
		"failed":    failed,
		"records":   records,
		"elapsed":   elapsed,
	}).Info("Scrape pass finished")
}

// LogComponentStart logs when a component starts
func LogComponentStart(component string, config map[string]interface{}) {
	logger := GetLogger().WithField("component", component)
	if len(config) > 0 {
		logger = logger.WithFields(config)
	}
	logger.Info("Component started")
}

// LogComponentStop logs when a component stops
func LogComponentStop(component string, reason string) {
	GetLogger().WithFields(map[string]interface{}{
		"component": component,
		"reason":    reason,
	}).Info("Component stopped")
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
