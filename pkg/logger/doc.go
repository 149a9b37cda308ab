// Package logger provides the structured logging interface used across poscraper.
//
// It wraps zerolog with a small interface so that components can be handed a
// Logger and tests can swap in NewNopLogger or a capturing TestLogger.
//
//	if err := logger.Initialize(&cfg.Logging); err != nil {
//	    return err
//	}
//	log := logger.GetLogger().WithField("doc_type", "po_receive")
//	log.InfoWithFields("Scrape pass started", map[string]interface{}{
//	    "start": 100,
//	    "end":   200,
//	})
//
// Console output is colored and written to stderr; set logging.json for plain
// JSON lines and logging.file to additionally append to a file.
package logger
