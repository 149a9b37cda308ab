package storage

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"poscraper/pkg/scraper"
)

// Supported output formats
const (
	FormatCSV  = "csv"
	FormatJSON = "json"
)

// Manager writes Result Datasets to the output directory
type Manager struct {
	outputDir   string
	format      string
	timestamped bool
	now         func() time.Time

	mu      sync.Mutex
	written []string
}

// NewManager creates the output directory and a manager writing format
func NewManager(outputDir, format string, timestamped bool) (*Manager, error) {
	if format != FormatCSV && format != FormatJSON {
		return nil, fmt.Errorf("unsupported output format %q", format)
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	return &Manager{
		outputDir:   outputDir,
		format:      format,
		timestamped: timestamped,
		now:         time.Now,
	}, nil
}

// FileName returns the file a dataset of docType is written to:
// {docType}_{YYYYMMDD_HHMMSS}.{ext}, or {docType}.{ext} when not timestamped.
func (m *Manager) FileName(docType string) string {
	ext := "csv"
	if m.format == FormatJSON {
		ext = "jsonl"
	}
	if !m.timestamped {
		return fmt.Sprintf("%s.%s", docType, ext)
	}
	return fmt.Sprintf("%s_%s.%s", docType, m.now().Format("20060102_150405"), ext)
}

// SaveDataset writes ds atomically and returns the final path. Datasets
// without records are still written so a run leaves one file per type.
func (m *Manager) SaveDataset(ds *scraper.Dataset) (string, error) {
	if ds == nil {
		return "", fmt.Errorf("nil dataset")
	}

	filename := filepath.Join(m.outputDir, m.FileName(ds.Type))
	tempFile := filename + ".tmp"

	out, err := os.Create(tempFile)
	if err != nil {
		return "", fmt.Errorf("failed to create temporary file: %w", err)
	}

	w := bufio.NewWriter(out)
	switch m.format {
	case FormatJSON:
		err = writeJSONLines(w, ds)
	default:
		err = writeCSV(w, ds)
	}
	if err == nil {
		err = w.Flush()
	}
	closeErr := out.Close()

	if err != nil {
		os.Remove(tempFile)
		return "", fmt.Errorf("failed to write %s dataset: %w", ds.Type, err)
	}
	if closeErr != nil {
		os.Remove(tempFile)
		return "", fmt.Errorf("failed to close file: %w", closeErr)
	}

	if err := os.Rename(tempFile, filename); err != nil {
		os.Remove(tempFile)
		return "", fmt.Errorf("failed to rename temporary file: %w", err)
	}

	m.mu.Lock()
	m.written = append(m.written, filename)
	m.mu.Unlock()

	return filename, nil
}

func writeCSV(w io.Writer, ds *scraper.Dataset) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ds.Columns); err != nil {
		return err
	}
	if err := cw.WriteAll(ds.Rows()); err != nil {
		return err
	}
	return cw.Error()
}

// writeJSONLines writes one object per record. Columns absent from a record
// are written as empty strings so every line has the same keys.
func writeJSONLines(w io.Writer, ds *scraper.Dataset) error {
	enc := json.NewEncoder(w)
	for _, row := range ds.Rows() {
		obj := make(map[string]string, len(ds.Columns))
		for i, col := range ds.Columns {
			obj[col] = row[i]
		}
		if err := enc.Encode(obj); err != nil {
			return err
		}
	}
	return nil
}

// GetOutputDir returns the output directory path
func (m *Manager) GetOutputDir() string {
	return m.outputDir
}

// Written returns the paths written so far, in order
func (m *Manager) Written() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.written...)
}
