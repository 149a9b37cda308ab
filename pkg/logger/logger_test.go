package logger

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"poscraper/pkg/config"
)

func newBufferLogger(t *testing.T, level string) (Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	l, err := NewWithWriter(&buf, level)
	require.NoError(t, err)
	return l, &buf
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.LoggingConfig
		wantErr bool
	}{
		{"info level", &config.LoggingConfig{Level: "info"}, false},
		{"debug json", &config.LoggingConfig{Level: "debug", JSON: true}, false},
		{"invalid level", &config.LoggingConfig{Level: "invalid"}, true},
		{"file output", &config.LoggingConfig{Level: "info", File: filepath.Join(t.TempDir(), "logs", "run.log")}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, l)
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected zerolog.Level
		wantErr  bool
	}{
		{"debug", zerolog.DebugLevel, false},
		{"INFO", zerolog.InfoLevel, false},
		{"warning", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"disabled", zerolog.Disabled, false},
		{"verbose", zerolog.InfoLevel, true},
		{"", zerolog.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			level, err := parseLogLevel(tt.level)
			assert.Equal(t, tt.wantErr, err != nil)
			assert.Equal(t, tt.expected, level)
		})
	}
}

func TestLevelFiltering(t *testing.T) {
	l, buf := newBufferLogger(t, "warn")

	l.Debug("hidden debug")
	l.Info("hidden info")
	l.Warn("visible warn")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "visible warn")
	assert.Contains(t, out, `"app":"poscraper"`)
}

func TestFieldChaining(t *testing.T) {
	l, buf := newBufferLogger(t, "debug")

	l.WithField("doc_type", "po_receive").
		WithFields(map[string]interface{}{"id": 101, "surface": "T1"}).
		WithError(errors.New("marker wait timed out")).
		Warn("Document failed")

	out := buf.String()
	assert.Contains(t, out, `"doc_type":"po_receive"`)
	assert.Contains(t, out, `"id":101`)
	assert.Contains(t, out, `"surface":"T1"`)
	assert.Contains(t, out, `"error":"marker wait timed out"`)
}

func TestWithErrorNil(t *testing.T) {
	l, _ := newBufferLogger(t, "info")
	assert.Same(t, l, l.WithError(nil))
}

func TestFieldTypes(t *testing.T) {
	l, buf := newBufferLogger(t, "info")

	l.InfoWithFields("all types", map[string]interface{}{
		"int64":    int64(456),
		"float":    3.5,
		"bool":     true,
		"time":     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		"duration": 5 * time.Second,
		"strings":  []string{"a", "b"},
		"ints":     []int{1, 2},
		"custom":   struct{ Name string }{Name: "x"},
	})

	out := buf.String()
	assert.Contains(t, out, `"int64":456`)
	assert.Contains(t, out, `"bool":true`)
	assert.Contains(t, out, `"strings":["a","b"]`)
	assert.Contains(t, out, `"custom":{"Name":"x"}`)
}

func TestLogDocument(t *testing.T) {
	tl := NewTestLogger()

	LogDocument(tl, "po_receive", 100, "T1", "success", 2, nil)
	LogDocument(tl, "po_receive", 101, "T1", "empty", 0, errors.New("frame not found"))
	LogDocument(tl, "po_receive", 102, "T1", "failed", 0, errors.New("timeout"))

	msgs := tl.GetMessages()
	require.Len(t, msgs, 3)
	assert.Equal(t, "DEBUG", msgs[0].Level)
	assert.Equal(t, 2, msgs[0].Fields["records"])
	assert.Equal(t, "DEBUG", msgs[1].Level)
	assert.Equal(t, "WARN", msgs[2].Level)
	assert.Equal(t, 102, msgs[2].Fields["id"])
	assert.EqualError(t, msgs[2].Error, "timeout")
}

func TestLogProgressAndSummary(t *testing.T) {
	l, buf := newBufferLogger(t, "info")

	LogProgress(l, "tl_receive", 25, 100, 40)
	LogRecycle(l, "tl_receive", "T1", "T2", 50)
	LogPassSummary(l, "tl_receive", 90, 8, 2, 180, 3*time.Minute)

	out := buf.String()
	assert.Contains(t, out, `"percentage":"25.0%"`)
	assert.Contains(t, out, `"new_surface":"T2"`)
	assert.Contains(t, out, `"failed":2`)
	assert.Equal(t, 3, strings.Count(out, "\n"))
}

func TestTestLoggerSharesStore(t *testing.T) {
	tl := NewTestLogger()
	child := tl.WithField("component", "iterator").WithFields(map[string]interface{}{"id": 7})
	child.Info("child message")
	tl.Error("parent message")

	assert.True(t, tl.HasMessage("child message"))
	assert.True(t, tl.HasError())

	infos := tl.GetMessagesByLevel("INFO")
	require.Len(t, infos, 1)
	assert.Equal(t, "iterator", infos[0].Fields["component"])
	assert.Equal(t, 7, infos[0].Fields["id"])

	tl.Clear()
	assert.Empty(t, tl.GetMessages())
}

func TestGlobalLogger(t *testing.T) {
	require.NoError(t, Initialize(&config.LoggingConfig{Level: "disabled"}))
	assert.NotNil(t, GetLogger())

	Debug("debug message")
	Info("info message")
	WithField("key", "value").Info("with field")
	WithError(errors.New("x")).Error("with error")
}
