package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"poscraper/pkg/scraper"
)

const (
	ProgressBar   = "█"
	ProgressEmpty = "░"
	barWidth      = 20
)

// StatusTracker prints per-pass progress for a scrape. It implements
// scraper.Observer.
type StatusTracker struct {
	mu sync.Mutex

	docType   string
	total     int
	processed int
	records   int
	summary   scraper.Summary
	StartTime time.Time

	// Verbose prints a line per failed document instead of only the bar
	Verbose bool
}

var _ scraper.Observer = (*StatusTracker)(nil)

func NewStatusTracker() *StatusTracker {
	return &StatusTracker{StartTime: time.Now()}
}

func (st *StatusTracker) PassStarted(docType string, start, end int) {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.docType = docType
	st.total = end - start + 1
	st.processed = 0
	st.records = 0
	st.summary = scraper.Summary{}
	st.StartTime = time.Now()

	fmt.Fprintf(Output, "\n%s %s %s\n", Magenta("[SCANNING]"), Yellow(docType), Dim(fmt.Sprintf("IDs %d..%d", start, end)))
}

func (st *StatusTracker) DocumentDone(docType string, o scraper.Outcome) {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.processed++
	st.records += len(o.Records)
	switch o.Status {
	case scraper.StatusSuccess:
		st.summary.Succeeded++
	case scraper.StatusEmpty:
		st.summary.Empty++
	case scraper.StatusFailed:
		st.summary.Failed++
		if st.Verbose {
			fmt.Fprintf(Output, "\n%s %d: %s\n", Red("[FAILED]"), o.ID, o.Reason())
		}
	}
	st.summary.Records = st.records

	fmt.Fprintf(Output, "\r%s %s", Green("[EXTRACTED]"), st.progressLine())
}

func (st *StatusTracker) PassFinished(d *scraper.Dataset) {
	st.mu.Lock()
	defer st.mu.Unlock()

	s := d.Summary()
	fmt.Fprintf(Output, "\n%s %s: %d records from %d documents (%d empty, %d failed) in %s\n",
		Cyan("[DONE]"), d.Type, s.Records, s.Succeeded, s.Empty, s.Failed,
		time.Since(st.StartTime).Round(time.Second))
}

// GetProgress returns the bar for the current pass
func (st *StatusTracker) GetProgress() string {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.progressLine()
}

func (st *StatusTracker) progressLine() string {
	filled := 0
	if st.total > 0 {
		filled = st.processed * barWidth / st.total
	}
	if filled > barWidth {
		filled = barWidth
	}

	bar := strings.Repeat(ProgressBar, filled) + strings.Repeat(ProgressEmpty, barWidth-filled)
	return fmt.Sprintf("[%s] %d/%d | records: %d | failed: %d", bar, st.processed, st.total, st.records, st.summary.Failed)
}

// Summary returns the tallies of the current pass
func (st *StatusTracker) Summary() scraper.Summary {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.summary
}

// GetElapsedTime returns the time since the current pass started
func (st *StatusTracker) GetElapsedTime() time.Duration {
	st.mu.Lock()
	defer st.mu.Unlock()
	return time.Since(st.StartTime)
}

// GetRate returns documents processed per minute in the current pass
func (st *StatusTracker) GetRate() float64 {
	st.mu.Lock()
	defer st.mu.Unlock()
	elapsed := time.Since(st.StartTime).Minutes()
	if elapsed == 0 {
		return 0
	}
	return float64(st.processed) / elapsed
}
