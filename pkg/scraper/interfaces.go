package scraper

import (
	"context"
	"time"
)

// Browser creates render surfaces that share one authentication context
type Browser interface {
	NewSurface(ctx context.Context) (Surface, error)
}

// Surface is a single disposable tab used to load a sequence of documents
type Surface interface {
	// ID is the surface's identity token, unique for the browser's lifetime
	ID() string
	// Navigate returns once the navigation has committed
	Navigate(ctx context.Context, url string) error
	URL(ctx context.Context) (string, error)
	Main() Frame
	Close() error
}

// Frame is one rendering context of a loaded page: the top-level document or
// a nested (i)frame
type Frame interface {
	Name() string
	// Visible waits up to timeout for selector to match a visible element.
	// A zero timeout checks once.
	Visible(ctx context.Context, selector string, timeout time.Duration) (bool, error)
	// Count returns the number of matches without waiting
	Count(ctx context.Context, selector string) (int, error)
	WaitAttached(ctx context.Context, selector string, timeout time.Duration) error
	// HTML returns a snapshot of the frame's markup with live form values
	// written back into the value attributes
	HTML(ctx context.Context) (string, error)
	Fill(ctx context.Context, selector, value string) error
	Click(ctx context.Context, selector string) error
	Children(ctx context.Context) ([]Frame, error)
}

// MetricsRecorder receives scrape events for instrumentation
type MetricsRecorder interface {
	DocumentProcessed(docType string, status Status, elapsed time.Duration)
	RecordsExtracted(docType string, n int)
	SurfaceCreated(docType string)
	SurfaceRecycled(docType string)
	LoginCompleted(result string)
}

type nopMetrics struct{}

func (nopMetrics) DocumentProcessed(string, Status, time.Duration) {}
func (nopMetrics) RecordsExtracted(string, int)                    {}
func (nopMetrics) SurfaceCreated(string)                           {}
func (nopMetrics) SurfaceRecycled(string)                          {}
func (nopMetrics) LoginCompleted(string)                           {}
