package scraper

import (
	"context"
	"fmt"
	"time"

	apperrors "poscraper/pkg/errors"
	"poscraper/pkg/extract"
	"poscraper/pkg/logger"
)

// DefaultRecycleEvery is the number of documents a surface serves before it
// is closed and replaced
const DefaultRecycleEvery = 50

// LoadFunc processes one document ID on the given surface
type LoadFunc func(ctx context.Context, s Surface, id int) ([]extract.Record, error)

// ProgressFunc is called after every ID with its outcome
type ProgressFunc func(o Outcome)

// Iterator walks an ID range in ascending order on a recycled render surface
type Iterator struct {
	browser      Browser
	load         LoadFunc
	recycleEvery int
	docTimeout   time.Duration
	docType      string
	logger       logger.Logger
	metrics      MetricsRecorder
	progress     ProgressFunc
}

// IteratorOption configures an Iterator
type IteratorOption func(*Iterator)

// WithRecycleEvery sets the surface recycling cadence
func WithRecycleEvery(n int) IteratorOption {
	return func(it *Iterator) {
		if n > 0 {
			it.recycleEvery = n
		}
	}
}

// WithDocumentTimeout bounds all work on a single ID. Zero leaves each step
// to its own timeout.
func WithDocumentTimeout(d time.Duration) IteratorOption {
	return func(it *Iterator) {
		if d > 0 {
			it.docTimeout = d
		}
	}
}

// WithLogger sets the iterator's logger
func WithLogger(l logger.Logger) IteratorOption {
	return func(it *Iterator) { it.logger = l }
}

// WithMetrics sets the metrics recorder
func WithMetrics(m MetricsRecorder) IteratorOption {
	return func(it *Iterator) { it.metrics = m }
}

// WithProgress registers a per-ID progress callback
func WithProgress(fn ProgressFunc) IteratorOption {
	return func(it *Iterator) { it.progress = fn }
}

// WithDocType labels logs and metrics with a document type name
func WithDocType(name string) IteratorOption {
	return func(it *Iterator) { it.docType = name }
}

// NewIterator creates an Iterator that runs load for every ID
func NewIterator(b Browser, load LoadFunc, opts ...IteratorOption) *Iterator {
	it := &Iterator{
		browser:      b,
		load:         load,
		recycleEvery: DefaultRecycleEvery,
		logger:       logger.NewNopLogger(),
		metrics:      nopMetrics{},
	}
	for _, opt := range opts {
		opt(it)
	}
	return it
}

// Iterate processes every ID in [start, end]. Per-ID failures are logged and
// recorded in the result's outcomes; they never stop the loop. Cancellation
// of ctx is honoured between IDs, in which case the partial result is
// returned together with ctx.Err(). Failing to create a surface is fatal.
func (it *Iterator) Iterate(ctx context.Context, start, end int) (*Result, error) {
	if start > end {
		return nil, apperrors.New(apperrors.ErrorTypeConfig, fmt.Sprintf("invalid range: start %d exceeds end %d", start, end))
	}

	result := &Result{}
	// an ID that has started runs to completion with its own timeouts
	work := context.WithoutCancel(ctx)

	var (
		surface Surface
		used    int
	)
	defer func() {
		it.closeSurface(surface)
	}()

	for id := start; id <= end; id++ {
		if err := ctx.Err(); err != nil {
			it.logger.WithFields(map[string]interface{}{
				"doc_type": it.docType,
				"next_id":  id,
			}).Warn("Scrape cancelled")
			return result, err
		}

		if surface == nil || used >= it.recycleEvery {
			next, err := it.replaceSurface(work, surface, used)
			surface = nil
			if err != nil {
				return result, err
			}
			surface, used = next, 0
			result.Surfaces = append(result.Surfaces, surface.ID())
		}

		docCtx, cancel := it.documentContext(work)
		out := processDocument(docCtx, it.load, surface, id)
		cancel()
		used++

		result.Outcomes = append(result.Outcomes, out)
		result.Records = append(result.Records, out.Records...)

		logger.LogDocument(it.logger, it.docType, id, out.Surface, string(out.Status), len(out.Records), out.Err)
		it.metrics.DocumentProcessed(it.docType, out.Status, out.Duration)
		it.metrics.RecordsExtracted(it.docType, len(out.Records))
		if it.progress != nil {
			it.progress(out)
		}
		if n := len(result.Outcomes); n%it.recycleEvery == 0 {
			logger.LogProgress(it.logger, it.docType, n, end-start+1, len(result.Records))
		}

		if out.Status == StatusFailed && needsNewSurface(out.Err) {
			used = it.recycleEvery
		}
	}

	return result, nil
}

func (it *Iterator) documentContext(work context.Context) (context.Context, context.CancelFunc) {
	if it.docTimeout > 0 {
		return context.WithTimeout(work, it.docTimeout)
	}
	return context.WithCancel(work)
}

// needsNewSurface reports whether a failure leaves the surface unusable. A
// dead tab fails every later ID, and a timed-out one may still be blocked on
// the page that hung.
func needsNewSurface(err error) bool {
	return apperrors.Is(err, apperrors.ErrorTypeSurface) || apperrors.Is(err, apperrors.ErrorTypeTimeout)
}

// replaceSurface closes old, if any, before creating its successor
func (it *Iterator) replaceSurface(ctx context.Context, old Surface, used int) (Surface, error) {
	oldID := ""
	if old != nil {
		oldID = old.ID()
		it.closeSurface(old)
	}

	next, err := it.browser.NewSurface(ctx)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrorTypeSurface, err, "create render surface")
	}
	it.metrics.SurfaceCreated(it.docType)

	if old != nil {
		it.metrics.SurfaceRecycled(it.docType)
		logger.LogRecycle(it.logger, it.docType, oldID, next.ID(), used)
	}
	return next, nil
}

func (it *Iterator) closeSurface(s Surface) {
	if s == nil {
		return
	}
	if err := s.Close(); err != nil {
		it.logger.WithError(err).WithField("surface", s.ID()).Warn("Failed to close render surface")
	}
}

// processDocument is the per-ID fault boundary: whatever load does, including
// panicking, comes back as an Outcome.
func processDocument(ctx context.Context, load LoadFunc, s Surface, id int) (out Outcome) {
	began := time.Now()
	out = Outcome{ID: id, Surface: s.ID()}

	defer func() {
		if r := recover(); r != nil {
			out.Status = StatusFailed
			out.Records = nil
			out.Err = apperrors.New(apperrors.ErrorTypeUnknown, fmt.Sprintf("panic: %v", r)).WithID(id)
		}
		out.Duration = time.Since(began)
	}()

	records, err := load(ctx, s, id)
	switch {
	case err != nil && apperrors.Is(err, apperrors.ErrorTypeFrameNotFound):
		out.Status = StatusEmpty
		out.Err = err
	case err != nil:
		out.Status = StatusFailed
		out.Err = err
	case len(records) == 0:
		out.Status = StatusEmpty
	default:
		out.Status = StatusSuccess
		out.Records = records
	}
	return out
}
