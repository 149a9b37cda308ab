// Package metrics provides Prometheus metrics for scrape passes
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"poscraper/pkg/logger"
	"poscraper/pkg/scraper"
)

// Recorder implements scraper.MetricsRecorder on a Prometheus registry
type Recorder struct {
	documentsTotal   *prometheus.CounterVec
	documentDuration *prometheus.HistogramVec
	recordsTotal     *prometheus.CounterVec
	surfacesCreated  *prometheus.CounterVec
	surfacesRecycled *prometheus.CounterVec
	loginsTotal      *prometheus.CounterVec
}

var _ scraper.MetricsRecorder = (*Recorder)(nil)

// NewRecorder registers the scrape metrics on reg. A nil reg uses the
// default Prometheus registerer.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Recorder{
		documentsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "poscraper_documents_total",
				Help: "Total number of documents processed",
			},
			[]string{"doc_type", "status"},
		),
		documentDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "poscraper_document_duration_seconds",
				Help:    "Time taken to navigate to and extract a document",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"doc_type"},
		),
		recordsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "poscraper_records_extracted_total",
				Help: "Total number of records extracted",
			},
			[]string{"doc_type"},
		),
		surfacesCreated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "poscraper_surfaces_created_total",
				Help: "Total number of browser surfaces opened",
			},
			[]string{"doc_type"},
		),
		surfacesRecycled: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "poscraper_surfaces_recycled_total",
				Help: "Total number of browser surfaces closed and replaced",
			},
			[]string{"doc_type"},
		),
		loginsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "poscraper_logins_total",
				Help: "Total number of session establishment attempts",
			},
			[]string{"result"},
		),
	}
}

// DocumentProcessed records one finished document
func (r *Recorder) DocumentProcessed(docType string, status scraper.Status, elapsed time.Duration) {
	r.documentsTotal.WithLabelValues(docType, string(status)).Inc()
	r.documentDuration.WithLabelValues(docType).Observe(elapsed.Seconds())
}

func (r *Recorder) RecordsExtracted(docType string, n int) {
	if n <= 0 {
		return
	}
	r.recordsTotal.WithLabelValues(docType).Add(float64(n))
}

func (r *Recorder) SurfaceCreated(docType string) {
	r.surfacesCreated.WithLabelValues(docType).Inc()
}

func (r *Recorder) SurfaceRecycled(docType string) {
	r.surfacesRecycled.WithLabelValues(docType).Inc()
}

// LoginCompleted records a login attempt by result: success, reused, rejected or error
func (r *Recorder) LoginCompleted(result string) {
	r.loginsTotal.WithLabelValues(result).Inc()
}

// Handler returns the /metrics handler for gatherer
func Handler(gatherer prometheus.Gatherer) http.Handler {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer, log logger.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	log.WithField("addr", addr).Info("Metrics endpoint listening")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
