package scraper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"poscraper/pkg/config"
	apperrors "poscraper/pkg/errors"
	"poscraper/pkg/extract"
	"poscraper/pkg/logger"
)

// Options configures a Scraper
type Options struct {
	Origin            string
	RecycleEvery      int
	NavigationTimeout time.Duration
	FrameProbeTimeout time.Duration
	MarkerTimeout     time.Duration
	DocumentTimeout   time.Duration
	MaxFrameDepth     int
	Login             LoginOptions
}

// OptionsFromConfig maps the loaded configuration onto scraper options
func OptionsFromConfig(cfg *config.Config) Options {
	login := DefaultLoginOptions()
	login.UsernameSelector = cfg.Site.UsernameSelector
	login.PasswordSelector = cfg.Site.PasswordSelector
	login.SubmitSelector = cfg.Site.SubmitSelector
	login.LoginURLPattern = cfg.Site.LoginURLPattern
	login.NavigationTimeout = cfg.Browser.NavigationTimeout
	login.LoginTimeout = cfg.Browser.LoginTimeout

	return Options{
		Origin:            cfg.Site.Origin,
		RecycleEvery:      cfg.Scrape.RecycleEvery,
		NavigationTimeout: cfg.Browser.NavigationTimeout,
		FrameProbeTimeout: cfg.Browser.FrameProbeTimeout,
		MarkerTimeout:     cfg.Browser.MarkerTimeout,
		DocumentTimeout:   cfg.Browser.DocumentTimeout,
		MaxFrameDepth:     cfg.Browser.MaxFrameDepth,
		Login:             login,
	}
}

// Observer follows a run pass by pass and document by document
type Observer interface {
	PassStarted(docType string, start, end int)
	DocumentDone(docType string, o Outcome)
	PassFinished(d *Dataset)
}

// Scraper runs the per-ID engine for one or more document types sharing a
// single authenticated session
type Scraper struct {
	browser  Browser
	opts     Options
	logger   logger.Logger
	metrics  MetricsRecorder
	observer Observer
	session  *Session
}

// New creates a Scraper driving b
func New(b Browser, opts Options, log logger.Logger) *Scraper {
	if log == nil {
		log = logger.NewNopLogger()
	}
	if opts.RecycleEvery <= 0 {
		opts.RecycleEvery = DefaultRecycleEvery
	}
	return &Scraper{
		browser: b,
		opts:    opts,
		logger:  log,
		metrics: nopMetrics{},
	}
}

// SetMetrics sets the metrics recorder
func (s *Scraper) SetMetrics(m MetricsRecorder) {
	if m != nil {
		s.metrics = m
	}
}

// SetObserver registers a progress observer
func (s *Scraper) SetObserver(o Observer) {
	s.observer = o
}

// Session returns the established session, nil before Login
func (s *Scraper) Session() *Session {
	return s.session
}

// Login establishes the run's session on the document URL for id
func (s *Scraper) Login(ctx context.Context, dt *extract.DocType, id int, creds Credentials) (*Session, error) {
	opts := s.opts.Login
	opts.Logger = s.logger.WithField("component", "session")
	opts.Metrics = s.metrics

	session, err := EstablishSession(ctx, s.browser, dt.URL(s.opts.Origin, id), creds, opts)
	if err != nil {
		return nil, err
	}
	s.session = session
	return session, nil
}

// Scrape runs one document-type pass over [start, end]. On cancellation the
// partial dataset is returned together with the context error.
func (s *Scraper) Scrape(ctx context.Context, dt *extract.DocType, start, end int) (*Dataset, error) {
	log := s.logger.WithField("doc_type", dt.Name)
	log.InfoWithFields("Scrape pass started", map[string]interface{}{
		"start":         start,
		"end":           end,
		"recycle_every": s.opts.RecycleEvery,
	})
	if s.observer != nil {
		s.observer.PassStarted(dt.Name, start, end)
	}

	began := time.Now()
	it := NewIterator(s.browser, s.loader(dt),
		WithRecycleEvery(s.opts.RecycleEvery),
		WithDocumentTimeout(s.documentTimeout(dt)),
		WithDocType(dt.Name),
		WithLogger(log),
		WithMetrics(s.metrics),
		WithProgress(func(o Outcome) {
			if s.observer != nil {
				s.observer.DocumentDone(dt.Name, o)
			}
		}),
	)

	result, err := it.Iterate(ctx, start, end)
	if result == nil {
		return nil, err
	}

	dataset := &Dataset{
		Type:     dt.Name,
		Columns:  dt.Columns(),
		Records:  result.Records,
		Outcomes: result.Outcomes,
	}

	sum := result.Summary()
	logger.LogPassSummary(log, dt.Name, sum.Succeeded, sum.Empty, sum.Failed, sum.Records, time.Since(began))
	if s.observer != nil {
		s.observer.PassFinished(dataset)
	}

	return dataset, err
}

// documentTimeout is the overall budget for one ID. When unset it covers
// navigation, the settle delay, both frame probes and the marker wait.
func (s *Scraper) documentTimeout(dt *extract.DocType) time.Duration {
	if s.opts.DocumentTimeout > 0 {
		return s.opts.DocumentTimeout
	}
	return s.opts.NavigationTimeout + dt.Settle + 2*s.opts.FrameProbeTimeout + s.opts.MarkerTimeout
}

// Run logs in once and then scrapes each document type in turn over the same
// range, each pass on its own surfaces. Datasets completed before a fatal
// error or cancellation are returned along with it.
func (s *Scraper) Run(ctx context.Context, creds Credentials, types []*extract.DocType, start, end int) ([]*Dataset, error) {
	if len(types) == 0 {
		return nil, apperrors.New(apperrors.ErrorTypeConfig, "no document types selected")
	}
	if start > end {
		return nil, apperrors.New(apperrors.ErrorTypeConfig, fmt.Sprintf("invalid range: start %d exceeds end %d", start, end))
	}

	if _, err := s.Login(ctx, types[0], start, creds); err != nil {
		return nil, fmt.Errorf("establish session: %w", err)
	}

	datasets := make([]*Dataset, 0, len(types))
	for _, dt := range types {
		dataset, err := s.Scrape(ctx, dt, start, end)
		if dataset != nil {
			datasets = append(datasets, dataset)
		}
		if err != nil {
			return datasets, fmt.Errorf("scrape %s: %w", dt.Name, err)
		}
	}
	return datasets, nil
}

// loader builds the per-ID processor for a document type: navigate, let the
// page settle, find the content frame, snapshot it and extract records.
func (s *Scraper) loader(dt *extract.DocType) LoadFunc {
	resolve := ResolveOptions{
		ProbeTimeout:  s.opts.FrameProbeTimeout,
		MarkerTimeout: s.opts.MarkerTimeout,
		MaxDepth:      s.opts.MaxFrameDepth,
	}

	return func(ctx context.Context, surface Surface, id int) ([]extract.Record, error) {
		url := dt.URL(s.opts.Origin, id)

		navCtx, cancel := context.WithTimeout(ctx, s.opts.NavigationTimeout)
		err := surface.Navigate(navCtx, url)
		cancel()
		if err != nil {
			return nil, withID(stepError(ctx, err, apperrors.ErrorTypeNavigation, "navigate "+url), id)
		}

		if dt.Settle > 0 {
			select {
			case <-time.After(dt.Settle):
			case <-ctx.Done():
				return nil, apperrors.Wrap(apperrors.ErrorTypeTimeout, ctx.Err(), "settle").WithID(id)
			}
		}

		frame, err := ResolveFrame(ctx, surface, dt.Marker, resolve)
		if err != nil {
			return nil, withID(err, id)
		}

		markup, err := frame.HTML(ctx)
		if err != nil {
			return nil, withID(stepError(ctx, err, apperrors.ErrorTypeNavigation, "snapshot frame "+frame.Name()), id)
		}

		return dt.Extract(id, markup)
	}
}

// stepError types a failed browser step. A dead surface keeps its own type,
// and anything that failed past a deadline is a timeout.
func stepError(ctx context.Context, err error, t apperrors.ErrorType, message string) error {
	switch {
	case apperrors.Is(err, apperrors.ErrorTypeSurface):
		return err
	case errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil:
		return apperrors.Wrap(apperrors.ErrorTypeTimeout, err, message)
	default:
		return apperrors.Wrap(t, err, message)
	}
}

func withID(err error, id int) error {
	var typed *apperrors.Error
	if errors.As(err, &typed) && !typed.HasID() {
		return typed.WithID(id)
	}
	return err
}
