package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	apperrors "poscraper/pkg/errors"
	"poscraper/pkg/logger"
	"poscraper/pkg/scraper"
)

// surface is one Chrome tab
type surface struct {
	page    *rod.Page
	id      string
	router  *rod.HijackRouter
	logger  logger.Logger
	crashed atomic.Bool
	// stopWatch ends the event subscription started by watch
	stopWatch context.CancelFunc
}

// watch follows the tab's events: a renderer crash marks the surface dead,
// and JavaScript dialogs are dismissed so they cannot block later calls.
func (s *surface) watch() {
	ctx, cancel := context.WithCancel(context.Background())
	s.stopWatch = cancel

	wait := s.page.Context(ctx).EachEvent(
		func(e *proto.InspectorTargetCrashed) {
			s.crashed.Store(true)
			s.logger.WithField("surface", s.id).Warn("Render surface crashed")
		},
		func(e *proto.PageJavascriptDialogOpening) {
			s.logger.WithFields(map[string]interface{}{
				"surface": s.id,
				"type":    string(e.Type),
				"message": e.Message,
			}).Debug("Dismissing page dialog")
			go func() {
				_ = proto.PageHandleJavaScriptDialog{Accept: true}.Call(s.page)
			}()
		},
	)
	go wait()
}

// goneMarkers are CDP error fragments meaning the tab no longer exists
var goneMarkers = []string{
	"target closed",
	"target crashed",
	"session with given id not found",
	"no target with given id",
	"cdp connection closed",
}

func isTargetGone(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, m := range goneMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// check types err for the scraper: failures on a dead tab are surface
// errors, which make the iterator replace it
func (s *surface) check(err error, what string) error {
	if err == nil {
		return nil
	}
	if s.crashed.Load() || isTargetGone(err) {
		return apperrors.Wrap(apperrors.ErrorTypeSurface, err, fmt.Sprintf("browser: %s on dead tab %s", what, s.id))
	}
	return fmt.Errorf("browser: %s: %w", what, err)
}

var _ scraper.Surface = (*surface)(nil)

func (s *surface) ID() string { return s.id }

// Navigate returns as soon as the navigation commits; sub-resources may
// still be loading.
func (s *surface) Navigate(ctx context.Context, url string) error {
	if s.crashed.Load() {
		return apperrors.New(apperrors.ErrorTypeSurface, "browser: tab "+s.id+" crashed")
	}
	return s.check(s.page.Context(ctx).Navigate(url), "navigate "+url)
}

func (s *surface) URL(ctx context.Context) (string, error) {
	info, err := s.page.Context(ctx).Info()
	if err != nil {
		return "", s.check(err, "page info")
	}
	return info.URL, nil
}

func (s *surface) Main() scraper.Frame {
	return &frame{page: s.page, name: "main", owner: s}
}

func (s *surface) Close() error {
	if s.stopWatch != nil {
		s.stopWatch()
	}
	var errs []error
	if s.router != nil {
		if err := s.router.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop request router: %w", err))
		}
	}
	if err := s.page.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close tab %s: %w", s.id, err))
	}
	return errors.Join(errs...)
}

const pollInterval = 100 * time.Millisecond

// frame is a rendering context; rod models both the top-level document and
// iframes as pages
type frame struct {
	page  *rod.Page
	name  string
	owner *surface
}

var _ scraper.Frame = (*frame)(nil)

func (f *frame) Name() string { return f.name }

func (f *frame) Visible(ctx context.Context, selector string, timeout time.Duration) (bool, error) {
	deadline := time.Now().Add(timeout)
	for {
		ok, err := f.visibleNow(ctx, selector)
		if err != nil || ok {
			return ok, err
		}
		if !time.Now().Before(deadline) {
			return false, nil
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

func (f *frame) visibleNow(ctx context.Context, selector string) (bool, error) {
	els, err := f.page.Context(ctx).Elements(selector)
	if err != nil {
		return false, f.owner.check(err, "query "+selector)
	}
	for _, el := range els {
		// an element can detach between query and check
		if visible, err := el.Visible(); err == nil && visible {
			return true, nil
		}
	}
	return false, nil
}

func (f *frame) Count(ctx context.Context, selector string) (int, error) {
	els, err := f.page.Context(ctx).Elements(selector)
	if err != nil {
		return 0, f.owner.check(err, "count "+selector)
	}
	return len(els), nil
}

func (f *frame) WaitAttached(ctx context.Context, selector string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	_, err := f.page.Context(ctx).Element(selector)
	return f.owner.check(err, "wait for "+selector)
}

// snapshotJS copies live form state into attributes so the serialized markup
// carries what the user would see
const snapshotJS = `() => {
	document.querySelectorAll('input').forEach(e => e.setAttribute('value', e.value));
	document.querySelectorAll('textarea').forEach(e => { e.textContent = e.value; });
	document.querySelectorAll('select').forEach(s => {
		Array.from(s.options).forEach(o => {
			if (o.selected) { o.setAttribute('selected', 'selected'); } else { o.removeAttribute('selected'); }
		});
	});
	return document.documentElement.outerHTML;
}`

func (f *frame) HTML(ctx context.Context) (string, error) {
	res, err := f.page.Context(ctx).Eval(snapshotJS)
	if err != nil {
		return "", f.owner.check(err, "snapshot "+f.name)
	}
	return res.Value.Str(), nil
}

func (f *frame) Fill(ctx context.Context, selector, value string) error {
	el, err := f.page.Context(ctx).Element(selector)
	if err != nil {
		return err
	}
	if err := el.SelectAllText(); err != nil {
		return err
	}
	return el.Input(value)
}

func (f *frame) Click(ctx context.Context, selector string) error {
	el, err := f.page.Context(ctx).Element(selector)
	if err != nil {
		return err
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

func (f *frame) Children(ctx context.Context) ([]scraper.Frame, error) {
	els, err := f.page.Context(ctx).Elements("iframe, frame")
	if err != nil {
		return nil, f.owner.check(err, "list frames")
	}

	children := make([]scraper.Frame, 0, len(els))
	for i, el := range els {
		fp, err := el.Frame()
		if err != nil {
			continue
		}
		name := fmt.Sprintf("%s/%d", f.name, i)
		if attr, err := el.Attribute("name"); err == nil && attr != nil && *attr != "" {
			name = *attr
		}
		children = append(children, &frame{page: fp, name: name, owner: f.owner})
	}
	return children, nil
}
