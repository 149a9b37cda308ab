package scraper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	apperrors "poscraper/pkg/errors"
)

const fakeOrigin = "https://legacy.test"

// fakeDoc is what the fake site serves for one URL
type fakeDoc struct {
	main   *fakeFrame
	navErr error
	panics bool
}

// fakeFrame answers selector queries by parsing its markup with goquery
type fakeFrame struct {
	name     string
	html     string
	hidden   bool
	children []*fakeFrame
	htmlErr  error
	surface  *fakeSurface
	// hangs makes every query block until its context ends
	hangs bool
}

func (f *fakeFrame) Name() string { return f.name }

func (f *fakeFrame) count(sel string) int {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(f.html))
	if err != nil {
		return 0
	}
	return doc.Find(sel).Length()
}

func (f *fakeFrame) Visible(ctx context.Context, sel string, _ time.Duration) (bool, error) {
	if f.hangs {
		<-ctx.Done()
		return false, ctx.Err()
	}
	if f.hidden {
		return false, nil
	}
	return f.count(sel) > 0, nil
}

func (f *fakeFrame) Count(_ context.Context, sel string) (int, error) {
	return f.count(sel), nil
}

func (f *fakeFrame) WaitAttached(_ context.Context, sel string, _ time.Duration) error {
	if f.count(sel) == 0 {
		return context.DeadlineExceeded
	}
	return nil
}

func (f *fakeFrame) HTML(context.Context) (string, error) {
	return f.html, f.htmlErr
}

func (f *fakeFrame) Fill(_ context.Context, sel, value string) error {
	if f.surface == nil || f.count(sel) == 0 {
		return fmt.Errorf("no element %s", sel)
	}
	f.surface.filled[sel] = value
	return nil
}

func (f *fakeFrame) Click(_ context.Context, sel string) error {
	if f.surface == nil || f.count(sel) == 0 {
		return fmt.Errorf("no element %s", sel)
	}
	f.surface.submitLogin()
	return nil
}

func (f *fakeFrame) Children(context.Context) ([]Frame, error) {
	frames := make([]Frame, len(f.children))
	for i, c := range f.children {
		frames[i] = c
	}
	return frames, nil
}

type navigation struct {
	surface string
	url     string
}

// fakeBrowser serves a fixed site and records how surfaces are used
type fakeBrowser struct {
	mu   sync.Mutex
	docs map[string]*fakeDoc

	requireLogin  bool
	username      string
	password      string
	authenticated bool

	surfaceErr      error
	surfaceErrAfter int

	// tabLifetime kills each surface after that many navigations
	tabLifetime int

	seq         int
	open        int
	maxOpen     int
	surfaces    []*fakeSurface
	navigations []navigation
}

func newFakeBrowser() *fakeBrowser {
	return &fakeBrowser{docs: make(map[string]*fakeDoc)}
}

func (b *fakeBrowser) serve(url string, doc *fakeDoc) {
	b.docs[url] = doc
}

func (b *fakeBrowser) withLogin(username, password string) *fakeBrowser {
	b.requireLogin = true
	b.username = username
	b.password = password
	return b
}

func (b *fakeBrowser) NewSurface(context.Context) (Surface, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.surfaceErr != nil && len(b.surfaces) >= b.surfaceErrAfter {
		return nil, b.surfaceErr
	}

	b.seq++
	s := &fakeSurface{
		browser: b,
		id:      fmt.Sprintf("T%d", b.seq),
		filled:  make(map[string]string),
	}
	b.surfaces = append(b.surfaces, s)
	b.open++
	if b.open > b.maxOpen {
		b.maxOpen = b.open
	}
	return s, nil
}

func (b *fakeBrowser) surfaceFor(url string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	var ids []string
	for _, n := range b.navigations {
		if n.url == url {
			ids = append(ids, n.surface)
		}
	}
	return ids
}

func (b *fakeBrowser) allClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range b.surfaces {
		if !s.closed {
			return false
		}
	}
	return true
}

type fakeSurface struct {
	browser   *fakeBrowser
	id        string
	url       string
	returnURL string
	current   *fakeFrame
	filled    map[string]string
	closed    bool
	navs      int
}

func (s *fakeSurface) ID() string { return s.id }

func (s *fakeSurface) Navigate(_ context.Context, url string) error {
	b := s.browser
	b.mu.Lock()
	if s.closed {
		b.mu.Unlock()
		return errors.New("surface closed")
	}
	if b.tabLifetime > 0 && s.navs >= b.tabLifetime {
		b.mu.Unlock()
		return apperrors.New(apperrors.ErrorTypeSurface, "target crashed")
	}
	s.navs++
	b.navigations = append(b.navigations, navigation{surface: s.id, url: url})
	needsLogin := b.requireLogin && !b.authenticated
	doc := b.docs[url]
	b.mu.Unlock()

	if needsLogin {
		s.returnURL = url
		s.url = fakeOrigin + "/Login.aspx?ReturnUrl=" + url
		s.current = &fakeFrame{
			name:    "main",
			html:    `<form><input id="tbUserName"><input id="tbPassword" type="password"><input id="btnLogin" type="submit"></form>`,
			surface: s,
		}
		return nil
	}

	s.url = url
	if doc == nil {
		s.current = &fakeFrame{name: "main", html: `<html><body><p>Record not found</p></body></html>`}
		return nil
	}
	if doc.navErr != nil {
		return doc.navErr
	}
	if doc.panics {
		panic("renderer crashed on " + url)
	}
	s.current = doc.main
	return nil
}

func (s *fakeSurface) submitLogin() {
	b := s.browser
	b.mu.Lock()
	ok := s.filled["#tbUserName"] == b.username && s.filled["#tbPassword"] == b.password
	if ok {
		b.authenticated = true
	}
	b.mu.Unlock()

	if ok {
		s.url = s.returnURL
		s.current = &fakeFrame{name: "main", html: `<html><body>home</body></html>`}
	}
}

func (s *fakeSurface) URL(context.Context) (string, error) { return s.url, nil }

func (s *fakeSurface) Main() Frame {
	if s.current == nil {
		return &fakeFrame{name: "main", html: "<html></html>"}
	}
	return s.current
}

func (s *fakeSurface) Close() error {
	b := s.browser
	b.mu.Lock()
	defer b.mu.Unlock()
	if !s.closed {
		s.closed = true
		b.open--
	}
	return nil
}

// poPage renders a PO receive document with n qualifying item rows
func poPage(req string, n int) string {
	var rows strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&rows, "<tr><td>Item %d</td><td>PCS</td><td>%d</td></tr>", i, i+1)
	}
	return fmt.Sprintf(`<html><body>
<input id="MainContent_txtReqNumber" value="%s">
<input id="MainContent_txtPONumber" value="PO-%s">
<input id="MainContent_txtReceiveDate" value="01/01/2024">
<input id="MainContent_txtReceiveBy" value="adi">
<table><tbody>%s<tr><td>total</td></tr></tbody></table>
</body></html>`, req, req, rows.String())
}

func topLevel(html string) *fakeDoc {
	return &fakeDoc{main: &fakeFrame{name: "main", html: html}}
}

// nested wraps html two frames deep below a shell page
func nested(html string) *fakeDoc {
	return &fakeDoc{main: &fakeFrame{
		name: "main",
		html: `<html><body><iframe name="outer"></iframe></body></html>`,
		children: []*fakeFrame{{
			name: "outer",
			html: `<html><body><iframe name="content"></iframe></body></html>`,
			children: []*fakeFrame{{
				name: "content",
				html: html,
			}},
		}},
	}}
}
