// Package browser drives Chrome through go-rod and exposes it to the scraper
// as Browser, Surface and Frame.
package browser

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"poscraper/pkg/config"
	apperrors "poscraper/pkg/errors"
	"poscraper/pkg/logger"
	"poscraper/pkg/scraper"
)

// Config configures the browser manager
type Config struct {
	// RemoteURL is the DevTools WebSocket URL of an already running Chrome.
	// Empty launches a local one.
	RemoteURL string
	// Bin overrides the Chrome binary used by the launcher
	Bin string

	Headless         bool
	Stealth          bool
	IgnoreCertErrors bool

	// ResourceBlocking lists resource types to drop (images, fonts, media, stylesheets)
	ResourceBlocking []string

	Logger logger.Logger
}

// ConfigFrom maps the browser section of the application config
func ConfigFrom(cfg *config.BrowserConfig, log logger.Logger) Config {
	return Config{
		RemoteURL:        cfg.RemoteURL,
		Bin:              cfg.Bin,
		Headless:         cfg.Headless,
		Stealth:          cfg.Stealth,
		IgnoreCertErrors: cfg.IgnoreCertErrors,
		ResourceBlocking: cfg.ResourceBlocking,
		Logger:           log,
	}
}

// Manager owns the Chrome process (or remote connection). Every surface it
// creates is a tab of the same browser, so cookies set by the login surface
// are visible to all later surfaces.
type Manager struct {
	cfg     Config
	mu      sync.Mutex
	browser *rod.Browser
	lnch    *launcher.Launcher
	closed  bool
}

var _ scraper.Browser = (*Manager)(nil)

// NewManager creates a Manager. Call Start before creating surfaces.
func NewManager(cfg Config) *Manager {
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNopLogger()
	}
	return &Manager{cfg: cfg}
}

// Start launches Chrome, or connects to the remote instance
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("browser: manager is closed")
	}
	if m.browser != nil {
		return nil
	}

	wsURL := m.cfg.RemoteURL
	if wsURL != "" {
		m.cfg.Logger.WithField("url", wsURL).Info("Connecting to remote browser")
	} else {
		l := launcher.New().
			Headless(m.cfg.Headless).
			Set("disable-blink-features", "AutomationControlled")
		if m.cfg.Bin != "" {
			l = l.Bin(m.cfg.Bin)
		}

		u, err := l.Launch()
		if err != nil {
			return apperrors.Wrap(apperrors.ErrorTypeSurface, err, "launch chrome")
		}
		wsURL = u
		m.lnch = l
		m.cfg.Logger.WithFields(map[string]interface{}{
			"url":      wsURL,
			"headless": m.cfg.Headless,
		}).Info("Launched local browser")
	}

	b := rod.New().ControlURL(wsURL).Context(ctx)
	if err := b.Connect(); err != nil {
		m.cleanup()
		return apperrors.Wrap(apperrors.ErrorTypeSurface, err, "connect to browser")
	}
	// the launch context only bounds the connection handshake
	b = b.Context(context.Background())

	if m.cfg.IgnoreCertErrors {
		if err := b.IgnoreCertErrors(true); err != nil {
			m.cfg.Logger.WithError(err).Warn("Failed to ignore certificate errors")
		}
	}

	m.browser = b
	return nil
}

// NewSurface opens a fresh tab
func (m *Manager) NewSurface(ctx context.Context) (scraper.Surface, error) {
	m.mu.Lock()
	b := m.browser
	m.mu.Unlock()
	if b == nil {
		return nil, fmt.Errorf("browser: not started")
	}

	var (
		page *rod.Page
		err  error
	)
	if m.cfg.Stealth {
		page, err = stealth.Page(b)
	} else {
		page, err = b.Page(proto.TargetCreateTarget{URL: ""})
	}
	if err != nil {
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}

	s := &surface{page: page, id: string(page.TargetID), logger: m.cfg.Logger}
	s.watch()
	if len(m.cfg.ResourceBlocking) > 0 {
		s.router = applyResourceBlocking(page, m.cfg.ResourceBlocking)
	}
	return s, nil
}

// Close shuts the browser down and removes a launched Chrome's profile
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return m.cleanup()
}

func (m *Manager) cleanup() error {
	var err error
	if m.browser != nil {
		// a remote browser outlives us; only drop the connection
		if m.lnch != nil {
			err = m.browser.Close()
		}
		m.browser = nil
	}
	if m.lnch != nil {
		m.lnch.Cleanup()
		m.lnch = nil
	}
	return err
}
