package scraper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "poscraper/pkg/errors"
	"poscraper/pkg/logger"
)

// Credentials is the username/password pair submitted to the login form
type Credentials struct {
	Username string
	Password string
}

// SessionState is the authentication state of a Session
type SessionState string

const (
	StateUnauthenticated SessionState = "unauthenticated"
	StateAuthenticated   SessionState = "authenticated"
)

// Session is the authenticated browsing context shared read-only by every
// surface of a run. Cookies live in the browser; this only records state.
type Session struct {
	Origin        string
	Username      string
	State         SessionState
	EstablishedAt time.Time
	// LoggedIn is false when an existing session cookie was reused
	LoggedIn bool
}

// LoginOptions configures how the login form is detected and submitted
type LoginOptions struct {
	UsernameSelector  string
	PasswordSelector  string
	SubmitSelector    string
	LoginURLPattern   string
	ProbeTimeout      time.Duration
	NavigationTimeout time.Duration
	LoginTimeout      time.Duration
	PollInterval      time.Duration
	Logger            logger.Logger
	Metrics           MetricsRecorder
}

// DefaultLoginOptions returns the selectors and timeouts of the legacy login form
func DefaultLoginOptions() LoginOptions {
	return LoginOptions{
		UsernameSelector:  "#tbUserName",
		PasswordSelector:  "#tbPassword",
		SubmitSelector:    "#btnLogin",
		LoginURLPattern:   "Login",
		ProbeTimeout:      2 * time.Second,
		NavigationTimeout: 15 * time.Second,
		LoginTimeout:      15 * time.Second,
		PollInterval:      100 * time.Millisecond,
	}
}

// EstablishSession opens a dedicated surface on loginURL and submits
// credentials if the login form is showing. Calling it with a valid session
// cookie already in the browser is a no-op login. Any failure is fatal for
// the run and is not retried.
func EstablishSession(ctx context.Context, b Browser, loginURL string, creds Credentials, opts LoginOptions) (*Session, error) {
	log := opts.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = nopMetrics{}
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 100 * time.Millisecond
	}

	session := &Session{
		Origin:   originOf(loginURL),
		Username: creds.Username,
		State:    StateUnauthenticated,
	}

	surface, err := b.NewSurface(ctx)
	if err != nil {
		metrics.LoginCompleted("error")
		return nil, apperrors.Wrap(apperrors.ErrorTypeSurface, err, "open login surface")
	}
	defer func() {
		if cerr := surface.Close(); cerr != nil {
			log.WithError(cerr).Warn("Failed to close login surface")
		}
	}()

	navCtx, cancel := context.WithTimeout(ctx, opts.NavigationTimeout)
	err = surface.Navigate(navCtx, loginURL)
	cancel()
	if err != nil {
		metrics.LoginCompleted("error")
		return nil, apperrors.Wrap(apperrors.ErrorTypeAuth, err, "open login page")
	}

	page := surface.Main()
	needsLogin, err := page.Visible(ctx, opts.UsernameSelector, opts.ProbeTimeout)
	if err != nil {
		metrics.LoginCompleted("error")
		return nil, apperrors.Wrap(apperrors.ErrorTypeAuth, err, "probe login form")
	}

	if !needsLogin {
		log.WithField("origin", session.Origin).Info("Session already authenticated")
		session.State = StateAuthenticated
		session.EstablishedAt = time.Now()
		metrics.LoginCompleted("reused")
		return session, nil
	}

	if creds.Username == "" || creds.Password == "" {
		metrics.LoginCompleted("error")
		return nil, apperrors.New(apperrors.ErrorTypeAuth, "login form shown but no credentials configured")
	}

	log.WithFields(map[string]interface{}{
		"origin":   session.Origin,
		"username": creds.Username,
	}).Info("Submitting login form")

	if err := submitLogin(ctx, page, creds, opts); err != nil {
		metrics.LoginCompleted("error")
		return nil, apperrors.Wrap(apperrors.ErrorTypeAuth, err, "submit login form")
	}

	if err := waitForURL(ctx, surface, opts); err != nil {
		metrics.LoginCompleted("rejected")
		return nil, apperrors.Wrap(apperrors.ErrorTypeAuth, err, "login did not leave the login page")
	}

	stillVisible, err := surface.Main().Visible(ctx, opts.UsernameSelector, 0)
	if err != nil {
		metrics.LoginCompleted("error")
		return nil, apperrors.Wrap(apperrors.ErrorTypeAuth, err, "re-check login form")
	}
	if stillVisible {
		metrics.LoginCompleted("rejected")
		return nil, apperrors.New(apperrors.ErrorTypeAuth, "login form still visible after submitting credentials")
	}

	session.State = StateAuthenticated
	session.EstablishedAt = time.Now()
	session.LoggedIn = true
	metrics.LoginCompleted("success")
	log.WithField("username", creds.Username).Info("Logged in")

	return session, nil
}

func submitLogin(ctx context.Context, page Frame, creds Credentials, opts LoginOptions) error {
	if err := page.Fill(ctx, opts.UsernameSelector, creds.Username); err != nil {
		return fmt.Errorf("fill username: %w", err)
	}
	if err := page.Fill(ctx, opts.PasswordSelector, creds.Password); err != nil {
		return fmt.Errorf("fill password: %w", err)
	}
	if err := page.Click(ctx, opts.SubmitSelector); err != nil {
		return fmt.Errorf("click submit: %w", err)
	}
	return nil
}

// waitForURL polls the surface URL until it no longer matches the login pattern
func waitForURL(ctx context.Context, s Surface, opts LoginOptions) error {
	ctx, cancel := context.WithTimeout(ctx, opts.LoginTimeout)
	defer cancel()

	ticker := time.NewTicker(opts.PollInterval)
	defer ticker.Stop()

	for {
		url, err := s.URL(ctx)
		if err == nil && !strings.Contains(url, opts.LoginURLPattern) {
			return nil
		}
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("still on %q after %s", url, opts.LoginTimeout)
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func originOf(rawURL string) string {
	scheme, rest, ok := strings.Cut(rawURL, "://")
	if !ok {
		return rawURL
	}
	host, _, _ := strings.Cut(rest, "/")
	return scheme + "://" + host
}
