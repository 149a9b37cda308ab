package scraper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "poscraper/pkg/errors"
	"poscraper/pkg/logger"
)

const loginURL = fakeOrigin + "/POReceiveAttachment.aspx?mode=view&ID=100"

func testLoginOptions() LoginOptions {
	opts := DefaultLoginOptions()
	opts.ProbeTimeout = 10 * time.Millisecond
	opts.LoginTimeout = 200 * time.Millisecond
	opts.PollInterval = 5 * time.Millisecond
	return opts
}

func TestEstablishSessionSubmitsCredentials(t *testing.T) {
	b := newFakeBrowser().withLogin("laurentius", "secret")
	tl := logger.NewTestLogger()
	opts := testLoginOptions()
	opts.Logger = tl

	session, err := EstablishSession(context.Background(), b, loginURL, Credentials{Username: "laurentius", Password: "secret"}, opts)
	require.NoError(t, err)

	assert.Equal(t, StateAuthenticated, session.State)
	assert.True(t, session.LoggedIn)
	assert.Equal(t, fakeOrigin, session.Origin)
	assert.False(t, session.EstablishedAt.IsZero())
	assert.True(t, b.authenticated)
	assert.True(t, b.allClosed(), "login surface is closed once cookies are set")
	assert.True(t, tl.HasMessage("Logged in"))
}

func TestEstablishSessionAlreadyAuthenticated(t *testing.T) {
	b := newFakeBrowser()
	b.serve(loginURL, topLevel(poPage("R", 1)))

	session, err := EstablishSession(context.Background(), b, loginURL, Credentials{}, testLoginOptions())
	require.NoError(t, err)
	assert.Equal(t, StateAuthenticated, session.State)
	assert.False(t, session.LoggedIn)
}

func TestEstablishSessionIsIdempotent(t *testing.T) {
	b := newFakeBrowser().withLogin("u", "p")
	creds := Credentials{Username: "u", Password: "p"}

	first, err := EstablishSession(context.Background(), b, loginURL, creds, testLoginOptions())
	require.NoError(t, err)
	second, err := EstablishSession(context.Background(), b, loginURL, creds, testLoginOptions())
	require.NoError(t, err)

	assert.True(t, first.LoggedIn)
	assert.False(t, second.LoggedIn)
	assert.Len(t, b.surfaces, 2)
}

func TestEstablishSessionRejectedIsFatal(t *testing.T) {
	b := newFakeBrowser().withLogin("u", "p")

	_, err := EstablishSession(context.Background(), b, loginURL, Credentials{Username: "u", Password: "wrong"}, testLoginOptions())
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrorTypeAuth))
	assert.True(t, apperrors.IsFatal(err))
	assert.True(t, b.allClosed())
}

func TestEstablishSessionWithoutCredentials(t *testing.T) {
	b := newFakeBrowser().withLogin("u", "p")

	_, err := EstablishSession(context.Background(), b, loginURL, Credentials{}, testLoginOptions())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no credentials")
}

func TestEstablishSessionSurfaceFailure(t *testing.T) {
	b := newFakeBrowser()
	b.surfaceErr = errors.New("cannot open tab")

	_, err := EstablishSession(context.Background(), b, loginURL, Credentials{}, testLoginOptions())
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrorTypeSurface))
}

func TestOriginOf(t *testing.T) {
	assert.Equal(t, "https://maa-m.onlinepo.com", originOf("https://maa-m.onlinepo.com/InventoryHandoverDetail.aspx?id=1"))
	assert.Equal(t, "http://127.0.0.1:8080", originOf("http://127.0.0.1:8080"))
	assert.Equal(t, "not a url", originOf("not a url"))
}
