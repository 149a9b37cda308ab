package scraper

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "poscraper/pkg/errors"
)

const marker = "#MainContent_txtReqNumber"

var resolveOpts = ResolveOptions{
	ProbeTimeout:  10 * time.Millisecond,
	MarkerTimeout: 10 * time.Millisecond,
	MaxDepth:      3,
}

func surfaceShowing(doc *fakeDoc) *fakeSurface {
	return &fakeSurface{id: "T1", current: doc.main}
}

func TestResolveFrameTopLevel(t *testing.T) {
	s := surfaceShowing(topLevel(poPage("R1", 1)))

	frame, err := ResolveFrame(context.Background(), s, marker, resolveOpts)
	require.NoError(t, err)
	assert.Equal(t, "main", frame.Name())
}

func TestResolveFrameFallsBackToNestedFrame(t *testing.T) {
	s := surfaceShowing(nested(poPage("R1", 1)))

	frame, err := ResolveFrame(context.Background(), s, marker, resolveOpts)
	require.NoError(t, err)
	assert.Equal(t, "content", frame.Name())
}

func TestResolveFrameBreadthFirst(t *testing.T) {
	doc := &fakeDoc{main: &fakeFrame{
		name: "main",
		html: `<iframe name="a"></iframe><iframe name="b"></iframe>`,
		children: []*fakeFrame{
			{name: "a", html: `<iframe name="deep"></iframe>`, children: []*fakeFrame{
				{name: "deep", html: poPage("deep", 1)},
			}},
			{name: "b", html: poPage("shallow", 1)},
		},
	}}

	frame, err := ResolveFrame(context.Background(), surfaceShowing(doc), marker, resolveOpts)
	require.NoError(t, err)
	assert.Equal(t, "b", frame.Name())
}

func TestResolveFrameHiddenTopLevelMarker(t *testing.T) {
	doc := topLevel(poPage("R1", 1))
	doc.main.hidden = true

	frame, err := ResolveFrame(context.Background(), surfaceShowing(doc), marker, resolveOpts)
	require.NoError(t, err)
	assert.Equal(t, "main", frame.Name(), "attached top-level marker is still found by the scan")
}

func TestResolveFrameNotFound(t *testing.T) {
	s := surfaceShowing(nested(`<p>nothing here</p>`))

	_, err := ResolveFrame(context.Background(), s, marker, resolveOpts)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrorTypeFrameNotFound))
	assert.False(t, apperrors.IsFatal(err))
}

func TestResolveFrameRespectsDepthLimit(t *testing.T) {
	s := surfaceShowing(nested(poPage("R1", 1)))

	opts := resolveOpts
	opts.MaxDepth = 1
	_, err := ResolveFrame(context.Background(), s, marker, opts)
	assert.ErrorIs(t, err, ErrFrameNotFound)
}
