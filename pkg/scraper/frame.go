package scraper

import (
	"context"
	"time"

	apperrors "poscraper/pkg/errors"
)

// ErrFrameNotFound is returned when no rendering context holds the marker.
// The document is treated as empty rather than failed.
var ErrFrameNotFound = apperrors.New(apperrors.ErrorTypeFrameNotFound, "marker not found in any frame")

// ResolveOptions bounds the frame search
type ResolveOptions struct {
	ProbeTimeout  time.Duration
	MarkerTimeout time.Duration
	MaxDepth      int
}

// ResolveFrame returns the rendering context that holds marker. The top-level
// document gets a short visibility probe; after that every frame is scanned
// breadth-first, top-level included, and the first with a match wins. The
// marker must then be attached within MarkerTimeout.
func ResolveFrame(ctx context.Context, s Surface, marker string, opts ResolveOptions) (Frame, error) {
	frame, err := findFrame(ctx, s.Main(), marker, opts)
	if err != nil {
		return nil, err
	}

	if err := frame.WaitAttached(ctx, marker, opts.MarkerTimeout); err != nil {
		return nil, stepError(ctx, err, apperrors.ErrorTypeTimeout, "wait for marker "+marker)
	}
	return frame, nil
}

func findFrame(ctx context.Context, main Frame, marker string, opts ResolveOptions) (Frame, error) {
	visible, err := main.Visible(ctx, marker, opts.ProbeTimeout)
	if err != nil {
		return nil, stepError(ctx, err, apperrors.ErrorTypeNavigation, "probe top-level frame")
	}
	if visible {
		return main, nil
	}

	type queued struct {
		frame Frame
		depth int
	}
	queue := []queued{{frame: main}}

	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]

		// a frame that detached mid-scan just drops out of the search
		n, err := next.frame.Count(ctx, marker)
		if err == nil && n > 0 {
			return next.frame, nil
		}
		if err != nil && (ctx.Err() != nil || apperrors.Is(err, apperrors.ErrorTypeSurface)) {
			return nil, stepError(ctx, err, apperrors.ErrorTypeNavigation, "scan frame "+next.frame.Name())
		}

		if next.depth >= opts.MaxDepth {
			continue
		}
		children, err := next.frame.Children(ctx)
		if err != nil {
			if ctx.Err() != nil || apperrors.Is(err, apperrors.ErrorTypeSurface) {
				return nil, stepError(ctx, err, apperrors.ErrorTypeNavigation, "list frames of "+next.frame.Name())
			}
			continue
		}
		for _, child := range children {
			queue = append(queue, queued{frame: child, depth: next.depth + 1})
		}
	}

	return nil, ErrFrameNotFound
}
