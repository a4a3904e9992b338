package watcher

import (
	"context"
	"errors"
	"time"
)

// ErrNoElement reports that a queried element never showed up within
// the surface's operation deadline. Most navigation steps tolerate it;
// inside the booking flow it skips the office under inspection.
var ErrNoElement = errors.New("element not found")

// Surface is one exclusively-owned browser automation session. A
// session engine owns exactly one Surface for its whole life and never
// shares it, so implementations may assume single-goroutine use.
type Surface interface {
	Navigate(ctx context.Context, url string) error
	Reload(ctx context.Context) error
	SetViewport(ctx context.Context, width, height int64) error
	SetGeolocation(ctx context.Context, latitude, longitude float64) error

	// Click clicks the first element matching the css selector.
	Click(ctx context.Context, selector string) error
	// ClickMatch clicks the first element matching the selector whose
	// visible text matches the given text (substring match unless
	// exact). It reports whether any element matched.
	ClickMatch(ctx context.Context, selector, text string, exact bool) (bool, error)

	Text(ctx context.Context, selector string) (string, error)
	BodyText(ctx context.Context) (string, error)
	OuterHTML(ctx context.Context, selector string) (string, error)
	SendKeys(ctx context.Context, selector, keys string) error
	// Evaluate runs a raw script in the page, discarding its result.
	Evaluate(ctx context.Context, script string) error

	Sleep(ctx context.Context, d time.Duration) error
	Close() error
}

// SurfaceFactory opens a fresh automation surface whose lifetime is
// bound to ctx.
type SurfaceFactory func(ctx context.Context) (Surface, error)
