package watcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
)

// browserSurface drives a browser through a devtools endpoint on
// loopback. All chromedp calls run on the surface's own browser
// context (chromedp requires its target to travel in the context), so
// the per-call ctx is only consulted for cancellation; the browser
// context itself descends from the session context handed to
// NewBrowserSurface, which makes session cancellation tear the whole
// surface down.
type browserSurface struct {
	ctx       context.Context
	cancel    context.CancelFunc
	opTimeout time.Duration
}

type BrowserOptions struct {
	// devtools websocket endpoint, e.g. ws://127.0.0.1:9222
	DevtoolsUrl string
	// how long a single element query may wait before the element is
	// considered absent; defaults to 10s
	OpTimeout time.Duration
}

func NewBrowserSurface(ctx context.Context, options BrowserOptions) (Surface, error) {
	opTimeout := options.OpTimeout
	if opTimeout == 0 {
		opTimeout = time.Second * 10
	}

	allocCtx, allocCancel := chromedp.NewRemoteAllocator(ctx, options.DevtoolsUrl)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	cancel := func() {
		browserCancel()
		allocCancel()
	}

	// establish the connection eagerly so an unreachable automation
	// server fails the session before any navigation is attempted
	err := chromedp.Run(browserCtx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("connect to automation server: %w", err)
	}

	return &browserSurface{
		ctx:       browserCtx,
		cancel:    cancel,
		opTimeout: opTimeout,
	}, nil
}

// run executes actions with the surface's operation deadline. A
// deadline hit while the surface is otherwise healthy means the
// queried element never appeared.
func (s *browserSurface) run(ctx context.Context, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	opCtx, cancel := context.WithTimeout(s.ctx, s.opTimeout)
	defer cancel()

	err := chromedp.Run(opCtx, actions...)
	if errors.Is(err, context.DeadlineExceeded) && s.ctx.Err() == nil {
		return ErrNoElement
	}
	return err
}

func (s *browserSurface) Navigate(ctx context.Context, url string) error {
	return s.run(ctx, chromedp.Navigate(url))
}

func (s *browserSurface) Reload(ctx context.Context) error {
	return s.run(ctx, chromedp.Reload())
}

func (s *browserSurface) SetViewport(ctx context.Context, width, height int64) error {
	return s.run(ctx, chromedp.EmulateViewport(width, height))
}

func (s *browserSurface) SetGeolocation(ctx context.Context, latitude, longitude float64) error {
	return s.run(ctx, emulation.SetGeolocationOverride().
		WithLatitude(latitude).
		WithLongitude(longitude).
		WithAccuracy(100))
}

func (s *browserSurface) Click(ctx context.Context, selector string) error {
	return s.run(ctx, chromedp.Click(selector, chromedp.ByQuery))
}

const clickMatchScript = `(() => {
	const els = document.querySelectorAll(%q);
	const wanted = %q;
	const exact = %t;
	for (const el of els) {
		const text = (el.innerText || '').trim();
		if (exact ? text === wanted : text.includes(wanted)) {
			el.click();
			return true;
		}
	}
	return false;
})()`

func (s *browserSurface) ClickMatch(ctx context.Context, selector, text string, exact bool) (bool, error) {
	var clicked bool
	err := s.run(ctx, chromedp.Evaluate(
		fmt.Sprintf(clickMatchScript, selector, text, exact),
		&clicked,
	))
	if err != nil {
		return false, err
	}
	return clicked, nil
}

func (s *browserSurface) Text(ctx context.Context, selector string) (string, error) {
	var out string
	err := s.run(ctx, chromedp.Text(selector, &out, chromedp.ByQuery))
	if err != nil {
		return "", err
	}
	return out, nil
}

func (s *browserSurface) BodyText(ctx context.Context) (string, error) {
	return s.Text(ctx, "body")
}

func (s *browserSurface) OuterHTML(ctx context.Context, selector string) (string, error) {
	var out string
	err := s.run(ctx, chromedp.OuterHTML(selector, &out, chromedp.ByQuery))
	if err != nil {
		return "", err
	}
	return out, nil
}

func (s *browserSurface) SendKeys(ctx context.Context, selector, keys string) error {
	return s.run(ctx, chromedp.SendKeys(selector, keys, chromedp.ByQuery))
}

func (s *browserSurface) Evaluate(ctx context.Context, script string) error {
	return s.run(ctx, chromedp.Evaluate(script, nil))
}

func (s *browserSurface) Sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

func (s *browserSurface) Close() error {
	s.cancel()
	return nil
}
