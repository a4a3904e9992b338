package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"instantdmv-backend/lib/geo"
)

// errSkipOffice marks a fault local to one office's inspection. The
// engine logs it, abandons that office and carries on with the pass.
// Any other non-nil error from an inspection step is session-fatal.
var errSkipOffice = errors.New("skip office")

func skipOffice(err error) error {
	return fmt.Errorf("%w: %w", errSkipOffice, err)
}

// classify turns a missing precondition element into an office-local
// fault; transport errors stay fatal.
func classify(err error) error {
	if errors.Is(err, ErrNoElement) {
		return skipOffice(err)
	}
	return err
}

// engine runs one monitoring session end to end on its own browser
// surface: portal navigation, the refresh loop, per-office inspection
// and batch emission. It never runs two operations at once; the
// surface cannot safely interleave navigations.
type engine struct {
	req      MonitoringRequest
	surface  Surface
	registry *FalsePositiveRegistry
	solver   Solver
	mail     Mailer

	coords    geo.Coordinates
	hasCoords bool

	portalUrl       string
	refreshInterval time.Duration
	// scales every fixed pacing delay; tests set it to zero to run the
	// whole flow instantly
	paceUnit time.Duration

	out chan []OfficeAvailability
}

func (e *engine) pace(ctx context.Context, units int) {
	if e.paceUnit <= 0 {
		return
	}
	_ = e.surface.Sleep(ctx, time.Duration(units)*e.paceUnit)
}

// run drives the session state machine. A nil return means the
// session closed in an orderly way (cancelled, or the downstream
// receiver went away); an error is a fatal automation fault.
func (e *engine) run(ctx context.Context) error {
	defer close(e.out)

	err := e.init(ctx)
	if err != nil {
		return err
	}
	err = e.selectService(ctx)
	if err != nil {
		return err
	}
	return e.watch(ctx)
}

// init configures the surface, applies the geolocation override
// derived from the caller's zip code and lands on the portal.
func (e *engine) init(ctx context.Context) error {
	err := e.surface.SetViewport(ctx, windowWidth, windowHeight)
	if err != nil {
		return fmt.Errorf("set viewport: %w", err)
	}
	if e.hasCoords {
		err = e.surface.SetGeolocation(ctx, e.coords.Latitude, e.coords.Longitude)
		if err != nil {
			return fmt.Errorf("set geolocation: %w", err)
		}
	}
	err = e.surface.Navigate(ctx, e.portalUrl)
	if err != nil {
		return fmt.Errorf("open portal: %w", err)
	}
	err = e.surface.Click(ctx, makeApptButton)
	if err != nil {
		return fmt.Errorf("click make-appointment: %w", err)
	}
	e.pace(ctx, 8)
	return nil
}

// selectService scans the visible menu tiles for the session's service
// selector text and clicks the first match. No match keeps the engine
// retrying forever; the menu sometimes renders late and there is
// nothing better to do than wait for it.
func (e *engine) selectService(ctx context.Context) error {
	for {
		clicked, err := e.surface.ClickMatch(ctx, officeItemSelector, e.req.Service.Selector, false)
		if err != nil && !errors.Is(err, ErrNoElement) {
			return fmt.Errorf("select service: %w", err)
		}
		if clicked {
			break
		}
		if ctx.Err() != nil {
			return nil
		}
		slog.Debug("service tile not visible yet, retrying",
			"selector", e.req.Service.Selector)
		e.pace(ctx, 2)
	}
	e.pace(ctx, 5)
	return nil
}

// watch is the refresh loop over the results listing.
func (e *engine) watch(ctx context.Context) error {
	ticker := time.NewTicker(e.refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		batch, err := e.scanPass(ctx)
		if err != nil {
			return err
		}
		if !e.emit(ctx, batch) {
			slog.Info("downstream receiver gone, closing session",
				"zipcode", e.req.ZipCode)
			return nil
		}

		err = e.surface.Reload(ctx)
		if err != nil {
			return fmt.Errorf("refresh results page: %w", err)
		}
		e.pace(ctx, 3)
	}
}

// scanPass extracts every listed office, inspects the reservable ones
// depth-first in sequence and returns the distance-filtered batch.
func (e *engine) scanPass(ctx context.Context) ([]OfficeAvailability, error) {
	html, err := e.surface.OuterHTML(ctx, "body")
	if err != nil {
		return nil, fmt.Errorf("read results page: %w", err)
	}
	offices, err := ParseOffices(html)
	if err != nil {
		return nil, fmt.Errorf("parse results page: %w", err)
	}

	batch := make([]OfficeAvailability, 0, len(offices))
	for _, office := range offices {
		if office.Distance > e.req.MaxDistance {
			continue
		}

		if office.OfficeName != "" && e.registry.Flagged(office.OfficeName) {
			if !office.IsReservable {
				// the stale marker is gone, so the defect memory for
				// this office has nothing left to protect against
				e.registry.Clear(office.OfficeName)
			} else {
				slog.Debug("skipping known false positive",
					"office", office.OfficeName)
			}
			batch = append(batch, office)
			continue
		}

		if office.IsReservable {
			err := e.inspectOffice(ctx, &office)
			if err != nil {
				if !errors.Is(err, errSkipOffice) {
					return nil, err
				}
				slog.Warn("abandoned office inspection",
					"office", office.OfficeName, "err", err)
			}
		}
		batch = append(batch, office)
	}
	return batch, nil
}

// emit pushes a batch onto the bounded stream, suspending the refresh
// loop while the consumer lags. It reports false once the receiver
// side is gone.
func (e *engine) emit(ctx context.Context, batch []OfficeAvailability) bool {
	select {
	case e.out <- batch:
		return true
	case <-ctx.Done():
		return false
	}
}

// goBack best-effort returns to the results listing after a dead-end
// office; the next pass re-reads the page either way.
func (e *engine) goBack(ctx context.Context) {
	err := e.surface.Click(ctx, backButton)
	if err != nil {
		slog.Debug("back button not found after dead-end office", "err", err)
		return
	}
	e.pace(ctx, 1)
}
