package watcher

import (
	"context"
	"sync"
	"time"
)

// fakeSurface scripts the portal: a listing page, one calendar page
// per office and optional body texts for the rejection checks. It
// records every mutating action so tests can assert which booking
// steps ran.
type fakeSurface struct {
	mu sync.Mutex

	listingHtml     string
	serviceSelector string
	// office name -> page html once its tile is clicked
	calendars map[string]string
	// office name -> body text shown on its page
	bodies map[string]string

	// "" means the results listing
	current string

	navigations   []string
	serviceClicks int
	officeOpens   []string
	dateClicks    []string
	nextClicks    int
	backClicks    int
	sendKeys      map[string]string
	evals         []string
}

func newFakeSurface(listingHtml, serviceSelector string) *fakeSurface {
	return &fakeSurface{
		listingHtml:     listingHtml,
		serviceSelector: serviceSelector,
		calendars:       map[string]string{},
		bodies:          map[string]string{},
		sendKeys:        map[string]string{},
	}
}

func (f *fakeSurface) Navigate(ctx context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.navigations = append(f.navigations, url)
	f.current = ""
	return nil
}

func (f *fakeSurface) Reload(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = ""
	return nil
}

func (f *fakeSurface) SetViewport(ctx context.Context, width, height int64) error {
	return nil
}

func (f *fakeSurface) SetGeolocation(ctx context.Context, latitude, longitude float64) error {
	return nil
}

func (f *fakeSurface) Click(ctx context.Context, selector string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch selector {
	case nextButton:
		f.nextClicks++
	case backButton:
		f.backClicks++
		f.current = ""
	}
	return nil
}

func (f *fakeSurface) ClickMatch(ctx context.Context, selector, text string, exact bool) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if selector == availableDateLink {
		f.dateClicks = append(f.dateClicks, text)
		return true, nil
	}
	if text == f.serviceSelector {
		f.serviceClicks++
		return true, nil
	}
	if _, ok := f.calendars[text]; ok {
		f.officeOpens = append(f.officeOpens, text)
		f.current = text
		return true, nil
	}
	return false, nil
}

func (f *fakeSurface) Text(ctx context.Context, selector string) (string, error) {
	return "", nil
}

func (f *fakeSurface) BodyText(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bodies[f.current], nil
}

func (f *fakeSurface) OuterHTML(ctx context.Context, selector string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current == "" {
		return f.listingHtml, nil
	}
	return f.calendars[f.current], nil
}

func (f *fakeSurface) SendKeys(ctx context.Context, selector, keys string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sendKeys[selector] = keys
	return nil
}

func (f *fakeSurface) Evaluate(ctx context.Context, script string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.evals = append(f.evals, script)
	return nil
}

func (f *fakeSurface) Sleep(ctx context.Context, d time.Duration) error {
	return nil
}

func (f *fakeSurface) Close() error {
	return nil
}

type fakeStats struct {
	serviceClicks int
	officeOpens   []string
	dateClicks    []string
	nextClicks    int
	backClicks    int
	evals         []string
}

func (f *fakeSurface) stats() fakeStats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return fakeStats{
		serviceClicks: f.serviceClicks,
		officeOpens:   append([]string(nil), f.officeOpens...),
		dateClicks:    append([]string(nil), f.dateClicks...),
		nextClicks:    f.nextClicks,
		backClicks:    f.backClicks,
		evals:         append([]string(nil), f.evals...),
	}
}

func (f *fakeSurface) snapshotKeys() map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]string, len(f.sendKeys))
	for k, v := range f.sendKeys {
		out[k] = v
	}
	return out
}

type fakeSolver struct {
	token string
	err   error
}

func (s fakeSolver) Solve(ctx context.Context, pageUrl, siteKey string) (string, error) {
	return s.token, s.err
}

type fakeMailer struct {
	proxy string
	err   error
}

func (m fakeMailer) Register(ctx context.Context, realEmail string, expire time.Time) (string, error) {
	return m.proxy, m.err
}

const listingFixture = `
<body>
<div class="QflowObjectItem form-control ui-selectable Active-Unit" data-id="5">
	<div class="hidden-sm"></div>
	<div>Raleigh East</div>
	<div class="form-control-child">2431 Spring Forest Rd, Raleigh, NC 27604</div>
	<div>3.2 Miles</div>
</div>
<div class="QflowObjectItem form-control ui-selectable Active-Unit" data-id="9">
	<div class="hidden-sm"></div>
	<div>Durham South</div>
	<div class="form-control-child">101 Lakewood Ave, Durham, NC 27707</div>
	<div>24.8 Miles</div>
</div>
<div class="QflowObjectItem form-control ui-selectable" data-id="12">
	<div class="hidden-sm"></div>
	<div>Cary</div>
	<div class="form-control-child">700 Walnut St, Cary, NC 27511</div>
	<div>8.0 Miles</div>
</div>
</body>`

const calendarFixture = `
<body>
<div class="ui-datepicker-title">
	<span class="ui-datepicker-month">March</span>&nbsp;<span class="ui-datepicker-year">2025</span>
</div>
<table class="ui-datepicker-calendar"><tbody><tr>
	<td><a class="ui-state-default ui-state-active" href="#">12</a></td>
	<td><a class="ui-state-default ui-state-active" href="#">14</a></td>
	<td><a class="ui-state-default" href="#">17</a></td>
	<td><a class="ui-state-default ui-state-active" href="#">21</a></td>
</tr></tbody></table>
</body>`
