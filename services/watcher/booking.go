package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Solver produces a CAPTCHA response token for a site key. Solves may
// take tens of seconds.
type Solver interface {
	Solve(ctx context.Context, pageUrl, siteKey string) (string, error)
}

// Mailer issues a disposable proxy address forwarding to realEmail.
type Mailer interface {
	Register(ctx context.Context, realEmail string, expire time.Time) (string, error)
}

// inspectOffice opens one reservable office's calendar, extracts its
// available dates and, when one of them is acceptable to the caller,
// runs the booking flow. Faults local to this office come back
// wrapping errSkipOffice.
func (e *engine) inspectOffice(ctx context.Context, office *OfficeAvailability) error {
	clicked, err := e.surface.ClickMatch(ctx, officeItemSelector, office.OfficeName, false)
	if err != nil {
		return classify(err)
	}
	if !clicked {
		return skipOffice(fmt.Errorf("listing element for %q disappeared", office.OfficeName))
	}
	e.pace(ctx, 3)

	html, err := e.surface.OuterHTML(ctx, "body")
	if err != nil {
		return classify(err)
	}
	dates, err := ParseCalendar(html, time.Now())
	if err != nil {
		return skipOffice(err)
	}
	office.AvailableDates = dates

	return e.book(ctx, office)
}

// book runs the multi-step personal-info + CAPTCHA + submit flow.
func (e *engine) book(ctx context.Context, office *OfficeAvailability) error {
	acceptable := intersectDates(office.AvailableDates, e.req.AcceptableDates)
	if len(acceptable) == 0 {
		// the portal's known defect: the office shows active but holds
		// nothing bookable for this caller
		e.registry.Flag(office.OfficeName)
		e.goBack(ctx)
		return skipOffice(fmt.Errorf("no acceptable date at %q", office.OfficeName))
	}

	selected := acceptable[0]
	_, err := e.surface.ClickMatch(ctx, availableDateLink, strconv.Itoa(selected.Day()), true)
	if err != nil {
		return classify(err)
	}

	err = e.rejectionCheck(ctx, office, noAppointmentsMessage, rejectionMessage)
	if err != nil {
		return err
	}

	err = e.surface.Click(ctx, nextButton)
	if err != nil {
		return classify(err)
	}
	e.pace(ctx, 1)

	err = e.rejectionCheck(ctx, office, selectDateMessage, rejectionMessage)
	if err != nil {
		return err
	}

	err = e.fillContactDetails(ctx, selected)
	if err != nil {
		return err
	}

	token, err := e.solver.Solve(ctx, e.portalUrl, recaptchaSiteKey)
	if err != nil {
		return skipOffice(fmt.Errorf("solve captcha: %w", err))
	}
	err = e.surface.Evaluate(ctx, captchaCallbackScript(token))
	if err != nil {
		return classify(err)
	}

	err = e.surface.Click(ctx, nextButton)
	if err != nil {
		return classify(err)
	}
	e.pace(ctx, 1)

	office.SelectedDate = &selected
	slog.Info("completed booking flow",
		"office", office.OfficeName, "date", selected.String())
	return nil
}

// rejectionCheck reads the page body and, when it carries one of the
// given dead-end messages, flags the office as a false positive and
// returns to the listing.
func (e *engine) rejectionCheck(ctx context.Context, office *OfficeAvailability, messages ...string) error {
	body, err := e.surface.BodyText(ctx)
	if err != nil {
		return classify(err)
	}
	for _, message := range messages {
		if strings.Contains(body, message) {
			e.registry.Flag(office.OfficeName)
			e.goBack(ctx)
			return skipOffice(fmt.Errorf("portal rejected %q: %s", office.OfficeName, firstWords(message, 6)))
		}
	}
	return nil
}

// fillContactDetails enters the requester identity. The portal only
// ever sees the proxy address, never the caller's real email.
func (e *engine) fillContactDetails(ctx context.Context, selected Date) error {
	firstName, lastName := e.req.SplitName()

	err := e.surface.SendKeys(ctx, firstNameInput, firstName)
	if err != nil {
		return classify(err)
	}
	err = e.surface.SendKeys(ctx, lastNameInput, lastName)
	if err != nil {
		return classify(err)
	}
	err = e.surface.SendKeys(ctx, phoneNumberInput, e.req.PhoneNumber)
	if err != nil {
		return classify(err)
	}

	expire, ok := e.req.LatestAcceptableDate()
	if !ok {
		expire = selected
	}
	proxyEmail, err := e.mail.Register(ctx, e.req.Email, expire.Time)
	if err != nil {
		return skipOffice(fmt.Errorf("register proxy email: %w", err))
	}
	err = e.surface.SendKeys(ctx, emailInput, proxyEmail)
	if err != nil {
		return classify(err)
	}
	err = e.surface.SendKeys(ctx, confirmEmailInput, proxyEmail)
	if err != nil {
		return classify(err)
	}
	e.pace(ctx, 2)
	return nil
}

// intersectDates returns the dates present in both lists, ascending.
// The earliest element is the deterministic booking choice.
func intersectDates(available, acceptable []Date) []Date {
	if len(available) == 0 || len(acceptable) == 0 {
		return nil
	}
	wanted := make(map[string]struct{}, len(acceptable))
	for _, d := range acceptable {
		wanted[d.String()] = struct{}{}
	}

	var out []Date
	seen := make(map[string]struct{})
	for _, d := range available {
		key := d.String()
		if _, ok := wanted[key]; !ok {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, d)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Before(out[j])
	})
	return out
}

func firstWords(s string, n int) string {
	words := strings.Fields(s)
	if len(words) > n {
		words = words[:n]
	}
	return strings.Join(words, " ")
}
