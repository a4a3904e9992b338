package watcher

import (
	"log/slog"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"instantdmv-backend/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

var zipInAddress = regexp.MustCompile(`\b\d{5}\b`)

// ParseOffices extracts one OfficeAvailability per office element in
// the rendered results listing. Records come back pre-distance-filter
// and without calendar data; the session engine fills those in.
// Offices whose distance text fails to parse are dropped with a
// warning rather than failing the pass.
func ParseOffices(html string) ([]OfficeAvailability, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	var records []OfficeAvailability
	doc.Find(officeItemSelector).Each(func(_ int, sel *goquery.Selection) {
		record, ok := parseOffice(sel)
		if !ok {
			return
		}
		records = append(records, record)
	})
	return records, nil
}

func parseOffice(sel *goquery.Selection) (OfficeAvailability, bool) {
	record := OfficeAvailability{
		IsReservable: sel.HasClass(activeUnitClass),
	}

	// the office name is the second direct div sub-block; a missing one
	// yields an empty name, not an error
	divs := sel.ChildrenFiltered("div")
	if divs.Length() > 1 {
		record.OfficeName = htmlutil.CleanText(divs.Eq(1).Text())
	}

	address := htmlutil.CleanText(sel.Find(officeChildSelector).First().Text())
	record.ZipCode = zipInAddress.FindString(address)
	street := address
	if record.ZipCode != "" {
		street = strings.ReplaceAll(street, record.ZipCode, "")
	}
	record.StreetAddress = strings.TrimSuffix(strings.TrimSpace(street), ",")

	if divs.Length() > 0 {
		distance, ok := parseDistance(divs.Eq(divs.Length() - 1).Text())
		if !ok {
			slog.Warn("office has unparseable distance, skipping",
				"office", record.OfficeName)
			return OfficeAvailability{}, false
		}
		record.Distance = distance
	}

	return record, true
}

func parseDistance(text string) (uint16, bool) {
	cleaned := htmlutil.CleanText(text)
	cleaned = strings.ReplaceAll(cleaned, " Miles", "")
	cleaned = strings.ReplaceAll(cleaned, "text=", "")
	parsed, err := strconv.ParseFloat(cleaned, 32)
	if err != nil || parsed < 0 {
		return 0, false
	}
	return uint16(math.Round(parsed)), true
}

var monthsByName = map[string]time.Month{
	"January":   time.January,
	"February":  time.February,
	"March":     time.March,
	"April":     time.April,
	"May":       time.May,
	"June":      time.June,
	"July":      time.July,
	"August":    time.August,
	"September": time.September,
	"October":   time.October,
	"November":  time.November,
	"December":  time.December,
}

// ParseCalendar extracts every available day cell of the rendered
// datepicker. The displayed month name maps through a fixed table; an
// unrecognized month means every cell under it is skipped, but the
// pass carries on. A missing year falls back to the current one.
func ParseCalendar(html string, now time.Time) ([]Date, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	monthText := htmlutil.CleanText(doc.Find(datepickerMonth).First().Text())
	yearText := htmlutil.CleanText(doc.Find(datepickerYear).First().Text())

	year, err := strconv.Atoi(yearText)
	if err != nil {
		year = now.Year()
	}
	month, knownMonth := monthsByName[monthText]

	var dates []Date
	doc.Find(availableDateLink).Each(func(_ int, sel *goquery.Selection) {
		if !knownMonth {
			return
		}
		day, err := strconv.Atoi(htmlutil.CleanText(sel.Text()))
		if err != nil {
			return
		}
		date := NewDate(year, month, day)
		// reject cells that normalize into a different month, e.g. a 31
		// in a 30-day month
		if date.Day() != day || date.Month() != month {
			return
		}
		dates = append(dates, date)
	})
	return dates, nil
}
