package watcher

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"instantdmv-backend/lib/geo"
)

// Date is a civil calendar date. It marshals as "2006-01-02" and
// ignores the time-of-day and location of the underlying value.
type Date struct {
	time.Time
}

const dateLayout = "2006-01-02"

func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func ParseDate(str string) (Date, error) {
	parsed, err := time.Parse(dateLayout, strings.TrimSpace(str))
	if err != nil {
		return Date{}, fmt.Errorf("failed to parse date: %w", err)
	}
	return Date{parsed}, nil
}

func (d Date) String() string {
	return d.Format(dateLayout)
}

func (d Date) Equal(other Date) bool {
	return d.String() == other.String()
}

func (d Date) Before(other Date) bool {
	return d.Time.Before(other.Time)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Format(dateLayout))
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var str string
	err := json.Unmarshal(data, &str)
	if err != nil {
		return err
	}
	parsed, err := ParseDate(str)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// OfficeAvailability is one office's observed state at one point in
// time. OfficeName is the natural key; records are rebuilt from
// scratch on every extraction pass and supersede each other in the
// cache by name.
type OfficeAvailability struct {
	IsReservable   bool   `json:"is_reservable"`
	OfficeName     string `json:"office_name"`
	StreetAddress  string `json:"street_address"`
	Distance       uint16 `json:"distance"`
	ZipCode        string `json:"zip_code"`
	AvailableDates []Date `json:"available_dates"`
	SelectedDate   *Date  `json:"selected_date"`
}

// MonitoringRequest is one caller's request to watch a set of offices
// and book when an acceptable date shows up.
type MonitoringRequest struct {
	ZipCode     string
	MaxDistance uint16
	// first and last name in a single "First_Last" field
	Name        string
	PhoneNumber string
	Email       string
	Service     ServiceType
	// the booking trigger: dates the caller will accept
	AcceptableDates []Date
}

func (r MonitoringRequest) Validate() error {
	if !geo.ValidZip(r.ZipCode) {
		return fmt.Errorf("invalid zip code: %q", r.ZipCode)
	}
	if r.Service.Selector == "" {
		return fmt.Errorf("monitoring request has no service selector")
	}
	return nil
}

// SplitName returns the first and last name halves of the delimited
// Name field. A missing delimiter yields an empty last name.
func (r MonitoringRequest) SplitName() (string, string) {
	first, last, _ := strings.Cut(r.Name, "_")
	return first, last
}

// LatestAcceptableDate is used as the proxy email expiry; after the
// last date the caller would accept, the address has no reason to live.
func (r MonitoringRequest) LatestAcceptableDate() (Date, bool) {
	if len(r.AcceptableDates) == 0 {
		return Date{}, false
	}
	latest := r.AcceptableDates[0]
	for _, d := range r.AcceptableDates[1:] {
		if latest.Before(d) {
			latest = d
		}
	}
	return latest, true
}
