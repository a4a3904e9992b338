package geo

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
)

var zipPattern = regexp.MustCompile(`^\d{5}(-\d{4})?$`)

// ValidZip reports whether s looks like a US postal code
// (5 digits, optionally with a +4 extension).
func ValidZip(s string) bool {
	return zipPattern.MatchString(s)
}

type Coordinates struct {
	Latitude  float64
	Longitude float64
}

// Table maps 5-digit zip codes to coordinates. It is loaded once at
// process start and read-only afterwards, so it needs no locking.
type Table struct {
	coords map[string]Coordinates
}

// LoadTable reads a headered csv of `zip,lat,lon` rows.
func LoadTable(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open zip table: %w", err)
	}
	defer f.Close()
	return ReadTable(f)
}

func ReadTable(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read zip table: %w", err)
	}

	coords := make(map[string]Coordinates, len(records))
	for i, record := range records {
		if i == 0 {
			// header row
			continue
		}
		if len(record) < 3 {
			continue
		}
		lat, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			lat = 0
		}
		lon, err := strconv.ParseFloat(record[2], 64)
		if err != nil {
			lon = 0
		}
		coords[record[0]] = Coordinates{Latitude: lat, Longitude: lon}
	}

	return &Table{coords: coords}, nil
}

func NewTable(coords map[string]Coordinates) *Table {
	return &Table{coords: coords}
}

func (t *Table) Lookup(zip string) (Coordinates, bool) {
	c, ok := t.coords[zip]
	return c, ok
}

func (t *Table) Len() int {
	return len(t.coords)
}
