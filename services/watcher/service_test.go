package watcher

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"instantdmv-backend/lib/geo"
	"instantdmv-backend/lib/testutil"
	"instantdmv-backend/services/watcher/db"

	"github.com/stretchr/testify/require"
)

func setupService(t *testing.T, fake *fakeSurface, registry *FalsePositiveRegistry) (*Service, *db.Queries) {
	res, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "services/watcher",
		DbSchema: db.Schema,
	})
	t.Cleanup(cleanup)

	queries := db.New(res.DB)
	service := NewService(ServiceOptions{
		Registry: registry,
		Cache:    NewAvailabilityCache(),
		Geo: geo.NewTable(map[string]geo.Coordinates{
			"27601": {Latitude: 35.7796, Longitude: -78.6382},
		}),
		Solver:  fakeSolver{token: "tok-123"},
		Mail:    fakeMailer{proxy: "proxy@mail.test"},
		Queries: queries,
		NewSurface: func(ctx context.Context) (Surface, error) {
			return fake, nil
		},
		PortalUrl:       "https://portal.test",
		RefreshInterval: time.Millisecond * 5,
		PaceUnit:        -1,
	})
	return service, queries
}

func TestSessionEndToEnd(t *testing.T) {
	fake := newFakeSurface(listingFixture, "State ID card")
	fake.calendars["Raleigh East"] = calendarFixture

	service, queries := setupService(t, fake, NewFalsePositiveRegistry(RemoveOne))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()

	handle, err := service.StartSession(ctx, testRequest())
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		for _, record := range service.Snapshot() {
			if record.OfficeName == "Raleigh East" && record.SelectedDate != nil {
				return true
			}
		}
		return false
	}, time.Second*5, time.Millisecond*10)

	handle.Cancel()
	select {
	case <-handle.Done():
	case <-ctx.Done():
		t.Fatal("session did not shut down after cancel")
	}

	var raleigh OfficeAvailability
	for _, record := range service.Snapshot() {
		require.NotEqual(t, "Durham South", record.OfficeName)
		if record.OfficeName == "Raleigh East" {
			raleigh = record
		}
	}

	// intersection of [12, 14, 21] and [14, 20] books the 14th
	require.NotNil(t, raleigh.SelectedDate)
	require.Equal(t, "2025-03-14", raleigh.SelectedDate.String())
	require.Equal(t, []Date{
		NewDate(2025, time.March, 12),
		NewDate(2025, time.March, 14),
		NewDate(2025, time.March, 21),
	}, raleigh.AvailableDates)

	keys := fake.snapshotKeys()
	require.Equal(t, "John", keys[firstNameInput])
	require.Equal(t, "Doe", keys[lastNameInput])
	require.Equal(t, "9195550100", keys[phoneNumberInput])
	// the caller's real address must never reach the portal
	require.Equal(t, "proxy@mail.test", keys[emailInput])
	require.Equal(t, "proxy@mail.test", keys[confirmEmailInput])
	for _, typed := range keys {
		require.NotEqual(t, "john@example.com", typed)
	}

	stats := fake.stats()
	require.Contains(t, stats.dateClicks, "14")
	require.NotEmpty(t, stats.evals)
	require.Contains(t, stats.evals[0], "tok-123")

	rows, err := queries.ListMonitoringRequests(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "27601", rows[0].Zipcode)
	require.Equal(t, "ID Card", rows[0].ServiceTitle)
	require.Equal(t, "2025-03-14,2025-03-20", rows[0].Dates)
}

func TestSessionSkipsRegisteredFalsePositive(t *testing.T) {
	fake := newFakeSurface(listingFixture, "State ID card")
	fake.calendars["Raleigh East"] = calendarFixture

	registry := NewFalsePositiveRegistry(RemoveOne)
	registry.Flag("Raleigh East")

	service, _ := setupService(t, fake, registry)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()

	handle, err := service.StartSession(ctx, testRequest())
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(service.Snapshot()) > 0
	}, time.Second*5, time.Millisecond*10)

	handle.Cancel()
	<-handle.Done()

	for _, record := range service.Snapshot() {
		if record.OfficeName == "Raleigh East" {
			require.True(t, record.IsReservable)
			require.Nil(t, record.SelectedDate)
		}
	}

	// no booking steps ran for the flagged office
	require.Empty(t, fake.stats().officeOpens)
	require.Empty(t, fake.snapshotKeys())
	require.True(t, registry.Flagged("Raleigh East"))
}

func TestStartSessionRejectsInvalidZip(t *testing.T) {
	fake := newFakeSurface(listingFixture, "State ID card")
	service, _ := setupService(t, fake, NewFalsePositiveRegistry(RemoveOne))

	req := testRequest()
	req.ZipCode = "not-a-zip"

	_, err := service.StartSession(context.Background(), req)
	require.Error(t, err)
	require.Empty(t, fake.stats().serviceClicks)
}

func TestHttpFrontDoor(t *testing.T) {
	fake := newFakeSurface(listingFixture, "State ID card")
	fake.calendars["Raleigh East"] = calendarFixture
	service, _ := setupService(t, fake, NewFalsePositiveRegistry(RemoveOne))

	mux := http.NewServeMux()
	service.RegisterRoutes(mux)
	server := httptest.NewServer(mux)
	defer server.Close()

	res, err := http.Get(server.URL + "/health/ping")
	require.NoError(t, err)
	body, _ := io.ReadAll(res.Body)
	res.Body.Close()
	require.Equal(t, "pong", string(body))

	res, err = http.Get(server.URL +
		"/listen/27601/10/John_Doe/9195550100/john@example.com/ID%20Card/2025-03-14,2025-03-20")
	require.NoError(t, err)
	body, _ = io.ReadAll(res.Body)
	res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.True(t, strings.HasPrefix(string(body), "Started listening"))

	res, err = http.Get(server.URL +
		"/listen/27601/10/John_Doe/9195550100/john@example.com/Unknown%20Service/2025-03-14")
	require.NoError(t, err)
	res.Body.Close()
	require.Equal(t, http.StatusBadRequest, res.StatusCode)

	require.Eventually(t, func() bool {
		return len(service.Snapshot()) > 0
	}, time.Second*5, time.Millisecond*10)

	res, err = http.Get(server.URL + "/offices/all")
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, "application/json", res.Header.Get("Content-Type"))

	var records []OfficeAvailability
	require.NoError(t, json.NewDecoder(res.Body).Decode(&records))
	require.NotEmpty(t, records)
}
