package watcher

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestEngine(fake *fakeSurface, registry *FalsePositiveRegistry, req MonitoringRequest) *engine {
	return &engine{
		req:             req,
		surface:         fake,
		registry:        registry,
		solver:          fakeSolver{token: "tok-123"},
		mail:            fakeMailer{proxy: "proxy@mail.test"},
		portalUrl:       "https://portal.test",
		refreshInterval: time.Millisecond,
		out:             make(chan []OfficeAvailability, officeCount),
	}
}

func testRequest() MonitoringRequest {
	service, _ := ServiceByTitle("ID Card")
	return MonitoringRequest{
		ZipCode:     "27601",
		MaxDistance: 10,
		Name:        "John_Doe",
		PhoneNumber: "9195550100",
		Email:       "john@example.com",
		Service:     service,
		AcceptableDates: []Date{
			NewDate(2025, time.March, 14),
			NewDate(2025, time.March, 20),
		},
	}
}

// runs the engine until the first emitted batch, then cancels it
func firstBatch(t *testing.T, eng *engine) []OfficeAvailability {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errs := make(chan error, 1)
	go func() { errs <- eng.run(ctx) }()

	select {
	case batch := <-eng.out:
		cancel()
		require.NoError(t, <-errs)
		return batch
	case err := <-errs:
		t.Fatalf("engine exited before emitting: %v", err)
		return nil
	case <-time.After(time.Second * 5):
		t.Fatal("engine never emitted a batch")
		return nil
	}
}

func TestEngineEmptyIntersectionFlagsFalsePositive(t *testing.T) {
	fake := newFakeSurface(listingFixture, "State ID card")
	// only a date the caller will not accept
	fake.calendars["Raleigh East"] = `
<body>
<span class="ui-datepicker-month">March</span>
<span class="ui-datepicker-year">2025</span>
<a class="ui-state-default ui-state-active">12</a>
</body>`

	registry := NewFalsePositiveRegistry(RemoveOne)
	eng := newTestEngine(fake, registry, testRequest())

	batch := firstBatch(t, eng)

	require.True(t, registry.Flagged("Raleigh East"))
	require.Len(t, batch, 2) // Raleigh East + Cary; Durham South is too far

	raleigh := batch[0]
	require.Equal(t, "Raleigh East", raleigh.OfficeName)
	require.Nil(t, raleigh.SelectedDate)
	require.Equal(t, []Date{NewDate(2025, time.March, 12)}, raleigh.AvailableDates)

	// the dead end navigated back to the listing and never typed anything
	require.GreaterOrEqual(t, fake.backClicks, 1)
	require.Empty(t, fake.snapshotKeys())
}

func TestEngineRejectionMessageFlagsFalsePositive(t *testing.T) {
	fake := newFakeSurface(listingFixture, "State ID card")
	fake.calendars["Raleigh East"] = calendarFixture
	fake.bodies["Raleigh East"] = noAppointmentsMessage

	registry := NewFalsePositiveRegistry(RemoveOne)
	eng := newTestEngine(fake, registry, testRequest())

	batch := firstBatch(t, eng)

	require.True(t, registry.Flagged("Raleigh East"))
	require.Nil(t, batch[0].SelectedDate)
	require.Empty(t, fake.snapshotKeys())
}

func TestEngineClearsFlagWhenMarkerGone(t *testing.T) {
	fake := newFakeSurface(listingFixture, "State ID card")
	fake.calendars["Raleigh East"] = calendarFixture

	registry := NewFalsePositiveRegistry(RemoveOne)
	// Cary is not reservable in the fixture, so its stale flag clears
	registry.Flag("Cary")

	eng := newTestEngine(fake, registry, testRequest())
	firstBatch(t, eng)

	require.False(t, registry.Flagged("Cary"))
}

func TestEngineDistanceFilter(t *testing.T) {
	fake := newFakeSurface(listingFixture, "State ID card")
	fake.calendars["Raleigh East"] = calendarFixture

	eng := newTestEngine(fake, NewFalsePositiveRegistry(RemoveOne), testRequest())
	batch := firstBatch(t, eng)

	for _, record := range batch {
		require.LessOrEqual(t, record.Distance, eng.req.MaxDistance)
		require.NotEqual(t, "Durham South", record.OfficeName)
	}
}

func TestStreamBackpressure(t *testing.T) {
	eng := &engine{out: make(chan []OfficeAvailability, officeCount)}
	ctx := context.Background()
	batch := []OfficeAvailability{{OfficeName: "Raleigh East"}}

	for i := 0; i < officeCount; i++ {
		require.True(t, eng.emit(ctx, batch))
	}

	done := make(chan struct{})
	go func() {
		eng.emit(ctx, batch)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("push past capacity completed without a drain")
	case <-time.After(time.Millisecond * 50):
	}

	<-eng.out

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("producer did not resume after a drain")
	}
}

func TestEmitStopsWhenReceiverGone(t *testing.T) {
	eng := &engine{out: make(chan []OfficeAvailability)}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.False(t, eng.emit(ctx, nil))
}
