package watcher

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"instantdmv-backend/lib/geo"
	"instantdmv-backend/services/watcher/db"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

var tracer = otel.Tracer("services/watcher")
var meter = otel.Meter("services/watcher")

// Service owns the process-wide shared state (cache, false-positive
// registry) and supervises monitoring sessions. Each accepted request
// gets its own engine goroutine, its own browser surface and a bounded
// stream into the shared cache.
type Service struct {
	registry   *FalsePositiveRegistry
	cache      *AvailabilityCache
	geo        *geo.Table
	qry        *db.Queries
	solver     Solver
	mail       Mailer
	newSurface SurfaceFactory

	portalUrl       string
	refreshInterval time.Duration
	paceUnit        time.Duration

	sessionsEnded metric.Int64Counter
}

type ServiceOptions struct {
	Registry   *FalsePositiveRegistry
	Cache      *AvailabilityCache
	Geo        *geo.Table
	Solver     Solver
	Mail       Mailer
	NewSurface SurfaceFactory
	// optional, sessions run fine without request persistence
	Queries *db.Queries

	// defaults to the known deployment url
	PortalUrl string
	// defaults to 1s, matching the upstream refresh cadence
	RefreshInterval time.Duration
	// the base unit every fixed pacing delay is multiplied by;
	// defaults to 1s, tests set a negative value to disable pacing
	PaceUnit time.Duration
}

func NewService(options ServiceOptions) *Service {
	if options.PortalUrl == "" {
		options.PortalUrl = defaultPortalUrl
	}
	if options.RefreshInterval == 0 {
		options.RefreshInterval = time.Second
	}
	if options.PaceUnit == 0 {
		options.PaceUnit = time.Second
	}

	sessionsEnded, err := meter.Int64Counter("watcher.sessions.ended")
	if err != nil {
		slog.Warn("failed to create session counter", "err", err)
	}

	return &Service{
		registry:        options.Registry,
		cache:           options.Cache,
		geo:             options.Geo,
		qry:             options.Queries,
		solver:          options.Solver,
		mail:            options.Mail,
		newSurface:      options.NewSurface,
		portalUrl:       options.PortalUrl,
		refreshInterval: options.RefreshInterval,
		paceUnit:        options.PaceUnit,
		sessionsEnded:   sessionsEnded,
	}
}

// SessionHandle identifies one running session. Nothing in the HTTP
// surface exercises Cancel today, but the handle exists so a future
// caller can stop a session without killing the process.
type SessionHandle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func (h *SessionHandle) Cancel() {
	h.cancel()
}

// Done is closed once the session's engine and consumer have exited.
func (h *SessionHandle) Done() <-chan struct{} {
	return h.done
}

// StartSession validates and persists a monitoring request, then
// spawns the session in the background and returns immediately.
// Post-spawn failures are logged and counted but never reach the
// caller; a dead session simply stops producing records.
func (s *Service) StartSession(ctx context.Context, req MonitoringRequest) (*SessionHandle, error) {
	ctx, span := tracer.Start(ctx, "StartSession")
	defer span.End()

	err := req.Validate()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if s.qry != nil {
		err := s.persistRequest(ctx, req)
		if err != nil {
			// persistence is bookkeeping, not a launch precondition
			slog.WarnContext(ctx, "failed to persist monitoring request",
				"zipcode", req.ZipCode, "err", err)
		}
	}

	eng := &engine{
		req:             req,
		registry:        s.registry,
		solver:          s.solver,
		mail:            s.mail,
		portalUrl:       s.portalUrl,
		refreshInterval: s.refreshInterval,
		paceUnit:        s.paceUnit,
		// capacity equal to the office count is the system's only
		// backpressure: a full stream suspends the refresh loop
		out: make(chan []OfficeAvailability, officeCount),
	}
	if coords, ok := s.geo.Lookup(zip5(req.ZipCode)); ok {
		eng.coords = coords
		eng.hasCoords = true
	} else {
		slog.WarnContext(ctx, "no coordinates for zip, skipping geolocation override",
			"zipcode", req.ZipCode)
	}

	sessionCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	handle := &SessionHandle{
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go s.consume(eng.out, handle)
	go s.runSession(sessionCtx, eng)

	slog.InfoContext(ctx, "started monitoring session",
		"zipcode", req.ZipCode, "service", req.Service.Title)
	return handle, nil
}

func (s *Service) persistRequest(ctx context.Context, req MonitoringRequest) error {
	dates := make([]string, len(req.AcceptableDates))
	for i, d := range req.AcceptableDates {
		dates[i] = d.String()
	}
	return s.qry.InsertMonitoringRequest(ctx, db.InsertMonitoringRequestParams{
		Zipcode:      req.ZipCode,
		MaxDistance:  int64(req.MaxDistance),
		Name:         req.Name,
		PhoneNumber:  req.PhoneNumber,
		Email:        req.Email,
		ServiceTitle: req.Service.Title,
		Selector:     req.Service.Selector,
		Dates:        strings.Join(dates, ","),
		CreatedAt:    time.Now().Unix(),
	})
}

// runSession opens the session's browser surface and runs the engine
// until it ends, reporting the termination reason to the metrics sink
// since no caller channel exists to surface it live.
func (s *Service) runSession(ctx context.Context, eng *engine) {
	reason := "closed"

	surface, err := s.newSurface(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to open automation surface",
			"zipcode", eng.req.ZipCode, "err", err)
		close(eng.out)
		s.noteSessionEnd(ctx, "surface")
		return
	}
	defer surface.Close()

	eng.surface = surface
	err = eng.run(ctx)
	if err != nil {
		reason = "fatal"
		slog.ErrorContext(ctx, "session ended with fatal fault",
			"zipcode", eng.req.ZipCode, "err", err)
	}
	s.noteSessionEnd(ctx, reason)
}

func (s *Service) noteSessionEnd(ctx context.Context, reason string) {
	if s.sessionsEnded == nil {
		return
	}
	s.sessionsEnded.Add(ctx, 1, metric.WithAttributes(
		attribute.String("reason", reason),
	))
}

// consume is the stream's receiving half: it fans every emitted batch
// into the shared cache, keyed by office name. It exits when the
// engine closes the stream, after which the session handle resolves.
func (s *Service) consume(out <-chan []OfficeAvailability, handle *SessionHandle) {
	defer close(handle.done)
	defer handle.cancel()

	for batch := range out {
		for _, record := range batch {
			s.cache.Upsert(record)
		}
	}
}

// Snapshot returns the latest known record for every office.
func (s *Service) Snapshot() []OfficeAvailability {
	return s.cache.Snapshot()
}

func zip5(zip string) string {
	if len(zip) > 5 {
		return zip[:5]
	}
	return zip
}
