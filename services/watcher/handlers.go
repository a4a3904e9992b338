package watcher

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
)

// RegisterRoutes installs the service's HTTP front door. The route
// shapes mirror the upstream deployment so existing callers keep
// working; everything interesting happens behind StartSession and
// Snapshot.
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /listen/{zipcode}/{maxdistance}/{name}/{phonenumber}/{email}/{servicetitle}/{dates}", s.handleListen)
	mux.HandleFunc("GET /offices/all", s.handleOffices)
	mux.HandleFunc("GET /health/ping", s.handlePing)
}

func (s *Service) handleListen(w http.ResponseWriter, r *http.Request) {
	req, err := requestFromPath(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	_, err = s.StartSession(r.Context(), req)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to start listener: %s", err), http.StatusBadRequest)
		return
	}

	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "Started listening for appointments.")
}

func requestFromPath(r *http.Request) (MonitoringRequest, error) {
	maxDistance, err := strconv.ParseUint(r.PathValue("maxdistance"), 10, 16)
	if err != nil {
		return MonitoringRequest{}, fmt.Errorf("invalid max distance: %w", err)
	}

	service, err := ServiceByTitle(r.PathValue("servicetitle"))
	if err != nil {
		return MonitoringRequest{}, err
	}

	var dates []Date
	for _, raw := range strings.Split(r.PathValue("dates"), ",") {
		date, err := ParseDate(raw)
		if err != nil {
			return MonitoringRequest{}, err
		}
		dates = append(dates, date)
	}

	return MonitoringRequest{
		ZipCode:         r.PathValue("zipcode"),
		MaxDistance:     uint16(maxDistance),
		Name:            r.PathValue("name"),
		PhoneNumber:     r.PathValue("phonenumber"),
		Email:           r.PathValue("email"),
		Service:         service,
		AcceptableDates: dates,
	}, nil
}

func (s *Service) handleOffices(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	err := json.NewEncoder(w).Encode(s.Snapshot())
	if err != nil {
		slog.WarnContext(r.Context(), "failed to encode office snapshot", "err", err)
	}
}

func (s *Service) handlePing(w http.ResponseWriter, r *http.Request) {
	fmt.Fprint(w, "pong")
}
