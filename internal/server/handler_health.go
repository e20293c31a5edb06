package server

import (
	"net/http"
	"runtime"
	"time"
)

type workerHealth struct {
	ID     int    `json:"id"`
	Policy string `json:"policy"`
	State  string `json:"state"`
}

type healthResponse struct {
	Status     string         `json:"status"`
	Version    string         `json:"version"`
	GoVersion  string         `json:"go_version"`
	Uptime     string         `json:"uptime"`
	Dispatcher string         `json:"dispatcher"`
	Cycles     int            `json:"cycles"`
	Workers    []workerHealth `json:"workers"`
	Store      string         `json:"store"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	state := s.dispatcher.State()
	status := "healthy"
	if state.IsTerminal() {
		status = "shutting_down"
	}

	policies := s.dispatcher.Policies()
	workers := make([]workerHealth, 0, s.dispatcher.Workers())
	for i, ws := range s.dispatcher.WorkerStates() {
		workers = append(workers, workerHealth{ID: i, Policy: policies[i].String(), State: ws.String()})
	}

	storeStatus := "disabled"
	if s.store != nil {
		storeStatus = "sqlite"
	}

	respondOK(w, reqID, healthResponse{
		Status:     status,
		Version:    Version,
		GoVersion:  runtime.Version(),
		Uptime:     s.dispatcher.Uptime().Round(time.Second).String(),
		Dispatcher: state.String(),
		Cycles:     s.dispatcher.Cycles(),
		Workers:    workers,
		Store:      storeStatus,
	})
}
