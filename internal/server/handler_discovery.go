package server

import "net/http"

type endpointInfo struct {
	Path        string   `json:"path"`
	Methods     []string `json:"methods"`
	Description string   `json:"description"`
}

type discoveryResponse struct {
	Name        string         `json:"name"`
	Version     string         `json:"version"`
	Description string         `json:"description"`
	Endpoints   []endpointInfo `json:"endpoints"`
}

func (s *Server) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	respondOK(w, reqID, discoveryResponse{
		Name:        "schedsim API",
		Version:     "v1",
		Description: "Round-Robin and Shortest-Job-First simulation over a persistent worker pool",
		Endpoints: []endpointInfo{
			{"/api/v1/cycles", []string{"GET", "POST"}, "Cycle history; POST runs one dispatch cycle for a workload"},
			{"/api/v1/cycles/{id}", []string{"GET", "DELETE"}, "Single cycle with every worker's result"},
			{"/api/v1/health", []string{"GET"}, "Pool size, dispatcher state and uptime"},
		},
	})
}
