package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/me/schedsim/internal/dispatcher"
	"github.com/me/schedsim/internal/workload"
	"github.com/me/schedsim/pkg/model"
)

// handleCreateCycle runs one dispatch cycle and returns every worker's result.
// POST /api/v1/cycles
func (s *Server) handleCreateCycle(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	var req model.SubmitCycleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, reqID, model.NewValidationError("Invalid JSON body: "+err.Error()))
		return
	}
	req.Workload = strings.TrimSpace(req.Workload)
	if req.Workload == "" {
		respondError(w, reqID, model.NewValidationError("missing required field",
			model.FieldError{Field: "workload", Message: "workload is required"}))
		return
	}

	if len(s.roots) > 0 && !workload.Within(req.Workload, s.roots) {
		s.logger.Warn("workload outside roots rejected", "workload", req.Workload)
		respondError(w, reqID, model.NewForbiddenError("workload is outside the served workload roots"))
		return
	}

	cycle, err := s.dispatcher.Dispatch(r.Context(), req.Workload)
	switch {
	case errors.Is(err, dispatcher.ErrShutdown), errors.Is(err, dispatcher.ErrNotStarted):
		respondError(w, reqID, model.NewUnavailableError(err.Error()))
		return
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		respondError(w, reqID, model.NewUnavailableError("cycle abandoned: "+err.Error()))
		return
	case err != nil:
		respondError(w, reqID, model.NewInternalError(err.Error()))
		return
	}

	if s.store != nil {
		if err := s.store.CreateCycle(r.Context(), cycle); err != nil {
			s.logger.Error("record cycle", "cycle_id", cycle.ID, "error", err)
		}
	}
	s.logger.Info("cycle submitted", "cycle_id", cycle.ID, "workload", cycle.Workload, "failed", cycle.FailedCount())
	respondCreated(w, reqID, cycle)
}

// GET /api/v1/cycles?limit=&offset=&workload=
func (s *Server) handleListCycles(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	if !s.requireStore(w, reqID) {
		return
	}

	opts, apiErr := parseListOptions(r)
	if apiErr != nil {
		respondError(w, reqID, apiErr)
		return
	}

	cycles, total, err := s.store.ListCycles(r.Context(), opts)
	if err != nil {
		respondError(w, reqID, model.NewInternalError(err.Error()))
		return
	}
	if cycles == nil {
		cycles = []*model.Cycle{}
	}
	respondList(w, reqID, cycles, &model.Pagination{
		Total:   total,
		Limit:   opts.Limit,
		Offset:  opts.Offset,
		HasMore: opts.Offset+len(cycles) < total,
	})
}

// GET /api/v1/cycles/{id}
func (s *Server) handleGetCycle(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	if !s.requireStore(w, reqID) {
		return
	}

	id := chi.URLParam(r, "id")
	cycle, err := s.store.GetCycle(r.Context(), id)
	if err != nil {
		respondError(w, reqID, model.NewInternalError(err.Error()))
		return
	}
	if cycle == nil {
		respondError(w, reqID, model.NewNotFoundError("Cycle", id))
		return
	}
	respondOK(w, reqID, cycle)
}

// DELETE /api/v1/cycles/{id}
func (s *Server) handleDeleteCycle(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	if !s.requireStore(w, reqID) {
		return
	}

	id := chi.URLParam(r, "id")
	if err := s.store.DeleteCycle(r.Context(), id); err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) {
			respondError(w, reqID, apiErr)
			return
		}
		respondError(w, reqID, model.NewInternalError(err.Error()))
		return
	}
	respondOK(w, reqID, map[string]string{"id": id, "deleted": "true"})
}

func (s *Server) requireStore(w http.ResponseWriter, reqID string) bool {
	if s.store == nil {
		respondError(w, reqID, model.NewUnavailableError("history is disabled"))
		return false
	}
	return true
}

func parseListOptions(r *http.Request) (model.ListOptions, *model.APIError) {
	opts := model.DefaultListOptions()
	q := r.URL.Query()

	var details []model.FieldError
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			details = append(details, model.FieldError{Field: "limit", Message: "must be an integer"})
		}
		opts.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			details = append(details, model.FieldError{Field: "offset", Message: "must be an integer"})
		}
		opts.Offset = n
	}
	if len(details) > 0 {
		return opts, model.NewValidationError("invalid query parameters", details...)
	}
	opts.Workload = q.Get("workload")
	opts.Clamp()
	return opts, nil
}
