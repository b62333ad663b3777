package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/bleflow/internal/bluetooth"
	"github.com/nerrad567/bleflow/internal/flow"
	"github.com/nerrad567/bleflow/internal/history"
)

// startFlowRequest is the request body for POST /flows.
//
// Source defaults to "user". A "bluetooth" start re-runs discovery for an
// address currently in the discovery cache.
type startFlowRequest struct {
	Handler string `json:"handler"`
	Source  string `json:"source"`
	Address string `json:"address,omitempty"`
}

// handleListFlows lists open flows, optionally filtered by ?domain=.
func (s *Server) handleListFlows(w http.ResponseWriter, r *http.Request) {
	flows := s.flows.Progress(r.URL.Query().Get("domain"))
	writeJSON(w, http.StatusOK, map[string]any{
		"flows": flows,
		"count": len(flows),
	})
}

// handleStartFlow starts a flow.
func (s *Server) handleStartFlow(w http.ResponseWriter, r *http.Request) {
	var req startFlowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Handler == "" {
		writeBadRequest(w, "handler is required")
		return
	}

	source := flow.Source(req.Source)
	if source == "" {
		source = flow.SourceUser
	}

	var info *bluetooth.ServiceInfo
	if source == flow.SourceBluetooth {
		address, err := bluetooth.NormalizeAddress(req.Address)
		if err != nil {
			writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
			return
		}
		cached, ok := s.cache.Get(address)
		if !ok {
			writeNotFound(w, "device not in discovery cache")
			return
		}
		info = &cached
	}

	result, err := s.flows.Init(r.Context(), req.Handler, source, info)
	if err != nil {
		s.flowError(w, r, "starting flow", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleGetFlow re-renders the current step of an open flow.
func (s *Server) handleGetFlow(w http.ResponseWriter, r *http.Request) {
	result, err := s.flows.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.flowError(w, r, "getting flow", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleConfigureFlow submits user input to an open flow. An empty body is
// an empty input.
func (s *Server) handleConfigureFlow(w http.ResponseWriter, r *http.Request) {
	input := map[string]any{}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil && !errors.Is(err, io.EOF) {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	result, err := s.flows.Configure(r.Context(), chi.URLParam(r, "id"), input)
	if err != nil {
		s.flowError(w, r, "configuring flow", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleIgnoreFlow ignores the device of a discovery flow.
func (s *Server) handleIgnoreFlow(w http.ResponseWriter, r *http.Request) {
	result, err := s.flows.Ignore(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.flowError(w, r, "ignoring flow", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleAbortFlow aborts an open flow.
func (s *Server) handleAbortFlow(w http.ResponseWriter, r *http.Request) {
	result, err := s.flows.Abort(chi.URLParam(r, "id"))
	if err != nil {
		s.flowError(w, r, "aborting flow", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleListFlowHistory returns finished flows, newest first.
//
// Query parameters:
//   - domain, unique_id, outcome, reason: exact-match filters
//   - limit: max results (default 50, max 200)
//   - offset: pagination offset
func (s *Server) handleListFlowHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "flow history not configured")
		return
	}

	q := r.URL.Query()
	filter := history.Filter{
		Domain:   q.Get("domain"),
		UniqueID: q.Get("unique_id"),
		Outcome:  q.Get("outcome"),
		Reason:   q.Get("reason"),
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}

	result, err := s.history.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list flow history", "error", err)
		writeInternalError(w, "failed to list flow history")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) flowError(w http.ResponseWriter, r *http.Request, action string, err error) {
	if writeDomainError(w, err) {
		return
	}
	s.logger.Error(action,
		"error", err,
		"request_id", r.Context().Value(ctxKeyRequestID),
	)
	writeInternalError(w, action+" failed")
}
