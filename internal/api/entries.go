package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/bleflow/internal/entry"
)

// handleListEntries lists config entries, optionally filtered by ?domain=.
func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	var (
		entries []entry.Entry
		err     error
	)
	if domain := r.URL.Query().Get("domain"); domain != "" {
		entries, err = s.entries.ListByDomain(r.Context(), domain)
	} else {
		entries, err = s.entries.ListEntries(r.Context())
	}
	if err != nil {
		s.logger.Error("failed to list entries", "error", err)
		writeInternalError(w, "failed to list entries")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}

// handleGetEntry returns a single config entry.
func (s *Server) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	e, err := s.entries.GetEntry(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.flowError(w, r, "getting entry", err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// handleDeleteEntry removes a config entry. If the device is still in
// range, the discovery dispatcher offers it again.
func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.entries.DeleteEntry(r.Context(), id); err != nil {
		s.flowError(w, r, "deleting entry", err)
		return
	}
	s.logger.Info("entry deleted", "entry_id", id)
	w.WriteHeader(http.StatusNoContent)
}
