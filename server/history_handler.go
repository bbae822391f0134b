package server

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
)

// handleHistory lists recent plays, newest first. ?limit=0 returns all.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	items := s.history.Recent(0)
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		if limit == 0 {
			items = s.history.Items()
		} else {
			items = s.history.Recent(limit)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "total": s.history.Len()})
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	s.history.Clear(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	trackID := mux.Vars(r)["trackId"]
	item, ok := s.history.Get(trackID)
	if !ok {
		writeError(w, http.StatusNotFound, "track not in history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"trackId":  trackID,
		"progress": s.history.Progress(trackID),
		"item":     item,
	})
}
