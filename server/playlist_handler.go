package server

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"basemusic/core/catalog"
	"basemusic/model"
)

func (s *Server) handleListPlaylists(w http.ResponseWriter, r *http.Request) {
	current := ""
	if p, ok := s.playlists.Current(); ok {
		current = p.ID
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"playlists": s.playlists.List(),
		"currentId": current,
	})
}

func (s *Server) handleCreatePlaylist(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	writeJSON(w, http.StatusCreated, s.playlists.Create(r.Context(), name))
}

func (s *Server) handleCurrentPlaylist(w http.ResponseWriter, r *http.Request) {
	p, ok := s.playlists.Current()
	if !ok {
		writeError(w, http.StatusNotFound, "no playlist selected")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleGetPlaylist(w http.ResponseWriter, r *http.Request) {
	p, ok := s.playlists.Get(mux.Vars(r)["id"])
	if !ok {
		writeError(w, http.StatusNotFound, "playlist not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleDeletePlaylist(w http.ResponseWriter, r *http.Request) {
	if !s.playlists.Delete(r.Context(), mux.Vars(r)["id"]) {
		writeError(w, http.StatusNotFound, "playlist not found")
		return
	}
	s.syncTracks()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSelectPlaylist(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if !s.playlists.Select(id) {
		writeError(w, http.StatusNotFound, "playlist not found")
		return
	}
	p, _ := s.playlists.Get(id)
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleSetCover(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CoverImage string `json:"coverImage"`
	}
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	id := mux.Vars(r)["id"]
	if !s.playlists.SetCover(r.Context(), id, req.CoverImage) {
		writeError(w, http.StatusNotFound, "playlist not found")
		return
	}
	p, _ := s.playlists.Get(id)
	writeJSON(w, http.StatusOK, p)
}

// handleAddTrack appends a known track by id, or an ad hoc track by URL.
func (s *Server) handleAddTrack(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TrackID  string `json:"trackId"`
		URL      string `json:"url"`
		Title    string `json:"title"`
		Artist   string `json:"artist"`
		AlbumArt string `json:"albumArt"`
	}
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var track model.Track
	switch {
	case req.TrackID != "":
		t, ok := s.findTrack(req.TrackID)
		if !ok {
			writeError(w, http.StatusNotFound, "track not found")
			return
		}
		track = t
	case req.URL != "":
		title := req.Title
		if title == "" {
			title = req.URL
		}
		track = catalog.NewTrackFromURL(req.URL, title, req.Artist, req.AlbumArt)
	default:
		writeError(w, http.StatusBadRequest, "trackId or url is required")
		return
	}

	id := mux.Vars(r)["id"]
	if !s.playlists.AddTrack(r.Context(), id, track) {
		writeError(w, http.StatusNotFound, "playlist not found")
		return
	}
	s.syncTracks()
	p, _ := s.playlists.Get(id)
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleRemoveTrack(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if !s.playlists.RemoveTrack(r.Context(), vars["id"], vars["trackId"]) {
		writeError(w, http.StatusNotFound, "playlist not found")
		return
	}
	s.syncTracks()
	p, _ := s.playlists.Get(vars["id"])
	writeJSON(w, http.StatusOK, p)
}
