package server

import (
	"net/http"

	"basemusic/core/catalog"
	"basemusic/core/manifest"
	"basemusic/logger"
)

// handleManifest serves the miniapp manifest.
func (s *Server) handleManifest(w http.ResponseWriter, r *http.Request) {
	doc := manifest.Build(manifest.Options{
		AppURL:     s.cfg.AppURL,
		Header:     s.cfg.AccountAssociationHeader,
		Payload:    s.cfg.AccountAssociationPayload,
		Signature:  s.cfg.AccountAssociationSignature,
		WebhookURL: s.cfg.WebhookURL,
	})
	writeJSON(w, http.StatusOK, doc)
}

// handleTracks searches every known track by title or artist.
func (s *Server) handleTracks(w http.ResponseWriter, r *http.Request) {
	tracks := catalog.Search(s.allTracks(), r.URL.Query().Get("q"))
	writeJSON(w, http.StatusOK, map[string]any{"tracks": tracks, "total": len(tracks)})
}

func (s *Server) handleDiscover(w http.ResponseWriter, r *http.Request) {
	res, err := s.Discover(r.Context())
	if err != nil {
		logger.Error("catalog discovery failed", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "discovery failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tracks":    res.Tracks,
		"playlists": res.Playlists,
	})
}
