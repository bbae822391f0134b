package server

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"basemusic/model"
)

// handleLeaderboard returns wallets by points, highest first.
func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	entries := s.points.All()
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		if limit > 0 && limit < len(entries) {
			entries = entries[:limit]
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries, "total": s.points.Len()})
}

func (s *Server) handleWalletPoints(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.points.Entry(mux.Vars(r)["wallet"])
	if !ok {
		writeError(w, http.StatusNotFound, "wallet has no points")
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// handleMyPoints reports the token's wallet, with zero totals before its first award.
func (s *Server) handleMyPoints(w http.ResponseWriter, r *http.Request) {
	address := walletFromContext(r.Context())
	entry, ok := s.points.Entry(address)
	if !ok {
		entry = model.PointsEntry{WalletAddress: address}
	}
	writeJSON(w, http.StatusOK, entry)
}
