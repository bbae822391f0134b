package server

import (
	"errors"
	"net/http"

	"basemusic/core/wallet"
	"basemusic/logger"
)

func (s *Server) handleWalletState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.wallet.Current())
}

// handleWalletConnect connects the wallet and issues a session token for it.
func (s *Server) handleWalletConnect(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Address string `json:"address"`
		ChainID int64  `json:"chainId"`
	}
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	state, err := s.wallet.Connect(req.Address, req.ChainID)
	if err != nil {
		if errors.Is(err, wallet.ErrInvalidAddress) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to connect wallet")
		return
	}
	token, expires, err := s.tokens.Issue(state.Address)
	if err != nil {
		logger.Error("failed to issue token", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"wallet":    state,
		"token":     token,
		"expiresAt": expires.UnixMilli(),
	})
}

func (s *Server) handleWalletDisconnect(w http.ResponseWriter, r *http.Request) {
	s.wallet.Disconnect()
	writeJSON(w, http.StatusOK, s.wallet.Current())
}

func (s *Server) handleSwitchChain(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ChainID int64 `json:"chainId"`
	}
	if err := decodeJSON(r, &req, false); err != nil || req.ChainID <= 0 {
		writeError(w, http.StatusBadRequest, "chainId is required")
		return
	}
	if !s.wallet.SwitchChain(req.ChainID) {
		writeError(w, http.StatusConflict, "no wallet connected")
		return
	}
	writeJSON(w, http.StatusOK, s.wallet.Current())
}
