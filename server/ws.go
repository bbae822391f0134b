package server

import (
	"context"
	"net/http"

	"basemusic/core/room"
	"basemusic/logger"
)

// handlePlayerWS streams engine events and accepts player commands.
func (s *Server) handlePlayerWS(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		writeError(w, http.StatusServiceUnavailable, "player stream disabled")
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("websocket upgrade failed", logger.ErrorField(err))
		return
	}

	client := s.hub.NewClient(conn)
	s.hub.Register(client)

	if msg, err := room.NewMessage(room.MsgTypeSync, s.engine.State()); err == nil {
		client.SendMessage(msg)
	}

	go client.WritePump()
	client.ReadPump(r.Context(), s.handleWSCommand)
}

// handleWSCommand maps a websocket message type onto a player action.
func (s *Server) handleWSCommand(_ context.Context, client *room.Client, msg *room.WSMessage) {
	if msg.Type == room.MsgTypeSync {
		if reply, err := room.NewMessage(room.MsgTypeSync, s.engine.State()); err == nil {
			client.SendMessage(reply)
		}
		return
	}

	cmd, err := decodeCommand(msg.Data)
	if err == nil {
		_, err = s.dispatch(string(msg.Type), cmd)
	}
	if err != nil {
		logger.Debug("rejected player command",
			logger.String("client", client.ID),
			logger.String("type", string(msg.Type)),
			logger.ErrorField(err))
		if reply, encErr := room.NewMessage(room.MsgTypeError, map[string]string{"error": err.Error()}); encErr == nil {
			client.SendMessage(reply)
		}
	}
}
