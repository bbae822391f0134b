package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"basemusic/core/catalog"
	"basemusic/model"
)

var (
	errUnknownAction = errors.New("unknown player action")
	errBadCommand    = errors.New("invalid command payload")
	errTrackNotFound = errors.New("track not found")
)

// playerCommand is the payload shared by the REST and websocket controls.
type playerCommand struct {
	TrackID  string   `json:"trackId,omitempty"`
	URL      string   `json:"url,omitempty"`
	Title    string   `json:"title,omitempty"`
	Artist   string   `json:"artist,omitempty"`
	AlbumArt string   `json:"albumArt,omitempty"`
	Time     *float64 `json:"time,omitempty"`
	Volume   *float64 `json:"volume,omitempty"`
}

// dispatch applies one player action and returns the resulting state.
func (s *Server) dispatch(action string, cmd playerCommand) (model.PlaybackState, error) {
	switch action {
	case "play":
		if cmd.TrackID == "" && cmd.URL == "" {
			s.engine.Play(nil)
			break
		}
		track, err := s.resolveTrack(cmd)
		if err != nil {
			return model.PlaybackState{}, err
		}
		s.engine.Play(&track)
	case "pause":
		s.engine.Pause()
	case "toggle":
		s.engine.TogglePlayPause()
	case "stop":
		s.engine.Stop()
	case "next":
		s.engine.Next()
	case "previous", "prev":
		s.engine.Previous()
	case "seek":
		if cmd.Time == nil {
			return model.PlaybackState{}, fmt.Errorf("%w: time is required", errBadCommand)
		}
		s.engine.Seek(*cmd.Time)
	case "volume":
		if cmd.Volume == nil {
			return model.PlaybackState{}, fmt.Errorf("%w: volume is required", errBadCommand)
		}
		s.engine.SetVolume(*cmd.Volume)
	case "shuffle":
		s.engine.ToggleShuffle()
	case "repeat":
		s.engine.ToggleRepeat()
	default:
		return model.PlaybackState{}, fmt.Errorf("%w: %q", errUnknownAction, action)
	}
	return s.engine.State(), nil
}

func (s *Server) resolveTrack(cmd playerCommand) (model.Track, error) {
	if cmd.TrackID != "" {
		t, ok := s.findTrack(cmd.TrackID)
		if !ok {
			return model.Track{}, errTrackNotFound
		}
		return t, nil
	}
	title := cmd.Title
	if title == "" {
		title = cmd.URL
	}
	return catalog.NewTrackFromURL(cmd.URL, title, cmd.Artist, cmd.AlbumArt), nil
}

func (s *Server) handlePlayerState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.State())
}

func (s *Server) handlePlayerAction(w http.ResponseWriter, r *http.Request) {
	var cmd playerCommand
	if err := decodeJSON(r, &cmd, true); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	state, err := s.dispatch(mux.Vars(r)["action"], cmd)
	if err != nil {
		writeError(w, commandStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func commandStatus(err error) int {
	switch {
	case errors.Is(err, errUnknownAction), errors.Is(err, errTrackNotFound):
		return http.StatusNotFound
	case errors.Is(err, errBadCommand):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// decodeCommand reads a websocket payload; an empty payload is a bare command.
func decodeCommand(raw json.RawMessage) (playerCommand, error) {
	var cmd playerCommand
	if len(raw) == 0 || string(raw) == "null" {
		return cmd, nil
	}
	if err := json.Unmarshal(raw, &cmd); err != nil {
		return cmd, fmt.Errorf("%w: %v", errBadCommand, err)
	}
	return cmd, nil
}
