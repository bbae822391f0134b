package model

// RepeatMode controls what happens when a track ends.
type RepeatMode string

const (
	RepeatNone RepeatMode = "none"
	RepeatAll  RepeatMode = "all"
	RepeatOne  RepeatMode = "one"
)

// Next cycles none -> all -> one -> none.
func (m RepeatMode) Next() RepeatMode {
	switch m {
	case RepeatNone:
		return RepeatAll
	case RepeatAll:
		return RepeatOne
	default:
		return RepeatNone
	}
}

// PlaybackState is the transient transport state of the player. It is never persisted.
type PlaybackState struct {
	CurrentTrack *Track     `json:"currentTrack"`
	IsPlaying    bool       `json:"isPlaying"`
	CurrentTime  float64    `json:"currentTime"`
	Duration     float64    `json:"duration"`
	Volume       float64    `json:"volume"`
	Shuffle      bool       `json:"shuffle"`
	Repeat       RepeatMode `json:"repeat"`
}

// Clone copies the state, including the current track value.
func (s PlaybackState) Clone() PlaybackState {
	out := s
	if s.CurrentTrack != nil {
		t := *s.CurrentTrack
		out.CurrentTrack = &t
	}
	return out
}

// CurrentTrackID returns the id of the loaded track, or "" when none.
func (s PlaybackState) CurrentTrackID() string {
	if s.CurrentTrack == nil {
		return ""
	}
	return s.CurrentTrack.ID
}
