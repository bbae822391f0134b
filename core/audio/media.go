package audio

import "context"

// Handlers receive notifications from a Media. Any of them may be nil.
type Handlers struct {
	OnDuration   func(seconds float64)
	OnTimeUpdate func(seconds float64)
	OnEnded      func()
}

// Media is the single playable resource behind the player: an element that
// loads one URL at a time and reports position, duration and end of track.
type Media interface {
	// Load replaces the current resource and installs h for it. Handlers of
	// the previous resource must not fire after Load returns.
	Load(ctx context.Context, url string, h Handlers) error
	Play() error
	Pause()
	Seek(seconds float64)
	SetVolume(v float64)
	Position() float64
	Duration() float64
	// Close releases the resource. The Media may be loaded again afterwards.
	Close() error
}
