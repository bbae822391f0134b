package model

// Track is an immutable audio descriptor discovered from the catalog.
type Track struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Artist   string  `json:"artist"`
	Duration float64 `json:"duration"` // seconds, 0 when the probe failed
	URL      string  `json:"url"`
	AlbumArt string  `json:"albumArt,omitempty"`
}
