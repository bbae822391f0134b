package model

// Playlist is a named, ordered collection of tracks.
type Playlist struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Tracks     []Track `json:"tracks"`
	CreatedAt  int64   `json:"createdAt"` // unix milliseconds
	CoverImage string  `json:"coverImage,omitempty"`
}

// Clone returns a copy whose track slice is not shared with p.
func (p Playlist) Clone() Playlist {
	out := p
	out.Tracks = append([]Track(nil), p.Tracks...)
	if out.Tracks == nil {
		out.Tracks = []Track{}
	}
	return out
}
