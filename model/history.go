package model

// PlayHistoryItem is the single listening record kept per track.
type PlayHistoryItem struct {
	TrackID       string  `json:"trackId"`
	TrackTitle    string  `json:"trackTitle"`
	TrackArtist   string  `json:"trackArtist"`
	TrackURL      string  `json:"trackUrl"`
	AlbumArt      string  `json:"albumArt,omitempty"`
	PlayDate      int64   `json:"playDate"`      // unix milliseconds of the last touch
	PlayDuration  float64 `json:"playDuration"`  // cumulative seconds listened
	TotalDuration float64 `json:"totalDuration"` // track length when first recorded
	WalletAddress string  `json:"walletAddress,omitempty"`
}
