package model

// PointsEntry accumulates listening time for one wallet.
type PointsEntry struct {
	WalletAddress   string  `json:"walletAddress"`
	TotalPoints     int     `json:"totalPoints"`
	PlayTimeMinutes float64 `json:"playTimeMinutes"`
	LastUpdated     int64   `json:"lastUpdated"` // unix milliseconds
}
