package points

import (
	"context"
	"math"
	"slices"
	"strings"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/samber/lo"

	"basemusic/logger"
	"basemusic/metrics"
	"basemusic/model"
	"basemusic/storage"
)

const (
	// PerMinute is the points rate: one point per five listened minutes.
	PerMinute = 0.2
	// MaxEntries bounds the ledger. The oldest created wallet is dropped first.
	MaxEntries = 100
)

// Ledger accumulates listening minutes per wallet. Wallets compare
// case-insensitively; the address is stored as first seen.
type Ledger struct {
	mu      sync.Mutex
	entries []model.PointsEntry // insertion order
	repo    storage.Repository[[]model.PointsEntry]
	clock   clock.Clock
}

// NewLedger creates an empty ledger and wipes whatever repo held before.
func NewLedger(ctx context.Context, repo storage.Repository[[]model.PointsEntry], clk clock.Clock) *Ledger {
	if clk == nil {
		clk = clock.New()
	}
	l := &Ledger{repo: repo, clock: clk}
	if err := repo.Clear(ctx); err != nil {
		logger.Error("failed to reset points", logger.ErrorField(err))
	}
	return l
}

// Compute converts accumulated minutes into points.
func Compute(minutes float64) int {
	return int(math.Floor(minutes * PerMinute))
}

// AddPoints credits seconds of listening to wallet. Empty wallets and
// non-positive durations are ignored. It returns the wallet's new total.
func (l *Ledger) AddPoints(ctx context.Context, wallet string, seconds float64) int {
	if wallet == "" || !(seconds > 0) {
		return l.Points(wallet)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now().UnixMilli()
	i := l.indexLocked(wallet)
	if i < 0 {
		if len(l.entries) >= MaxEntries {
			evicted := l.entries[0]
			l.entries = slices.Delete(l.entries, 0, 1)
			logger.Debug("points entry evicted", logger.String("wallet", evicted.WalletAddress))
		}
		l.entries = append(l.entries, model.PointsEntry{WalletAddress: wallet})
		i = len(l.entries) - 1
	}

	e := &l.entries[i]
	prev := e.TotalPoints
	e.PlayTimeMinutes += seconds / 60
	e.TotalPoints = Compute(e.PlayTimeMinutes)
	if gained := e.TotalPoints - prev; gained > 0 {
		metrics.PointsAwarded.Add(float64(gained))
	}
	e.LastUpdated = now
	total := e.TotalPoints

	if err := l.repo.Save(ctx, slices.Clone(l.entries)); err != nil {
		logger.Error("failed to save points", logger.ErrorField(err))
	}
	return total
}

// Points returns the wallet's total, 0 when unknown.
func (l *Ledger) Points(wallet string) int {
	e, _ := l.Entry(wallet)
	return e.TotalPoints
}

// PlayTimeMinutes returns the wallet's accumulated minutes, 0 when unknown.
func (l *Ledger) PlayTimeMinutes(wallet string) float64 {
	e, _ := l.Entry(wallet)
	return e.PlayTimeMinutes
}

// Entry returns the wallet's entry.
func (l *Ledger) Entry(wallet string) (model.PointsEntry, bool) {
	if wallet == "" {
		return model.PointsEntry{}, false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	i := l.indexLocked(wallet)
	if i < 0 {
		return model.PointsEntry{}, false
	}
	return l.entries[i], true
}

// All returns every entry sorted by points, highest first. Ties keep
// insertion order.
func (l *Ledger) All() []model.PointsEntry {
	l.mu.Lock()
	out := slices.Clone(l.entries)
	l.mu.Unlock()
	slices.SortStableFunc(out, func(a, b model.PointsEntry) int {
		return b.TotalPoints - a.TotalPoints
	})
	return lo.Ternary(out == nil, []model.PointsEntry{}, out)
}

// Len returns the number of wallets in the ledger.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Clear drops every entry and the persisted snapshot.
func (l *Ledger) Clear(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
	if err := l.repo.Clear(ctx); err != nil {
		logger.Error("failed to clear points", logger.ErrorField(err))
	}
}

func (l *Ledger) indexLocked(wallet string) int {
	_, i, ok := lo.FindIndexOf(l.entries, func(e model.PointsEntry) bool {
		return strings.EqualFold(e.WalletAddress, wallet)
	})
	if !ok {
		return -1
	}
	return i
}
