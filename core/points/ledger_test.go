package points

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/benbjohnson/clock"

	"basemusic/model"
	"basemusic/storage"
)

func newTestLedger(t *testing.T) (*Ledger, *storage.Snapshot[[]model.PointsEntry]) {
	t.Helper()
	repo := storage.NewSnapshot[[]model.PointsEntry](storage.NewMemoryBackend(), storage.KeyPoints)
	return NewLedger(context.Background(), repo, clock.NewMock()), repo
}

func TestPointsAlwaysFloorOfMinutes(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)
	w := "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"

	deltas := []float64{5, 5, 59.5, 120, 0.25, 300, 7, 1500}
	for _, d := range deltas {
		l.AddPoints(ctx, w, d)
		minutes := l.PlayTimeMinutes(w)
		if got, want := l.Points(w), int(math.Floor(minutes*PerMinute)); got != want {
			t.Fatalf("after +%vs: points = %d, want floor(%v*0.2) = %d", d, got, minutes, want)
		}
	}
}

func TestIgnoredInputs(t *testing.T) {
	ctx := context.Background()
	l, repo := newTestLedger(t)

	l.AddPoints(ctx, "0xabc", 0)
	l.AddPoints(ctx, "0xabc", -30)
	l.AddPoints(ctx, "", 600)

	if l.Len() != 0 {
		t.Fatalf("ledger changed: %+v", l.All())
	}
	if stored, _ := repo.Load(ctx); stored != nil {
		t.Fatalf("snapshot written: %+v", stored)
	}
}

func TestWalletsCompareCaseInsensitively(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)
	l.AddPoints(ctx, "0xABCdef", 60*5)
	l.AddPoints(ctx, "0xabcDEF", 60*5)

	if l.Len() != 1 {
		t.Fatalf("len = %d, want 1", l.Len())
	}
	if got := l.Points("0XABCDEF"); got != 2 {
		t.Fatalf("points = %d, want 2", got)
	}
	if e, _ := l.Entry("0xabcdef"); e.WalletAddress != "0xABCdef" {
		t.Fatalf("address = %q, want first-seen form", e.WalletAddress)
	}
}

func TestUnknownWalletIsZero(t *testing.T) {
	l, _ := newTestLedger(t)
	if l.Points("0xnobody") != 0 || l.PlayTimeMinutes("0xnobody") != 0 {
		t.Fatal("unknown wallet should read as zero")
	}
}

func TestAllSortedDescending(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)
	l.AddPoints(ctx, "a", 60*5)
	l.AddPoints(ctx, "b", 60*15)
	l.AddPoints(ctx, "c", 60*5)
	l.AddPoints(ctx, "d", 60*10)

	var got []string
	for _, e := range l.All() {
		got = append(got, e.WalletAddress)
	}
	if fmt.Sprint(got) != "[b d a c]" {
		t.Fatalf("order = %v, want [b d a c]", got)
	}
}

func TestWipedOnConstruction(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemoryBackend()
	repo := storage.NewSnapshot[[]model.PointsEntry](backend, storage.KeyPoints)
	_ = repo.Save(ctx, []model.PointsEntry{{WalletAddress: "0xabc", TotalPoints: 9, PlayTimeMinutes: 45}})

	l := NewLedger(ctx, repo, clock.NewMock())
	if l.Points("0xabc") != 0 {
		t.Fatal("ledger should start fresh")
	}
	if _, err := backend.Get(ctx, storage.KeyPoints); err == nil {
		t.Fatal("stored points should be removed at construction")
	}
}

// The ledger evicts by creation order while history evicts by recency. A
// wallet that keeps listening is still the first to go once it is the oldest.
func TestEvictionIsByInsertionOrderNotRecency(t *testing.T) {
	ctx := context.Background()
	l, repo := newTestLedger(t)
	for i := 0; i < MaxEntries; i++ {
		l.AddPoints(ctx, fmt.Sprintf("wallet-%03d", i), 60)
	}
	l.AddPoints(ctx, "wallet-000", 60)
	l.AddPoints(ctx, "wallet-new", 60)

	if l.Len() != MaxEntries {
		t.Fatalf("len = %d, want %d", l.Len(), MaxEntries)
	}
	if _, ok := l.Entry("wallet-000"); ok {
		t.Fatal("oldest created wallet should be evicted even though it was just updated")
	}
	if _, ok := l.Entry("wallet-new"); !ok {
		t.Fatal("new wallet missing")
	}
	stored, _ := repo.Load(ctx)
	if len(stored) != MaxEntries {
		t.Fatalf("stored %d entries", len(stored))
	}
}

func TestShortSessionEarnsZero(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)
	l.AddPoints(ctx, "0xabc", 125)
	if got := l.Points("0xabc"); got != 0 {
		t.Fatalf("points = %d, want 0 (125s is 2.08 min * 0.2)", got)
	}
}
