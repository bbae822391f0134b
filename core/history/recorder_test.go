package history

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"basemusic/model"
	"basemusic/storage"
)

func track(i int) model.Track {
	return model.Track{
		ID:       fmt.Sprintf("track-%d", i),
		Title:    fmt.Sprintf("Ep %d", i),
		Artist:   "Ninad Bedekar Sir",
		URL:      fmt.Sprintf("/audio/ep%d.mp3", i),
		Duration: 200,
	}
}

func newTestRecorder(t *testing.T) (*Recorder, *storage.Snapshot[[]model.PlayHistoryItem], *clock.Mock) {
	t.Helper()
	repo := storage.NewSnapshot[[]model.PlayHistoryItem](storage.NewMemoryBackend(), storage.KeyHistory)
	clk := clock.NewMock()
	clk.Set(time.UnixMilli(1_700_000_000_000))
	return NewRecorder(context.Background(), repo, clk), repo, clk
}

func TestAddDeduplicates(t *testing.T) {
	ctx := context.Background()
	r, _, _ := newTestRecorder(t)

	r.Add(ctx, track(1), 30, "")
	r.Add(ctx, track(2), 0, "")
	r.Add(ctx, track(1), 0, "0xabc")

	items := r.Items()
	if len(items) != 2 {
		t.Fatalf("len = %d, want 2", len(items))
	}
	if items[0].TrackID != "track-1" || items[0].PlayDuration != 0 || items[0].WalletAddress != "0xabc" {
		t.Fatalf("front = %+v, want fresh track-1", items[0])
	}
}

func TestUpdateMovesToFront(t *testing.T) {
	ctx := context.Background()
	r, _, clk := newTestRecorder(t)

	r.Add(ctx, track(1), 0, "0xabc")
	r.Add(ctx, track(2), 0, "")
	clk.Add(time.Minute)

	if !r.Update(ctx, "track-1", 5, "") {
		t.Fatal("Update of known track returned false")
	}
	items := r.Items()
	if items[0].TrackID != "track-1" {
		t.Fatalf("touched entry not at front: %v", items[0].TrackID)
	}
	if items[0].PlayDuration != 5 {
		t.Fatalf("playDuration = %v", items[0].PlayDuration)
	}
	if items[0].WalletAddress != "0xabc" {
		t.Fatal("empty wallet should keep the previous one")
	}
	if items[0].PlayDate != clk.Now().UnixMilli() {
		t.Fatal("playDate not refreshed")
	}
}

func TestUpdateUnknownIsNoop(t *testing.T) {
	r, _, _ := newTestRecorder(t)
	if r.Update(context.Background(), "missing", 5, "") {
		t.Fatal("Update of unknown track returned true")
	}
	if r.Len() != 0 {
		t.Fatal("Update created an entry")
	}
}

func TestUpdateIgnoresNegativeDelta(t *testing.T) {
	ctx := context.Background()
	r, _, _ := newTestRecorder(t)
	r.Add(ctx, track(1), 10, "")
	r.Update(ctx, "track-1", -4, "")
	if got, _ := r.Get("track-1"); got.PlayDuration != 10 {
		t.Fatalf("playDuration = %v, want 10", got.PlayDuration)
	}
}

func TestCapEvictsLeastRecentlyTouched(t *testing.T) {
	ctx := context.Background()
	r, _, _ := newTestRecorder(t)

	for i := 0; i < MaxItems; i++ {
		r.Add(ctx, track(i), 0, "")
	}
	// Touch the oldest so the second oldest becomes the victim.
	r.Update(ctx, "track-0", 1, "")
	r.Add(ctx, track(MaxItems), 0, "")

	if r.Len() != MaxItems {
		t.Fatalf("len = %d, want %d", r.Len(), MaxItems)
	}
	if _, ok := r.Get("track-0"); !ok {
		t.Fatal("recently touched entry was evicted")
	}
	if _, ok := r.Get("track-1"); ok {
		t.Fatal("least recently touched entry survived")
	}
}

func TestPersistsAndReloadsInOrder(t *testing.T) {
	ctx := context.Background()
	r, repo, clk := newTestRecorder(t)
	r.Add(ctx, track(1), 0, "")
	r.Add(ctx, track(2), 0, "")
	r.Update(ctx, "track-1", 3, "")

	stored, err := repo.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(stored) != 2 || stored[0].TrackID != "track-1" {
		t.Fatalf("stored = %+v", stored)
	}

	again := NewRecorder(ctx, repo, clk)
	items := again.Items()
	if len(items) != 2 || items[0].TrackID != "track-1" || items[1].TrackID != "track-2" {
		t.Fatalf("reloaded = %+v", items)
	}
}

func TestMalformedSnapshotStartsEmpty(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemoryBackend()
	_ = backend.Put(ctx, storage.KeyHistory, []byte("{not json"))
	repo := storage.NewSnapshot[[]model.PlayHistoryItem](backend, storage.KeyHistory)

	r := NewRecorder(ctx, repo, clock.NewMock())
	if r.Len() != 0 {
		t.Fatalf("len = %d, want 0", r.Len())
	}
}

func TestRecentAndProgress(t *testing.T) {
	ctx := context.Background()
	r, _, _ := newTestRecorder(t)
	for i := 0; i < 12; i++ {
		r.Add(ctx, track(i), 0, "")
	}
	if got := len(r.Recent(0)); got != DefaultRecent {
		t.Fatalf("Recent(0) = %d items, want %d", got, DefaultRecent)
	}
	if got := r.Recent(3); len(got) != 3 || got[0].TrackID != "track-11" {
		t.Fatalf("Recent(3) = %+v", got)
	}

	r.Update(ctx, "track-4", 50, "")
	if got := r.Progress("track-4"); got != 25 {
		t.Fatalf("Progress = %v, want 25", got)
	}
	if got := r.Progress("missing"); got != 0 {
		t.Fatalf("Progress(missing) = %v", got)
	}
}

func TestClearRemovesSnapshot(t *testing.T) {
	ctx := context.Background()
	r, repo, _ := newTestRecorder(t)
	r.Add(ctx, track(1), 0, "")
	r.Clear(ctx)

	if r.Len() != 0 {
		t.Fatal("entries survived Clear")
	}
	stored, err := repo.Load(ctx)
	if err != nil || stored != nil {
		t.Fatalf("stored = %v, err = %v", stored, err)
	}
}
