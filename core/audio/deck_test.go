package audio

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
)

type stubProber struct {
	infos map[string]Info
	names []string
}

func (s *stubProber) Probe(_ context.Context, name string) (Info, error) {
	s.names = append(s.names, name)
	info, ok := s.infos[name]
	if !ok {
		return Info{}, errors.New("not found")
	}
	return info, nil
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-6 }

func TestDeckPositionFollowsClock(t *testing.T) {
	clk := clock.NewMock()
	prober := &stubProber{infos: map[string]Info{"Ep 01.mp3": {Duration: 120}}}
	deck := NewDeck(clk, prober, "/audio/")

	var gotDuration float64
	err := deck.Load(context.Background(), "/audio/Ep%2001.mp3", Handlers{
		OnDuration: func(s float64) { gotDuration = s },
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if prober.names[0] != "Ep 01.mp3" {
		t.Fatalf("probed %q, want unescaped name", prober.names[0])
	}
	if gotDuration != 120 || deck.Duration() != 120 {
		t.Fatalf("duration = %v / %v, want 120", gotDuration, deck.Duration())
	}

	if err := deck.Play(); err != nil {
		t.Fatalf("Play: %v", err)
	}
	clk.Add(30 * time.Second)
	if pos := deck.Position(); !near(pos, 30) {
		t.Fatalf("position = %v, want 30", pos)
	}

	deck.Pause()
	clk.Add(10 * time.Second)
	if pos := deck.Position(); !near(pos, 30) {
		t.Fatalf("paused position moved to %v", pos)
	}

	deck.Seek(500)
	if pos := deck.Position(); !near(pos, 120) {
		t.Fatalf("seek past end = %v, want clamp to 120", pos)
	}
	deck.Seek(-3)
	if pos := deck.Position(); pos != 0 {
		t.Fatalf("seek below zero = %v, want 0", pos)
	}
}

func TestDeckLoadFailure(t *testing.T) {
	deck := NewDeck(clock.NewMock(), &stubProber{}, "/audio/")
	if err := deck.Load(context.Background(), "/audio/missing.mp3", Handlers{}); err == nil {
		t.Fatal("expected load error")
	}
	if err := deck.Play(); !errors.Is(err, ErrNotLoaded) {
		t.Fatalf("Play after failed load = %v, want ErrNotLoaded", err)
	}
	if deck.Duration() != 0 || deck.Position() != 0 {
		t.Fatal("failed load must leave duration and position at 0")
	}
}

func TestDeckFiresEnded(t *testing.T) {
	clk := clock.NewMock()
	prober := &stubProber{infos: map[string]Info{"a.mp3": {Duration: 5}}}
	deck := NewDeck(clk, prober, "/audio/")

	ended := make(chan struct{}, 1)
	err := deck.Load(context.Background(), "/audio/a.mp3", Handlers{
		OnEnded: func() { ended <- struct{}{} },
	})
	if err != nil {
		t.Fatal(err)
	}
	_ = deck.Play()
	clk.Add(6 * time.Second)

	select {
	case <-ended:
	case <-time.After(2 * time.Second):
		t.Fatal("OnEnded not called")
	}
	if deck.Playing() {
		t.Fatal("deck still playing after end")
	}
	if pos := deck.Position(); !near(pos, 5) {
		t.Fatalf("position after end = %v, want 5", pos)
	}
}

func TestDeckCloseDropsHandlers(t *testing.T) {
	clk := clock.NewMock()
	prober := &stubProber{infos: map[string]Info{"a.mp3": {Duration: 5}}}
	deck := NewDeck(clk, prober, "/audio/")

	ended := make(chan struct{}, 1)
	_ = deck.Load(context.Background(), "/audio/a.mp3", Handlers{OnEnded: func() { ended <- struct{}{} }})
	_ = deck.Play()
	_ = deck.Close()
	clk.Add(10 * time.Second)

	select {
	case <-ended:
		t.Fatal("handler fired after Close")
	case <-time.After(50 * time.Millisecond):
	}
	if deck.Position() != 0 || deck.Duration() != 0 {
		t.Fatal("Close must reset position and duration")
	}
}

func TestDeckVolumeClamp(t *testing.T) {
	deck := NewDeck(clock.NewMock(), &stubProber{}, "")
	deck.SetVolume(3)
	if deck.Volume() != 1 {
		t.Fatalf("volume = %v, want 1", deck.Volume())
	}
	deck.SetVolume(math.NaN())
	if deck.Volume() != 0 {
		t.Fatalf("volume = %v, want 0 for NaN", deck.Volume())
	}
}

func TestDeckRemoteStreamOfUnknownLength(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("streamed bytes"))
	}))
	defer srv.Close()

	clk := clock.NewMock()
	local := &stubProber{}
	deck := NewDeck(clk, local, "/audio/", WithRemoteProber(HTTPProber{Client: srv.Client()}))

	ended := false
	if err := deck.Load(context.Background(), srv.URL+"/song.mp3", Handlers{OnEnded: func() { ended = true }}); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(local.names) != 0 {
		t.Fatalf("local prober asked for %v", local.names)
	}
	if deck.Duration() != 0 {
		t.Fatalf("duration = %v, want 0", deck.Duration())
	}
	if err := deck.Play(); err != nil {
		t.Fatalf("Play: %v", err)
	}
	clk.Add(10 * time.Minute)
	if pos := deck.Position(); !near(pos, 600) {
		t.Fatalf("position = %v, want 600", pos)
	}
	if ended || !deck.Playing() {
		t.Fatal("stream of unknown length should keep playing")
	}

	deck.Seek(42)
	if pos := deck.Position(); !near(pos, 42) {
		t.Fatalf("position after seek = %v, want 42", pos)
	}
}

func TestDeckRemoteWithoutRemoteProber(t *testing.T) {
	prober := &stubProber{}
	deck := NewDeck(clock.NewMock(), prober, "/audio/")
	if err := deck.Load(context.Background(), "https://cdn.example.com/a.mp3", Handlers{}); err == nil {
		t.Fatal("expected load failure")
	}
	if len(prober.names) != 1 || prober.names[0] != "https://cdn.example.com/a.mp3" {
		t.Fatalf("probed %v", prober.names)
	}
}
