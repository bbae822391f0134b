package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gorilla/websocket"

	"basemusic/config"
	"basemusic/core/audio"
	"basemusic/core/auth"
	"basemusic/core/catalog"
	"basemusic/core/history"
	"basemusic/core/player"
	"basemusic/core/playlist"
	"basemusic/core/points"
	"basemusic/core/room"
	"basemusic/core/session"
	"basemusic/core/wallet"
	"basemusic/model"
	"basemusic/storage"
)

const testWallet = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"

type stubProber map[string]float64

func (p stubProber) Probe(_ context.Context, name string) (audio.Info, error) {
	d, ok := p[name]
	if !ok {
		return audio.Info{}, os.ErrNotExist
	}
	return audio.Info{Duration: d}, nil
}

type fixture struct {
	srv     *Server
	clk     *clock.Mock
	tracker *session.Tracker
	history *history.Recorder
	ledger  *points.Ledger
	hub     *room.Hub
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	cfg := config.FromEnv()
	cfg.AppURL = "https://music.example.com"
	cfg.AccountAssociationHeader = ""
	cfg.AccountAssociationPayload = ""
	cfg.AccountAssociationSignature = ""
	cfg.WebhookURL = ""

	clk := clock.NewMock()
	clk.Set(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))

	prober := stubProber{}
	for i, name := range config.DefaultAudioFiles {
		prober[name] = float64(1800 + i*60)
	}
	cat := catalog.New(prober, catalog.Options{
		Files:    config.DefaultAudioFiles,
		BaseURL:  "/audio",
		Artist:   "Ninad Bedekar Sir",
		AlbumArt: "/images/cover.png",
	}, clk)

	backend := storage.NewMemoryBackend()
	rec := history.NewRecorder(ctx, storage.NewSnapshot[[]model.PlayHistoryItem](backend, storage.KeyHistory), clk)
	ledger := points.NewLedger(ctx, storage.NewSnapshot[[]model.PointsEntry](backend, storage.KeyPoints), clk)
	store := playlist.NewStore(ctx, storage.NewSnapshot[[]model.Playlist](backend, storage.KeyPlaylists), clk)
	ws := wallet.NewSession()
	tracker := session.NewTracker(clk, rec, ledger, ws, 5*time.Second)

	hub := room.NewHub()
	go hub.Run()
	t.Cleanup(hub.Stop)

	srv := New(Deps{
		Config:    cfg,
		Engine:    player.NewEngine(audio.NewDeck(clk, prober, "/audio/", audio.WithRemoteProber(audio.HTTPProber{}))),
		Catalog:   cat,
		Playlists: store,
		History:   rec,
		Points:    ledger,
		Tracker:   tracker,
		Wallet:    ws,
		Tokens:    auth.NewTokens("test-secret", time.Hour, clk),
		Hub:       hub,
	})
	if _, err := srv.Discover(ctx); err != nil {
		t.Fatalf("Discover: %v", err)
	}
	return &fixture{srv: srv, clk: clk, tracker: tracker, history: rec, ledger: ledger, hub: hub}
}

func (f *fixture) do(t *testing.T, method, target string, body any, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func trackID(i int) string {
	return catalog.TrackID(i, config.DefaultAudioFiles[i])
}

func TestManifestOmitsEmptyAssociation(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/.well-known/farcaster.json", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	doc := decode[map[string]any](t, rec)
	if _, ok := doc["accountAssociation"]; ok {
		t.Fatalf("accountAssociation should be stripped: %v", doc)
	}
	app, ok := doc["miniapp"].(map[string]any)
	if !ok {
		t.Fatalf("miniapp missing: %v", doc)
	}
	if app["homeUrl"] != "https://music.example.com" {
		t.Fatalf("homeUrl = %v", app["homeUrl"])
	}
	if _, ok := app["webhookUrl"]; ok {
		t.Fatal("empty webhookUrl should be stripped")
	}
	if app["noindex"] != false {
		t.Fatalf("noindex = %v, booleans must be kept", app["noindex"])
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatal("missing CORS header")
	}
}

func TestTrackSearch(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/tracks?q=PANIPAT", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	res := decode[struct {
		Tracks []model.Track `json:"tracks"`
		Total  int           `json:"total"`
	}](t, rec)
	if res.Total != 3 || len(res.Tracks) != 3 {
		t.Fatalf("got %d tracks, want 3", res.Total)
	}
	if res.Tracks[0].ID != trackID(1) {
		t.Fatalf("first = %s, want %s", res.Tracks[0].ID, trackID(1))
	}
}

func TestPlaylistsAfterDiscovery(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/playlists", nil)
	res := decode[struct {
		Playlists []model.Playlist `json:"playlists"`
		CurrentID string           `json:"currentId"`
	}](t, rec)
	if len(res.Playlists) != 2 {
		t.Fatalf("got %d playlists, want 2", len(res.Playlists))
	}
	if res.CurrentID != "shivcharitra" {
		t.Fatalf("current = %q", res.CurrentID)
	}

	rec = f.do(t, http.MethodGet, "/api/playlists/current", nil)
	if rec.Code != http.StatusOK || decode[model.Playlist](t, rec).ID != "shivcharitra" {
		t.Fatalf("current playlist: %d %s", rec.Code, rec.Body.String())
	}
	if len(f.srv.engine.Tracks()) != 4 {
		t.Fatalf("engine has %d tracks, want 4", len(f.srv.engine.Tracks()))
	}
}

func TestPlaylistCRUD(t *testing.T) {
	f := newFixture(t)

	if rec := f.do(t, http.MethodPost, "/api/playlists", "{not json"); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad body status = %d", rec.Code)
	}
	if rec := f.do(t, http.MethodPost, "/api/playlists", map[string]string{"name": "  "}); rec.Code != http.StatusBadRequest {
		t.Fatalf("blank name status = %d", rec.Code)
	}

	rec := f.do(t, http.MethodPost, "/api/playlists", map[string]string{"name": "Favourites"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d", rec.Code)
	}
	created := decode[model.Playlist](t, rec)
	if !strings.HasPrefix(created.ID, "playlist-") || len(created.Tracks) != 0 {
		t.Fatalf("created = %+v", created)
	}

	base := "/api/playlists/" + created.ID
	rec = f.do(t, http.MethodPost, base+"/tracks", map[string]string{"trackId": trackID(2)})
	if rec.Code != http.StatusOK {
		t.Fatalf("add status = %d: %s", rec.Code, rec.Body.String())
	}
	if got := decode[model.Playlist](t, rec); len(got.Tracks) != 1 || got.Tracks[0].ID != trackID(2) {
		t.Fatalf("after add = %+v", got)
	}
	if n := len(f.srv.engine.Tracks()); n != 5 {
		t.Fatalf("engine tracks = %d, want 5", n)
	}

	rec = f.do(t, http.MethodPost, base+"/tracks", map[string]string{"url": "https://cdn.example.com/a.mp3", "title": "A"})
	adhoc := decode[model.Playlist](t, rec)
	if len(adhoc.Tracks) != 2 || adhoc.Tracks[1].Artist != "Unknown Artist" {
		t.Fatalf("ad hoc track = %+v", adhoc.Tracks)
	}

	if rec := f.do(t, http.MethodPost, base+"/tracks", map[string]string{"trackId": "nope"}); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown track status = %d", rec.Code)
	}
	if rec := f.do(t, http.MethodPost, base+"/tracks", map[string]string{}); rec.Code != http.StatusBadRequest {
		t.Fatalf("empty add status = %d", rec.Code)
	}

	rec = f.do(t, http.MethodPut, base+"/cover", map[string]string{"coverImage": "/images/fav.png"})
	if decode[model.Playlist](t, rec).CoverImage != "/images/fav.png" {
		t.Fatalf("cover not set: %s", rec.Body.String())
	}

	rec = f.do(t, http.MethodDelete, base+"/tracks/"+url.PathEscape(trackID(2)), nil)
	if got := decode[model.Playlist](t, rec); len(got.Tracks) != 1 {
		t.Fatalf("after remove = %+v", got.Tracks)
	}

	if rec := f.do(t, http.MethodPost, base+"/select", nil); rec.Code != http.StatusOK {
		t.Fatalf("select status = %d", rec.Code)
	}
	if rec := f.do(t, http.MethodDelete, base, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}
	cur := decode[model.Playlist](t, f.do(t, http.MethodGet, "/api/playlists/current", nil))
	if cur.ID != "shivcharitra" {
		t.Fatalf("fallback current = %q", cur.ID)
	}
}

func TestUnknownPlaylistIs404(t *testing.T) {
	f := newFixture(t)
	cases := []struct {
		method, path string
		body         any
	}{
		{http.MethodGet, "/api/playlists/missing", nil},
		{http.MethodDelete, "/api/playlists/missing", nil},
		{http.MethodPost, "/api/playlists/missing/select", nil},
		{http.MethodPut, "/api/playlists/missing/cover", map[string]string{"coverImage": "x"}},
		{http.MethodPost, "/api/playlists/missing/tracks", map[string]string{"trackId": trackID(0)}},
		{http.MethodDelete, "/api/playlists/missing/tracks/x", nil},
	}
	for _, tc := range cases {
		if rec := f.do(t, tc.method, tc.path, tc.body); rec.Code != http.StatusNotFound {
			t.Fatalf("%s %s = %d, want 404", tc.method, tc.path, rec.Code)
		}
	}
}

func TestPlayerControls(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/player/play", map[string]string{"trackId": trackID(1)})
	if rec.Code != http.StatusOK {
		t.Fatalf("play status = %d: %s", rec.Code, rec.Body.String())
	}
	st := decode[model.PlaybackState](t, rec)
	if !st.IsPlaying || st.CurrentTrackID() != trackID(1) || st.Duration != 1860 {
		t.Fatalf("after play = %+v", st)
	}

	rec = f.do(t, http.MethodPost, "/api/player/seek", map[string]float64{"time": 5000})
	if got := decode[model.PlaybackState](t, rec).CurrentTime; got != 1860 {
		t.Fatalf("seek clamp = %v", got)
	}
	if rec := f.do(t, http.MethodPost, "/api/player/seek", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("seek without time = %d", rec.Code)
	}
	if rec := f.do(t, http.MethodPost, "/api/player/rewind", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown action = %d", rec.Code)
	}
	if rec := f.do(t, http.MethodPost, "/api/player/play", map[string]string{"trackId": "nope"}); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown track = %d", rec.Code)
	}

	rec = f.do(t, http.MethodPost, "/api/player/next", nil)
	if got := decode[model.PlaybackState](t, rec).CurrentTrackID(); got != trackID(2) {
		t.Fatalf("next = %s", got)
	}
	rec = f.do(t, http.MethodPost, "/api/player/volume", map[string]float64{"volume": 1.5})
	if got := decode[model.PlaybackState](t, rec).Volume; got != 1 {
		t.Fatalf("volume = %v", got)
	}
	rec = f.do(t, http.MethodPost, "/api/player/repeat", nil)
	if got := decode[model.PlaybackState](t, rec).Repeat; got != model.RepeatAll {
		t.Fatalf("repeat = %v", got)
	}
	rec = f.do(t, http.MethodPost, "/api/player/toggle", nil)
	if decode[model.PlaybackState](t, rec).IsPlaying {
		t.Fatal("toggle should pause")
	}
	rec = f.do(t, http.MethodGet, "/api/player", nil)
	if decode[model.PlaybackState](t, rec).CurrentTrackID() != trackID(2) {
		t.Fatalf("state = %s", rec.Body.String())
	}
}

func TestPlayURLTrack(t *testing.T) {
	cdn := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/song.mp3" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("bytes the server cannot measure"))
	}))
	defer cdn.Close()

	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/api/player/play", map[string]string{"url": cdn.URL + "/song.mp3"})
	if rec.Code != http.StatusOK {
		t.Fatalf("play status = %d: %s", rec.Code, rec.Body.String())
	}
	st := decode[model.PlaybackState](t, rec)
	if !st.IsPlaying || st.CurrentTrack == nil || st.CurrentTrack.URL != cdn.URL+"/song.mp3" {
		t.Fatalf("after play = %+v", st)
	}

	f.clk.Add(90 * time.Second)
	rec = f.do(t, http.MethodGet, "/api/player", nil)
	if st := decode[model.PlaybackState](t, rec); !st.IsPlaying || st.CurrentTime != 90 {
		t.Fatalf("state = %+v", st)
	}
	if n := len(f.history.Items()); n != 1 {
		t.Fatalf("history has %d entries, want 1", n)
	}
}

func TestUnreachableURLTrackLeavesNoHistory(t *testing.T) {
	cdn := httptest.NewServer(http.NotFoundHandler())
	defer cdn.Close()

	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/api/player/play", map[string]string{"url": cdn.URL + "/gone.mp3"})
	st := decode[model.PlaybackState](t, rec)
	if st.IsPlaying || st.CurrentTrack == nil {
		t.Fatalf("after play = %+v", st)
	}
	f.clk.Add(30 * time.Second)
	f.tracker.Tick()
	if n := len(f.history.Items()); n != 0 {
		t.Fatalf("history has %d entries, want 0", n)
	}
}

func TestPlaybackFeedsHistoryAndPoints(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/wallet/connect", map[string]string{"address": strings.ToLower(testWallet)})
	if rec.Code != http.StatusOK {
		t.Fatalf("connect status = %d: %s", rec.Code, rec.Body.String())
	}
	conn := decode[struct {
		Wallet wallet.State `json:"wallet"`
		Token  string       `json:"token"`
	}](t, rec)
	if conn.Wallet.Address != testWallet || conn.Wallet.ChainID != wallet.BaseChainID || conn.Token == "" {
		t.Fatalf("connect = %+v", conn)
	}

	f.do(t, http.MethodPost, "/api/player/play", map[string]string{"trackId": trackID(0)})
	f.clk.Add(300 * time.Second)
	f.tracker.Tick()
	f.do(t, http.MethodPost, "/api/player/pause", nil)

	rec = f.do(t, http.MethodGet, "/api/history", nil)
	hist := decode[struct {
		Items []model.PlayHistoryItem `json:"items"`
	}](t, rec)
	if len(hist.Items) != 1 || hist.Items[0].PlayDuration != 300 {
		t.Fatalf("history = %+v", hist.Items)
	}

	rec = f.do(t, http.MethodGet, "/api/history/"+url.PathEscape(trackID(0))+"/progress", nil)
	prog := decode[struct {
		Progress float64 `json:"progress"`
	}](t, rec)
	if prog.Progress < 16.6 || prog.Progress > 16.7 {
		t.Fatalf("progress = %v", prog.Progress)
	}
	if rec := f.do(t, http.MethodGet, "/api/history/unknown/progress", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown progress = %d", rec.Code)
	}

	rec = f.do(t, http.MethodGet, "/api/points/"+testWallet, nil)
	if got := decode[model.PointsEntry](t, rec).TotalPoints; got != 1 {
		t.Fatalf("points = %d, want 1", got)
	}

	if rec := f.do(t, http.MethodGet, "/api/points/me", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("me without token = %d", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, "/api/points/me", nil, "Authorization", "Bearer junk"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("me with bad token = %d", rec.Code)
	}
	rec = f.do(t, http.MethodGet, "/api/points/me", nil, "Authorization", "Bearer "+conn.Token)
	if rec.Code != http.StatusOK || decode[model.PointsEntry](t, rec).WalletAddress != testWallet {
		t.Fatalf("me = %d %s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, http.MethodGet, "/api/points?limit=1", nil)
	board := decode[struct {
		Entries []model.PointsEntry `json:"entries"`
	}](t, rec)
	if len(board.Entries) != 1 {
		t.Fatalf("leaderboard = %+v", board.Entries)
	}

	if rec := f.do(t, http.MethodDelete, "/api/history", nil); rec.Code != http.StatusNoContent {
		t.Fatalf("clear history = %d", rec.Code)
	}
	if f.history.Len() != 0 {
		t.Fatal("history not cleared")
	}
}

func TestWalletEndpoints(t *testing.T) {
	f := newFixture(t)
	if rec := f.do(t, http.MethodPost, "/api/wallet/connect", map[string]string{"address": "0x123"}); rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid address = %d", rec.Code)
	}
	if rec := f.do(t, http.MethodPost, "/api/wallet/chain", map[string]int64{"chainId": 1}); rec.Code != http.StatusConflict {
		t.Fatalf("switch while disconnected = %d", rec.Code)
	}
	f.do(t, http.MethodPost, "/api/wallet/connect", map[string]string{"address": testWallet})
	rec := f.do(t, http.MethodPost, "/api/wallet/chain", map[string]int64{"chainId": 84532})
	if decode[wallet.State](t, rec).ChainID != 84532 {
		t.Fatalf("switch = %s", rec.Body.String())
	}
	rec = f.do(t, http.MethodPost, "/api/wallet/disconnect", nil)
	if decode[wallet.State](t, rec).Connected {
		t.Fatal("still connected")
	}
}

func TestPlayerWebsocket(t *testing.T) {
	f := newFixture(t)
	ts := httptest.NewServer(f.srv.Handler())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/player"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var msg room.WSMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read sync: %v", err)
	}
	if msg.Type != room.MsgTypeSync {
		t.Fatalf("first message = %s", msg.Type)
	}

	data, _ := json.Marshal(map[string]string{"trackId": trackID(3)})
	if err := conn.WriteJSON(room.WSMessage{Type: room.MsgTypePlay, Data: data}); err != nil {
		t.Fatalf("write: %v", err)
	}

	for {
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read event: %v", err)
		}
		if msg.Type != room.MsgTypePlayback {
			continue
		}
		var ev player.Event
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			t.Fatalf("decode event: %v", err)
		}
		if ev.State.CurrentTrackID() == trackID(3) {
			break
		}
	}

	if err := conn.WriteJSON(room.WSMessage{Type: "rewind"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	for {
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read error reply: %v", err)
		}
		if msg.Type == room.MsgTypeError {
			break
		}
	}
}

func TestPreflightIsAnswered(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodOptions, "/api/playlists/current", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("preflight status = %d", rec.Code)
	}
	if !strings.Contains(rec.Header().Get("Access-Control-Allow-Methods"), "DELETE") {
		t.Fatalf("allow methods = %q", rec.Header().Get("Access-Control-Allow-Methods"))
	}
}
