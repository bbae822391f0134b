package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/minio/minio-go/v7"

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
	"basemusic/logger"
	"basemusic/metrics"
	"basemusic/model"
	"basemusic/storage"
)

const shutdownTimeout = 5 * time.Second

// NewCatalog builds the catalog and its prober for cfg. The MinIO client is
// nil unless audio is served from MinIO.
func NewCatalog(ctx context.Context, cfg *config.Config, clk clock.Clock) (*catalog.Catalog, audio.Prober, *minio.Client, error) {
	var (
		prober audio.Prober
		client *minio.Client
	)
	switch cfg.AudioSource {
	case "", "file":
		prober = audio.FileProber{Dir: cfg.AudioDir}
	case "minio":
		c, err := storage.NewMinioClient(ctx, cfg)
		if err != nil {
			return nil, nil, nil, err
		}
		client = c
		prober = audio.MinioProber{Client: c, Bucket: cfg.MinioBucket, Prefix: MinioAudioPrefix}
	default:
		return nil, nil, nil, fmt.Errorf("unknown audio source %q", cfg.AudioSource)
	}

	cat := catalog.New(prober, catalog.Options{
		Files:        cfg.AudioFiles,
		BaseURL:      cfg.AudioBaseURL,
		Artist:       cfg.AudioArtist,
		AlbumArt:     cfg.AlbumArt,
		ProbeTimeout: cfg.ProbeTimeout,
	}, clk)
	return cat, prober, client, nil
}

// Start wires the application and serves until ctx is cancelled. On shutdown
// the tracker flushes before storage is closed.
func Start(ctx context.Context, cfg *config.Config) error {
	metrics.RegisterMetrics()

	backend, closeStorage, err := storage.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer func() {
		if err := closeStorage(); err != nil {
			logger.Warn("failed to close storage", logger.ErrorField(err))
		}
	}()

	clk := clock.New()
	cat, prober, minioClient, err := NewCatalog(ctx, cfg, clk)
	if err != nil {
		return fmt.Errorf("init catalog: %w", err)
	}

	deck := audio.NewDeck(clk, prober, cfg.AudioBaseURL+"/",
		audio.WithRemoteProber(audio.HTTPProber{Client: &http.Client{Timeout: cfg.ProbeTimeout}}))
	engine := player.NewEngine(deck, player.WithLoadTimeout(cfg.ProbeTimeout))

	recorder := history.NewRecorder(ctx, storage.NewSnapshot[[]model.PlayHistoryItem](backend, storage.KeyHistory), clk)
	ledger := points.NewLedger(ctx, storage.NewSnapshot[[]model.PointsEntry](backend, storage.KeyPoints), clk)
	playlists := playlist.NewStore(ctx, storage.NewSnapshot[[]model.Playlist](backend, storage.KeyPlaylists), clk)
	walletSession := wallet.NewSession()
	tracker := session.NewTracker(clk, recorder, ledger, walletSession, cfg.FlushInterval)

	hub := room.NewHub()
	go hub.Run()
	defer hub.Stop()

	srv := New(Deps{
		Config:    cfg,
		Engine:    engine,
		Catalog:   cat,
		Playlists: playlists,
		History:   recorder,
		Points:    ledger,
		Tracker:   tracker,
		Wallet:    walletSession,
		Tokens:    auth.NewTokens(cfg.JWTSecret, cfg.TokenTTL, clk),
		Hub:       hub,
		Static:    NewStaticHandler(cfg, minioClient),
	})

	if _, err := srv.Discover(ctx); err != nil {
		return fmt.Errorf("discover catalog: %w", err)
	}

	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		tracker.Run(runCtx)
	}()

	if cfg.WatchAudioDir && (cfg.AudioSource == "" || cfg.AudioSource == "file") {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := catalog.Watch(runCtx, cfg.AudioDir, catalog.DefaultWatchDelay, func() {
				if _, err := srv.Discover(runCtx); err != nil && !errors.Is(err, context.Canceled) {
					logger.Warn("catalog rediscovery failed", logger.ErrorField(err))
				}
			})
			if err != nil {
				logger.Warn("audio directory watch stopped", logger.ErrorField(err))
			}
		}()
	}

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("basemusic server listening", logger.String("addr", cfg.ListenAddr))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err = <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
	case <-ctx.Done():
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if serr := httpServer.Shutdown(shutdownCtx); serr != nil {
			logger.Warn("graceful shutdown failed", logger.ErrorField(serr))
		}
		cancel()
	}

	engine.Stop()
	stop()
	wg.Wait()
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return nil
}
