package storage

import (
	"context"
	"fmt"

	"basemusic/config"
	"basemusic/db"
	"basemusic/logger"
)

// Open builds the backend selected by cfg.StorageBackend. The returned close
// function releases any connection the backend holds.
func Open(ctx context.Context, cfg *config.Config) (Backend, func() error, error) {
	noop := func() error { return nil }

	switch cfg.StorageBackend {
	case "", "file":
		b, err := NewFileBackend(cfg.DataDir)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("using file snapshot storage", logger.String("dir", cfg.DataDir))
		return b, noop, nil

	case "memory":
		logger.Info("using in-memory snapshot storage")
		return NewMemoryBackend(), noop, nil

	case "redis":
		client, err := db.ConnectRedis(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("using Redis snapshot storage", logger.String("addr", client.Options().Addr))
		return NewRedisBackend(client, cfg.KeyPrefix), client.Close, nil

	case "mysql":
		gdb, err := db.ConnectGormDB(cfg)
		if err != nil {
			return nil, nil, err
		}
		b := NewGormBackend(gdb, cfg.KeyPrefix)
		if err := b.Migrate(); err != nil {
			db.CloseGormDB(gdb)
			return nil, nil, err
		}
		return b, func() error { return db.CloseGormDB(gdb) }, nil

	case "minio":
		client, err := NewMinioClient(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("using MinIO snapshot storage", logger.String("bucket", cfg.MinioBucket))
		return NewMinioBackend(client, cfg.MinioBucket, cfg.KeyPrefix), noop, nil
	}
	return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
}
