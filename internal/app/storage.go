package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/assigndesk/internal/blob"
	"github.com/hitoshi/assigndesk/internal/config"
	"github.com/hitoshi/assigndesk/internal/database"
	"github.com/hitoshi/assigndesk/internal/handler"
)

// storage は選択されたブロブストアと、その疎通確認・終了処理をまとめたもの。
type storage struct {
	store  blob.Store
	health handler.HealthChecker // nilの場合は疎通確認しない
	close  func() error
}

// openStorage はSTORAGE_BACKENDに応じたブロブストアを開く。
// 外部サービスを使うバックエンドは起動時に疎通を確認する。
func openStorage(ctx context.Context, cfg *config.Config) (*storage, error) {
	noop := func() error { return nil }

	switch cfg.StorageBackend {
	case config.BackendMemory:
		slog.Warn("using in-memory storage; events are lost on restart")
		return &storage{store: blob.NewMemoryStore(), close: noop}, nil

	case config.BackendFile:
		store, err := blob.NewFileStore(cfg.StorageDir)
		if err != nil {
			return nil, err
		}
		slog.Info("file storage ready", slog.String("dir", cfg.StorageDir))
		return &storage{store: store, close: noop}, nil

	case config.BackendPostgres:
		db, err := database.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		store := blob.NewPostgresStore(db)
		if err := store.Ping(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		slog.Info("database connection established",
			slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
		)
		return &storage{store: store, health: store, close: db.Close}, nil

	case config.BackendRedis:
		client, err := blob.NewRedisClient(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		store := blob.NewRedisStore(client, cfg.RedisKeyPrefix)
		if err := store.Ping(ctx); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		slog.Info("redis connection established", slog.String("key_prefix", cfg.RedisKeyPrefix))
		return &storage{store: store, health: store, close: client.Close}, nil

	case config.BackendSQLite:
		store, err := blob.OpenSQLite(ctx, cfg.SQLiteDSN)
		if err != nil {
			return nil, err
		}
		slog.Info("sqlite storage ready", slog.String("dsn", cfg.SQLiteDSN))
		return &storage{store: store, health: store, close: store.Close}, nil

	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
