package storage

import (
	"context"
	"fmt"
	"net/http"

	"uptimeledger/internal/config"
)

// Open builds the backend selected by cfg.Kind. client is used by the gist backend.
func Open(ctx context.Context, cfg config.StoreConfig, client *http.Client) (Store, error) {
	switch cfg.Kind {
	case config.StoreFile, "":
		return NewFileStore(cfg.File.Path)
	case config.StoreGist:
		return NewGistStore(cfg.Gist, client)
	case config.StorePostgres:
		return NewPostgresStore(ctx, cfg.Postgres)
	case config.StoreRedis:
		return NewRedisStore(ctx, cfg.Redis)
	default:
		return nil, fmt.Errorf("unknown store kind %q", cfg.Kind)
	}
}
