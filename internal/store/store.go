// Package store persists manifests by video name.
package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/kikiluvv/framefinder/internal/config"
	"github.com/kikiluvv/framefinder/internal/manifest"
)

// ErrNotFound is returned when no manifest is stored under a name.
var ErrNotFound = errors.New("manifest not found")

// Store saves and loads manifests keyed by video name.
type Store interface {
	Save(ctx context.Context, name string, m *manifest.Manifest) error
	Load(ctx context.Context, name string) (*manifest.Manifest, error)
	List(ctx context.Context) ([]string, error)
	Close() error
}

// Key normalizes a video path or name to a storage key: the base name
// without extension.
func Key(name string) string {
	base := filepath.Base(strings.TrimSpace(name))
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Open returns the backend selected by cfg.
func Open(ctx context.Context, logger zerolog.Logger, cfg config.StorageConfig) (Store, error) {
	logger = logger.With().Str("component", "store").Str("backend", cfg.Backend).Logger()

	switch cfg.Backend {
	case "", "file":
		return NewFile(logger, cfg.Dir), nil
	case "postgres":
		return NewPostgres(ctx, logger, cfg.PostgresURL)
	case "redis":
		return NewRedis(ctx, logger, cfg.RedisAddr, cfg.RedisPrefix)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
