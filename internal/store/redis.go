package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/kikiluvv/framefinder/internal/manifest"
)

// Redis keeps manifest documents as plain string values under prefix+key.
type Redis struct {
	logger zerolog.Logger
	client *redis.Client
	prefix string
}

// NewRedis connects to addr and verifies the connection.
func NewRedis(ctx context.Context, logger zerolog.Logger, addr, prefix string) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info().Str("addr", addr).Msg("connected to redis")
	return &Redis{logger: logger, client: client, prefix: prefix}, nil
}

func (r *Redis) key(name string) string {
	return r.prefix + Key(name)
}

func (r *Redis) Save(ctx context.Context, name string, m *manifest.Manifest) error {
	data, err := manifest.Marshal(m, manifest.VariantAuto)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.key(name), data, 0).Err(); err != nil {
		return fmt.Errorf("error saving manifest: %w", err)
	}
	r.logger.Debug().Str("key", r.key(name)).Int("bytes", len(data)).Msg("manifest saved")
	return nil
}

func (r *Redis) Load(ctx context.Context, name string) (*manifest.Manifest, error) {
	data, err := r.client.Get(ctx, r.key(name)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, r.key(name))
		}
		return nil, fmt.Errorf("error loading manifest: %w", err)
	}
	return manifest.Unmarshal(data)
}

func (r *Redis) List(ctx context.Context) ([]string, error) {
	var names []string
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		names = append(names, strings.TrimPrefix(iter.Val(), r.prefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("error listing manifests: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
