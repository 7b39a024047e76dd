package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog"

	"github.com/kikiluvv/framefinder/internal/descriptor"
	"github.com/kikiluvv/framefinder/internal/manifest"
)

const schema = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS videos (
	id         SERIAL PRIMARY KEY,
	name       TEXT UNIQUE NOT NULL,
	movie_name TEXT NOT NULL DEFAULT '',
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS scenes (
	id         SERIAL PRIMARY KEY,
	video_id   INTEGER NOT NULL REFERENCES videos(id) ON DELETE CASCADE,
	ord        INTEGER NOT NULL,
	start_time DOUBLE PRECISION NOT NULL,
	end_time   DOUBLE PRECISION NOT NULL
);

CREATE TABLE IF NOT EXISTS shots (
	id         SERIAL PRIMARY KEY,
	scene_id   INTEGER NOT NULL REFERENCES scenes(id) ON DELETE CASCADE,
	ord        INTEGER NOT NULL,
	start_time DOUBLE PRECISION NOT NULL,
	end_time   DOUBLE PRECISION NOT NULL
);

CREATE TABLE IF NOT EXISTS frames (
	id        SERIAL PRIMARY KEY,
	video_id  INTEGER NOT NULL REFERENCES videos(id) ON DELETE CASCADE,
	shot_id   INTEGER NOT NULL REFERENCES shots(id) ON DELETE CASCADE,
	ord       INTEGER NOT NULL,
	name      TEXT NOT NULL,
	timestamp DOUBLE PRECISION NOT NULL,
	phash     TEXT,
	rgb_grid  JSONB,
	embedding vector
);
`

// Postgres stores manifests relationally. Color grids are also kept as a
// pgvector column so similar frames can be looked up in the database.
type Postgres struct {
	logger zerolog.Logger
	pool   *pgxpool.Pool
}

// NewPostgres connects, verifies the connection and creates the schema.
func NewPostgres(ctx context.Context, logger zerolog.Logger, connString string) (*Postgres, error) {
	if connString == "" {
		return nil, fmt.Errorf("postgres connection string is empty")
	}

	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	logger.Info().Msg("connected to postgres")
	return &Postgres{logger: logger, pool: pool}, nil
}

// Save replaces the stored manifest for name in a single transaction.
func (s *Postgres) Save(ctx context.Context, name string, m *manifest.Manifest) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var videoID int
	err = tx.QueryRow(ctx,
		`INSERT INTO videos (name, movie_name, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE SET movie_name = EXCLUDED.movie_name, updated_at = EXCLUDED.updated_at
		RETURNING id`,
		Key(name), m.MovieName, time.Now()).Scan(&videoID)
	if err != nil {
		return fmt.Errorf("failed to upsert video: %w", err)
	}

	if _, err := tx.Exec(ctx, "DELETE FROM scenes WHERE video_id = $1", videoID); err != nil {
		return fmt.Errorf("failed to clear scenes: %w", err)
	}

	for i, sc := range m.Scenes {
		var sceneID int
		err := tx.QueryRow(ctx,
			"INSERT INTO scenes (video_id, ord, start_time, end_time) VALUES ($1, $2, $3, $4) RETURNING id",
			videoID, i, sc.StartTime(), sc.EndTime()).Scan(&sceneID)
		if err != nil {
			return fmt.Errorf("failed to store scene %d: %w", i, err)
		}

		for j, sh := range sc.Shots {
			var shotID int
			err := tx.QueryRow(ctx,
				"INSERT INTO shots (scene_id, ord, start_time, end_time) VALUES ($1, $2, $3, $4) RETURNING id",
				sceneID, j, sh.StartTime(), sh.EndTime()).Scan(&shotID)
			if err != nil {
				return fmt.Errorf("failed to store shot %d of scene %d: %w", j, i, err)
			}

			batch := &pgx.Batch{}
			for k, f := range sh.Frames {
				phash, grid, vec, err := frameColumns(f)
				if err != nil {
					return err
				}
				batch.Queue(
					`INSERT INTO frames (video_id, shot_id, ord, name, timestamp, phash, rgb_grid, embedding)
					VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
					videoID, shotID, k, f.ID, f.Timestamp, phash, grid, vec)
			}
			if err := tx.SendBatch(ctx, batch).Close(); err != nil {
				return fmt.Errorf("failed to store frames of shot %d: %w", j, err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit manifest: %w", err)
	}

	s.logger.Debug().
		Str("name", Key(name)).
		Int("scenes", len(m.Scenes)).
		Int("frames", m.FrameCount()).
		Msg("manifest saved")
	return nil
}

// frameColumns returns the nullable descriptor columns for f.
func frameColumns(f manifest.Frame) (phash any, grid any, vec any, err error) {
	if h, ok := f.Descriptor.Hash(); ok {
		phash = h.String()
	}
	if g, ok := f.Descriptor.Grid(); ok {
		data, err := json.Marshal(g)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("frame %s: %w", f.ID, err)
		}
		grid = data
		vec = pgvector.NewVector(g.Vector())
	}
	return phash, grid, vec, nil
}

func (s *Postgres) videoID(ctx context.Context, name string) (int, string, error) {
	var id int
	var movie string
	err := s.pool.QueryRow(ctx, "SELECT id, movie_name FROM videos WHERE name = $1", Key(name)).Scan(&id, &movie)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, "", fmt.Errorf("%w: %s", ErrNotFound, Key(name))
	}
	if err != nil {
		return 0, "", fmt.Errorf("error looking up video: %w", err)
	}
	return id, movie, nil
}

func (s *Postgres) Load(ctx context.Context, name string) (*manifest.Manifest, error) {
	videoID, movie, err := s.videoID(ctx, name)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx,
		`SELECT sc.ord, sh.ord, f.name, f.timestamp, f.phash, f.rgb_grid
		FROM frames f
		JOIN shots sh ON f.shot_id = sh.id
		JOIN scenes sc ON sh.scene_id = sc.id
		WHERE f.video_id = $1
		ORDER BY sc.ord, sh.ord, f.ord`,
		videoID)
	if err != nil {
		return nil, fmt.Errorf("failed to load frames: %w", err)
	}
	defer rows.Close()

	m := &manifest.Manifest{MovieName: movie, Scenes: []manifest.Scene{}}
	lastScene, lastShot := -1, -1
	for rows.Next() {
		var sceneOrd, shotOrd int
		var f manifest.Frame
		var phash *string
		var grid []byte
		if err := rows.Scan(&sceneOrd, &shotOrd, &f.ID, &f.Timestamp, &phash, &grid); err != nil {
			return nil, fmt.Errorf("failed to scan frame: %w", err)
		}

		switch {
		case phash != nil:
			h, err := descriptor.ParseHash(*phash)
			if err != nil {
				return nil, fmt.Errorf("frame %s: %w", f.ID, err)
			}
			f.Descriptor = descriptor.FromHash(h)
		case grid != nil:
			var g descriptor.ColorGrid
			if err := json.Unmarshal(grid, &g); err != nil {
				return nil, fmt.Errorf("frame %s: %w", f.ID, err)
			}
			f.Descriptor = descriptor.FromGrid(g)
		}

		if sceneOrd != lastScene {
			m.Scenes = append(m.Scenes, manifest.Scene{})
			lastScene, lastShot = sceneOrd, -1
		}
		sc := &m.Scenes[len(m.Scenes)-1]
		if shotOrd != lastShot {
			sc.Shots = append(sc.Shots, manifest.Shot{})
			lastShot = shotOrd
		}
		sh := &sc.Shots[len(sc.Shots)-1]
		sh.Frames = append(sh.Frames, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("stored manifest %s: %w", Key(name), err)
	}
	m.AssignIDs()
	return m, nil
}

func (s *Postgres) List(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, "SELECT name FROM videos ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to list videos: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// Candidate is a frame returned by a database similarity lookup.
type Candidate struct {
	FrameID    string  `json:"frame_id"`
	Timestamp  float64 `json:"timestamp"`
	Similarity float64 `json:"similarity"`
}

// Nearest returns up to limit frames of name ordered by pgvector cosine
// distance to q. Scores use pgvector's cosine and may differ from
// descriptor.CosineSimilarity in the last digits.
func (s *Postgres) Nearest(ctx context.Context, name string, q descriptor.ColorGrid, limit int) ([]Candidate, error) {
	videoID, _, err := s.videoID(ctx, name)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx,
		`SELECT name, timestamp, 1 - (embedding <=> $1) AS similarity
		FROM frames
		WHERE video_id = $2 AND embedding IS NOT NULL
		ORDER BY embedding <=> $1, shot_id, ord
		LIMIT $3`,
		pgvector.NewVector(q.Vector()), videoID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search similar frames: %w", err)
	}
	defer rows.Close()

	var out []Candidate
	for rows.Next() {
		var c Candidate
		if err := rows.Scan(&c.FrameID, &c.Timestamp, &c.Similarity); err != nil {
			return nil, fmt.Errorf("failed to scan search results: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Postgres) Close() error {
	s.pool.Close()
	return nil
}
