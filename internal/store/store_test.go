package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/kikiluvv/framefinder/internal/config"
	"github.com/kikiluvv/framefinder/internal/descriptor"
	"github.com/kikiluvv/framefinder/internal/manifest"
)

func sampleManifest() *manifest.Manifest {
	g := func(v int) descriptor.Descriptor {
		return descriptor.FromGrid(descriptor.UniformGrid(2, descriptor.RGB{v, v, v}))
	}
	m := &manifest.Manifest{
		MovieName: "movie.mp4",
		Scenes: []manifest.Scene{
			{Shots: []manifest.Shot{
				{Frames: []manifest.Frame{{ID: "00_00_00_000.jpg", Timestamp: 0, Descriptor: g(1)}, {ID: "00_00_01_000.jpg", Timestamp: 1, Descriptor: g(2)}}},
				{Frames: []manifest.Frame{{ID: "00_00_03_000.jpg", Timestamp: 3, Descriptor: g(90)}}},
			}},
			{Shots: []manifest.Shot{
				{Frames: []manifest.Frame{{ID: "00_00_12_000.jpg", Timestamp: 12, Descriptor: g(200)}}},
			}},
		},
	}
	m.AssignIDs()
	return m
}

// exerciseStore runs the behaviour every backend must share.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	if _, err := s.Load(ctx, "absent-video"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	m := sampleManifest()
	if err := s.Save(ctx, "/videos/movie.mp4", m); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	// saving again replaces rather than appends
	if err := s.Save(ctx, "movie.mp4", m); err != nil {
		t.Fatalf("second Save failed: %v", err)
	}

	got, err := s.Load(ctx, "movie")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got.MovieName != "movie.mp4" {
		t.Errorf("expected movie name, got %q", got.MovieName)
	}
	if got.FrameCount() != m.FrameCount() || got.ShotCount() != m.ShotCount() || len(got.Scenes) != len(m.Scenes) {
		t.Fatalf("structure changed: %d/%d/%d", len(got.Scenes), got.ShotCount(), got.FrameCount())
	}
	if id := got.Scenes[1].Shots[0].ID; id != "shot_0003" {
		t.Errorf("expected shot_0003, got %q", id)
	}
	want, have := m.Frames(), got.Frames()
	for i := range want {
		if want[i].Frame.ID != have[i].Frame.ID || want[i].Frame.Timestamp != have[i].Frame.Timestamp {
			t.Errorf("frame %d differs", i)
		}
		if have[i].Frame.Descriptor.Kind() != descriptor.KindColorGrid {
			t.Errorf("frame %d lost its descriptor", i)
		}
	}

	names, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	found := false
	for _, n := range names {
		if n == "movie" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected movie in %v", names)
	}
}

func TestKey(t *testing.T) {
	cases := map[string]string{
		"/videos/movie.mp4": "movie",
		"movie":             "movie",
		" clip.final.mkv ":  "clip.final",
	}
	for in, want := range cases {
		if got := Key(in); got != want {
			t.Errorf("Key(%q): expected %q, got %q", in, want, got)
		}
	}
}

func TestFileStore(t *testing.T) {
	s, err := Open(context.Background(), zerolog.Nop(), config.StorageConfig{Backend: "file", Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	exerciseStore(t, s)
}

func TestFileStoreCorrupt(t *testing.T) {
	f := NewFile(zerolog.Nop(), t.TempDir())
	if err := os.WriteFile(f.Path("broken"), []byte("{"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := f.Load(context.Background(), "broken"); !errors.Is(err, manifest.ErrInvalidManifest) {
		t.Errorf("expected ErrInvalidManifest, got %v", err)
	}
}

func TestFileStoreLoadMissingIsReadOnly(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "manifests")
	f := NewFile(zerolog.Nop(), dir)

	if _, err := f.Load(context.Background(), "nope.mp4"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := os.Stat(dir); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected %s not to be created, got %v", dir, err)
	}
}

func TestFileStoreRejectsUnorderedShot(t *testing.T) {
	f := NewFile(zerolog.Nop(), t.TempDir())
	doc := `{"scenes":[{"timestamp":0,"groups":[{"timestamp":0,"frames":["00_00_05_000.jpg","00_00_01_000.jpg"]}]}]}`
	if err := os.WriteFile(f.Path("edited"), []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := f.Load(context.Background(), "edited"); !errors.Is(err, manifest.ErrInvalidManifest) {
		t.Errorf("expected ErrInvalidManifest, got %v", err)
	}
}

func TestOpenUnknownBackend(t *testing.T) {
	if _, err := Open(context.Background(), zerolog.Nop(), config.StorageConfig{Backend: "s3"}); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("FRAMEFINDER_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("FRAMEFINDER_TEST_REDIS_ADDR not set")
	}
	s, err := NewRedis(context.Background(), zerolog.Nop(), addr, "framefinder:test:")
	if err != nil {
		t.Fatalf("NewRedis failed: %v", err)
	}
	defer s.Close()

	exerciseStore(t, s)
}

func TestPostgresStore(t *testing.T) {
	url := os.Getenv("FRAMEFINDER_TEST_POSTGRES_URL")
	if url == "" {
		t.Skip("FRAMEFINDER_TEST_POSTGRES_URL not set")
	}
	s, err := NewPostgres(context.Background(), zerolog.Nop(), url)
	if err != nil {
		t.Fatalf("NewPostgres failed: %v", err)
	}
	defer s.Close()

	exerciseStore(t, s)

	q, _ := sampleManifest().Scenes[1].Shots[0].Frames[0].Descriptor.Grid()
	got, err := s.Nearest(context.Background(), "movie", q, 2)
	if err != nil {
		t.Fatalf("Nearest failed: %v", err)
	}
	if len(got) == 0 {
		t.Fatal("expected candidates")
	}
	if got[0].Similarity < 0.99 {
		t.Errorf("expected a near-identical first candidate, got %+v", got[0])
	}
}
