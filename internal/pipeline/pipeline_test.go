package pipeline

import (
	"context"
	"errors"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/kikiluvv/framefinder/internal/config"
	"github.com/kikiluvv/framefinder/internal/descriptor"
	"github.com/kikiluvv/framefinder/internal/ffmpeg"
	"github.com/kikiluvv/framefinder/internal/manifest"
	"github.com/kikiluvv/framefinder/internal/segment"
	"github.com/kikiluvv/framefinder/internal/store"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	cfg.WorkDir = t.TempDir()
	cfg.Storage.Dir = filepath.Join(cfg.WorkDir, "manifests")
	return cfg
}

const framesDoc = `{"frame":"00_00_00_000.jpg","rgb_grid":{"0,0":[10,10,10]}}
{"frame":"00_00_01_000.jpg","rgb_grid":{"0,0":[11,10,10]}}
{"frame":"00_00_02_000.jpg","rgb_grid":{"0,0":[10,12,10]}}
{"frame":"00_00_10_000.jpg","rgb_grid":{"0,0":[200,10,10]}}
{"frame":"00_00_11_000.jpg","rgb_grid":{"0,0":[201,10,10]}}
`

func TestSegmentConfig(t *testing.T) {
	cfg := testConfig(t)

	sc, err := SegmentConfig(cfg.Segment, 3)
	if err != nil {
		t.Fatalf("SegmentConfig failed: %v", err)
	}
	if sc.Metric != descriptor.MetricGridSquared || sc.Threshold != 1000 || sc.Workers != 3 {
		t.Errorf("unexpected config %+v", sc)
	}

	cfg.Segment.Metric = "hamming"
	sc, err = SegmentConfig(cfg.Segment, 1)
	if err != nil {
		t.Fatalf("SegmentConfig failed: %v", err)
	}
	if sc.Metric != descriptor.MetricHamming || sc.Threshold != 8 {
		t.Errorf("expected hamming threshold 8, got %+v", sc)
	}

	cfg.Segment.PHashThreshold = 0
	sc, err = SegmentConfig(cfg.Segment, 1)
	if err != nil {
		t.Fatalf("SegmentConfig failed: %v", err)
	}
	if sc.Threshold != 0 {
		t.Errorf("expected zero threshold to be kept, got %v", sc.Threshold)
	}

	cfg.Segment.Strategy = "nearest"
	if _, err := SegmentConfig(cfg.Segment, 1); err == nil {
		t.Error("expected error for unknown strategy")
	}
}

func TestFrameOptions(t *testing.T) {
	opts := FrameOptions(config.FramesConfig{FPS: 2, Quality: 60}, true)

	want := ffmpeg.FrameOptions{FPS: 2, Width: 512, Height: 288, Quality: 60, Overwrite: true}
	if opts != want {
		t.Errorf("expected %+v, got %+v", want, opts)
	}
}

func TestSegmentFrames(t *testing.T) {
	cfg := testConfig(t)
	st := store.NewFile(zerolog.Nop(), cfg.Storage.Dir)

	p, err := New(zerolog.Nop(), cfg, st)
	if err != nil {
		t.Fatal(err)
	}

	res, err := p.SegmentFrames(context.Background(), "movie.mp4", strings.NewReader(framesDoc), false)
	if err != nil {
		t.Fatalf("SegmentFrames failed: %v", err)
	}

	want := segment.Stats{Frames: 5, Clusters: 2, Kept: 2, Shots: 2, Scenes: 2}
	if res.Stats != want {
		t.Errorf("expected stats %+v, got %+v", want, res.Stats)
	}

	saved, err := st.Load(context.Background(), "movie.mp4")
	if err != nil {
		t.Fatalf("manifest not saved: %v", err)
	}
	if len(saved.Scenes) != 2 || saved.Scenes[1].StartTime() != 10 {
		t.Errorf("unexpected saved manifest %+v", saved)
	}
}

func TestSegmentFramesDryRun(t *testing.T) {
	cfg := testConfig(t)
	st := store.NewFile(zerolog.Nop(), cfg.Storage.Dir)

	p, err := New(zerolog.Nop(), cfg, st)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.SegmentFrames(context.Background(), "movie.mp4", strings.NewReader(framesDoc), true); err != nil {
		t.Fatalf("SegmentFrames failed: %v", err)
	}
	if _, err := st.Load(context.Background(), "movie.mp4"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected nothing saved, got %v", err)
	}
}

func TestSegmentFramesRejectsWrongKind(t *testing.T) {
	cfg := testConfig(t)
	cfg.Segment.Metric = "phash"

	p, err := New(zerolog.Nop(), cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	_, err = p.SegmentFrames(context.Background(), "movie.mp4", strings.NewReader(framesDoc), true)
	if !errors.Is(err, descriptor.ErrShapeMismatch) {
		t.Errorf("expected ErrShapeMismatch, got %v", err)
	}
}

type fakeFingerprinter struct {
	dir  string
	kind descriptor.Kind
}

func (f *fakeFingerprinter) Fingerprint(ctx context.Context, dir string, kind descriptor.Kind) ([]manifest.Frame, error) {
	f.dir, f.kind = dir, kind
	return nil, nil
}

func TestFingerprintUsesMetricKind(t *testing.T) {
	cfg := testConfig(t)
	cfg.Segment.Metric = "phash"

	fp := &fakeFingerprinter{}
	p, err := New(zerolog.Nop(), cfg, nil, WithFingerprinter(fp))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Fingerprint(context.Background(), "/frames"); err != nil {
		t.Fatal(err)
	}
	if fp.dir != "/frames" || fp.kind != descriptor.KindPerceptualHash {
		t.Errorf("unexpected call dir=%q kind=%s", fp.dir, fp.kind)
	}
}

func TestIndex(t *testing.T) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not available")
	}
	if _, err := exec.LookPath("ffprobe"); err != nil {
		t.Skip("ffprobe not available")
	}

	cfg := testConfig(t)
	input := filepath.Join(t.TempDir(), "clip.mp4")
	gen := exec.Command("ffmpeg", "-y", "-f", "lavfi", "-i", "testsrc=duration=3:size=320x240:rate=10", "-pix_fmt", "yuv420p", input)
	if out, err := gen.CombinedOutput(); err != nil {
		t.Skipf("cannot create test video: %v\n%s", err, out)
	}

	st := store.NewFile(zerolog.Nop(), cfg.Storage.Dir)
	fp := &gridFingerprinter{}
	p, err := New(zerolog.Nop(), cfg, st, WithFingerprinter(fp))
	if err != nil {
		t.Fatal(err)
	}

	res, err := p.Index(context.Background(), input, IndexOptions{})
	if err != nil {
		t.Fatalf("Index failed: %v", err)
	}
	if res.FramesDir != cfg.FramesDir(input) {
		t.Errorf("expected frames dir %q, got %q", cfg.FramesDir(input), res.FramesDir)
	}
	if res.Stats.Frames < 2 {
		t.Errorf("expected at least 2 frames at 1 fps, got %d", res.Stats.Frames)
	}
	if res.Manifest.MovieName != "clip.mp4" {
		t.Errorf("expected clip.mp4, got %q", res.Manifest.MovieName)
	}
	if _, err := st.Load(context.Background(), "clip"); err != nil {
		t.Errorf("manifest not saved: %v", err)
	}
}

// gridFingerprinter gives every extracted frame the same grid.
type gridFingerprinter struct{}

func (gridFingerprinter) Fingerprint(ctx context.Context, dir string, kind descriptor.Kind) ([]manifest.Frame, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.jpg"))
	if err != nil {
		return nil, err
	}
	var frames []manifest.Frame
	for i, path := range matches {
		frames = append(frames, manifest.Frame{
			ID:         filepath.Base(path),
			Timestamp:  float64(i),
			Descriptor: descriptor.FromGrid(descriptor.UniformGrid(2, descriptor.RGB{50, 50, 50})),
		})
	}
	return frames, nil
}
