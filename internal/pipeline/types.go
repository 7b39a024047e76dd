package pipeline

import (
	"fmt"
	"time"

	"github.com/kikiluvv/framefinder/internal/config"
	"github.com/kikiluvv/framefinder/internal/descriptor"
	"github.com/kikiluvv/framefinder/internal/ffmpeg"
	"github.com/kikiluvv/framefinder/internal/manifest"
	"github.com/kikiluvv/framefinder/internal/segment"
)

// Result is what one indexing run produced.
type Result struct {
	Manifest  *manifest.Manifest
	Stats     segment.Stats
	FramesDir string
	Elapsed   time.Duration
}

// IndexOptions configures an indexing run.
type IndexOptions struct {
	// Overwrite re-extracts frames even when the frame directory is populated.
	Overwrite bool
	// DryRun skips saving the manifest.
	DryRun bool
}

// SegmentConfig converts the segment section of the application config.
func SegmentConfig(cfg config.SegmentConfig, workers int) (segment.Config, error) {
	metric, err := descriptor.ParseMetric(cfg.Metric)
	if err != nil {
		return segment.Config{}, err
	}

	// Threshold keys on the canonical metric name, not its aliases.
	cfg.Metric = string(metric)

	sc := segment.Config{
		Strategy:    segment.Strategy(cfg.Strategy),
		Metric:      metric,
		Threshold:   cfg.Threshold(),
		MinShotSize: cfg.MinShotSize,
		MaxFrameGap: cfg.MaxFrameGap,
		MaxSceneGap: cfg.MaxSceneGap,
		Workers:     workers,
	}
	if sc.Strategy == "" {
		sc.Strategy = segment.StrategySeed
	}
	if err := sc.Validate(); err != nil {
		return segment.Config{}, fmt.Errorf("invalid segment config: %w", err)
	}
	return sc, nil
}

// FrameOptions converts the frames section of the application config.
// Unset values keep ffmpeg's defaults.
func FrameOptions(cfg config.FramesConfig, overwrite bool) ffmpeg.FrameOptions {
	opts := ffmpeg.DefaultFrameOptions()
	if cfg.FPS > 0 {
		opts.FPS = cfg.FPS
	}
	if cfg.Width > 0 {
		opts.Width = cfg.Width
	}
	if cfg.Height > 0 {
		opts.Height = cfg.Height
	}
	if cfg.Quality > 0 {
		opts.Quality = cfg.Quality
	}
	opts.Overwrite = overwrite
	return opts
}
