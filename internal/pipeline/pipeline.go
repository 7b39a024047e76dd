// Package pipeline wires frame extraction, fingerprinting, segmentation and
// storage into the indexing workflow.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/kikiluvv/framefinder/internal/config"
	"github.com/kikiluvv/framefinder/internal/ffmpeg"
	"github.com/kikiluvv/framefinder/internal/fingerprint"
	"github.com/kikiluvv/framefinder/internal/manifest"
	"github.com/kikiluvv/framefinder/internal/segment"
	"github.com/kikiluvv/framefinder/internal/store"
	"github.com/kikiluvv/framefinder/pkg/util"
)

// Pipeline orchestrates the indexing workflow for one configuration.
type Pipeline struct {
	logger        zerolog.Logger
	config        *config.Config
	segmentConfig segment.Config
	store         store.Store

	ffmpeg        *ffmpeg.Executor
	fingerprinter fingerprint.Fingerprinter
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithFFmpeg sets the executor used for frame extraction.
func WithFFmpeg(exec *ffmpeg.Executor) Option {
	return func(p *Pipeline) { p.ffmpeg = exec }
}

// WithFingerprinter replaces the configured fingerprint command.
func WithFingerprinter(f fingerprint.Fingerprinter) Option {
	return func(p *Pipeline) { p.fingerprinter = f }
}

// New creates a pipeline. The ffmpeg executor and fingerprinter are built
// from appCfg on first use unless supplied as options.
func New(logger zerolog.Logger, appCfg *config.Config, st store.Store, opts ...Option) (*Pipeline, error) {
	segCfg, err := SegmentConfig(appCfg.Segment, appCfg.Concurrency)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		logger:        logger.With().Str("component", "pipeline").Logger(),
		config:        appCfg,
		segmentConfig: segCfg,
		store:         st,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func (p *Pipeline) executor() (*ffmpeg.Executor, error) {
	if p.ffmpeg == nil {
		exec, err := ffmpeg.New(p.logger, p.config.FFmpeg.BinaryPath, p.config.FFmpeg.Threads)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize ffmpeg: %w", err)
		}
		p.ffmpeg = exec
	}
	return p.ffmpeg, nil
}

func (p *Pipeline) fingerprintCommand() (fingerprint.Fingerprinter, error) {
	if p.fingerprinter == nil {
		cmd, err := fingerprint.NewCommand(p.logger, p.config.Fingerprint.Command, p.config.Fingerprint.GridSize)
		if err != nil {
			return nil, err
		}
		p.fingerprinter = cmd
	}
	return p.fingerprinter, nil
}

// Extract samples frames from input into the configured frame directory.
func (p *Pipeline) Extract(ctx context.Context, input string, overwrite bool) (string, []ffmpeg.ExtractedFrame, error) {
	if input == "" {
		return "", nil, fmt.Errorf("input path cannot be empty")
	}

	exec, err := p.executor()
	if err != nil {
		return "", nil, err
	}

	info, err := exec.ProbeVideo(ctx, input)
	if err != nil {
		return "", nil, fmt.Errorf("failed to probe video: %w", err)
	}

	p.logger.Info().
		Str("duration", util.FormatDuration(info.Duration)).
		Int("width", info.Width).
		Int("height", info.Height).
		Float64("fps", info.FPS).
		Int("expected_frames", info.ExpectedFrames(p.config.Frames.FPS)).
		Msg("video metadata extracted")

	dir := p.config.FramesDir(input)
	frames, err := exec.ExtractFrames(ctx, input, dir, FrameOptions(p.config.Frames, overwrite), func(pr *ffmpeg.Progress) {
		p.logger.Debug().Int("frame", pr.Frame).Str("time", pr.Time).Str("speed", pr.Speed).Msg("extract progress")
	})
	if err != nil {
		return "", nil, fmt.Errorf("failed to extract frames: %w", err)
	}

	p.logger.Info().Str("dir", dir).Int("frames", len(frames)).Msg("frames extracted")
	return dir, frames, nil
}

// Fingerprint computes descriptors for the frames in dir using the kind
// the configured metric compares.
func (p *Pipeline) Fingerprint(ctx context.Context, dir string) ([]manifest.Frame, error) {
	f, err := p.fingerprintCommand()
	if err != nil {
		return nil, err
	}

	frames, err := f.Fingerprint(ctx, dir, p.segmentConfig.Metric.Kind())
	if err != nil {
		return nil, fmt.Errorf("failed to fingerprint frames: %w", err)
	}
	return frames, nil
}

// Segment groups described frames into a manifest for movieName.
func (p *Pipeline) Segment(movieName string, frames []manifest.Frame) (*manifest.Manifest, segment.Stats, error) {
	seg, err := segment.New(p.segmentConfig)
	if err != nil {
		return nil, segment.Stats{}, err
	}

	m, stats, err := seg.Run(movieName, frames)
	if err != nil {
		return nil, stats, fmt.Errorf("segmentation failed: %w", err)
	}

	p.logger.Info().
		Str("movie", movieName).
		Str("strategy", string(p.segmentConfig.Strategy)).
		Str("metric", string(p.segmentConfig.Metric)).
		Float64("threshold", p.segmentConfig.Threshold).
		Int("frames", stats.Frames).
		Int("clusters", stats.Clusters).
		Int("kept", stats.Kept).
		Int("shots", stats.Shots).
		Int("scenes", stats.Scenes).
		Msg("segmentation complete")

	return m, stats, nil
}

// SegmentFrames segments a frames document (JSON lines) read from r and
// saves the manifest unless dryRun is set.
func (p *Pipeline) SegmentFrames(ctx context.Context, movieName string, r io.Reader, dryRun bool) (*Result, error) {
	start := time.Now()

	frames, err := fingerprint.ReadFrames(r)
	if err != nil {
		return nil, err
	}

	m, stats, err := p.Segment(movieName, frames)
	if err != nil {
		return nil, err
	}

	if !dryRun {
		if err := p.save(ctx, m); err != nil {
			return nil, err
		}
	}
	return &Result{Manifest: m, Stats: stats, Elapsed: time.Since(start)}, nil
}

// SegmentFramesFile is SegmentFrames over a file.
func (p *Pipeline) SegmentFramesFile(ctx context.Context, movieName, path string, dryRun bool) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return p.SegmentFrames(ctx, movieName, f, dryRun)
}

// Index runs the whole workflow on a video file: extract, fingerprint,
// segment and save.
func (p *Pipeline) Index(ctx context.Context, input string, opts IndexOptions) (*Result, error) {
	start := time.Now()
	p.logger.Info().Str("input", input).Msg("starting indexing pipeline")

	dir, _, err := p.Extract(ctx, input, opts.Overwrite)
	if err != nil {
		return nil, err
	}

	frames, err := p.Fingerprint(ctx, dir)
	if err != nil {
		return nil, err
	}

	m, stats, err := p.Segment(filepath.Base(input), frames)
	if err != nil {
		return nil, err
	}

	if !opts.DryRun {
		if err := p.save(ctx, m); err != nil {
			return nil, err
		}
	}

	res := &Result{Manifest: m, Stats: stats, FramesDir: dir, Elapsed: time.Since(start)}
	p.logger.Info().
		Str("input", input).
		Dur("elapsed", res.Elapsed).
		Msg("indexing pipeline complete")
	return res, nil
}

func (p *Pipeline) save(ctx context.Context, m *manifest.Manifest) error {
	if p.store == nil {
		return fmt.Errorf("no manifest store configured")
	}
	if err := p.store.Save(ctx, m.MovieName, m); err != nil {
		return fmt.Errorf("failed to save manifest: %w", err)
	}
	p.logger.Info().Str("movie", m.MovieName).Msg("manifest saved")
	return nil
}
