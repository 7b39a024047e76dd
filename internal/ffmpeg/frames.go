package ffmpeg

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/kikiluvv/framefinder/pkg/util"
)

const rawFramePattern = "frame_%04d.jpg"

// QScale maps a 1-100 quality to ffmpeg's -q:v scale (2 best, 31 worst).
func QScale(quality int) int {
	quality = max(1, min(100, quality))
	return int(math.RoundToEven(float64(100-quality)/100*29)) + 2
}

// frameArgs builds the sampling command writing raw numbered frames to dir.
func frameArgs(input, dir string, opts FrameOptions) []string {
	filter := NewFilterBuilder().FPS(opts.FPS).Scale(opts.Width, opts.Height).Build()

	args := []string{"-i", input}
	if filter != "" {
		args = append(args, "-vf", filter)
	}
	return append(args,
		"-q:v", strconv.Itoa(QScale(opts.Quality)),
		filepath.Join(dir, rawFramePattern),
	)
}

// ExtractFrames samples input into dir and names every frame after its
// offset (HH_MM_SS_mmm.jpg). Frames already extracted into dir are reused
// unless opts.Overwrite is set.
func (e *Executor) ExtractFrames(ctx context.Context, input, dir string, opts FrameOptions, progressFunc ProgressFunc) ([]ExtractedFrame, error) {
	if opts.FPS <= 0 {
		return nil, fmt.Errorf("fps must be positive, got %v", opts.FPS)
	}
	if err := util.EnsureDir(dir); err != nil {
		return nil, fmt.Errorf("failed to create frame dir: %w", err)
	}

	if !opts.Overwrite {
		existing, err := ListFrames(dir)
		if err != nil {
			return nil, err
		}
		if len(existing) > 0 {
			e.logger.Info().
				Str("dir", dir).
				Int("frames", len(existing)).
				Msg("reusing extracted frames")
			return existing, nil
		}
	}

	e.logger.Info().
		Str("input", input).
		Str("dir", dir).
		Float64("fps", opts.FPS).
		Int("width", opts.Width).
		Int("height", opts.Height).
		Int("quality", opts.Quality).
		Msg("extracting frames")

	err := e.Run(ctx, RunOptions{
		Args:            frameArgs(input, dir, opts),
		ProgressHandler: progressFunc,
		LogHandler: func(line string) {
			e.logger.Debug().Str("ffmpeg", line).Msg("frame extraction")
		},
	})
	if err != nil {
		return nil, err
	}

	return RenameFrames(dir, opts.FPS)
}

// RenameFrames renames the numbered frame_NNNN.jpg files in dir to their
// timestamp names; frame i (1-based) sits at (i-1)/fps seconds.
func RenameFrames(dir string, fps float64) ([]ExtractedFrame, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	type raw struct {
		name  string
		index int
	}
	var raws []raw
	for _, entry := range entries {
		var idx int
		if _, err := fmt.Sscanf(entry.Name(), rawFramePattern, &idx); err != nil || entry.IsDir() {
			continue
		}
		raws = append(raws, raw{name: entry.Name(), index: idx})
	}
	sort.Slice(raws, func(i, j int) bool { return raws[i].index < raws[j].index })

	frames := make([]ExtractedFrame, 0, len(raws))
	for _, r := range raws {
		ts := float64(r.index-1) / fps
		name := util.FrameName(ts)
		path := filepath.Join(dir, name)
		if err := os.Rename(filepath.Join(dir, r.name), path); err != nil {
			return nil, fmt.Errorf("failed to rename %s: %w", r.name, err)
		}
		frames = append(frames, ExtractedFrame{Name: name, Path: path, Timestamp: ts})
	}

	return frames, nil
}

// ListFrames returns the timestamp-named frames in dir, oldest first.
func ListFrames(dir string) ([]ExtractedFrame, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var frames []ExtractedFrame
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".jpg") {
			continue
		}
		ts, err := util.ParseFrameName(entry.Name())
		if err != nil {
			continue
		}
		frames = append(frames, ExtractedFrame{
			Name:      entry.Name(),
			Path:      filepath.Join(dir, entry.Name()),
			Timestamp: ts,
		})
	}
	sort.SliceStable(frames, func(i, j int) bool { return frames[i].Timestamp < frames[j].Timestamp })

	return frames, nil
}
