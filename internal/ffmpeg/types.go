package ffmpeg

import (
	"math"
	"time"
)

// VideoInfo contains metadata about a video file
type VideoInfo struct {
	FilePath   string
	Duration   time.Duration
	Width      int
	Height     int
	FPS        float64
	VideoCodec string
	HasAudio   bool
	AudioCodec string
}

// ExpectedFrames is the number of frames sampling at fps yields.
func (v *VideoInfo) ExpectedFrames(fps float64) int {
	if fps <= 0 || v.Duration <= 0 {
		return 0
	}
	return int(math.Ceil(v.Duration.Seconds() * fps))
}

// Progress represents ffmpeg progress data
type Progress struct {
	Frame int
	FPS   float64
	Time  string
	Speed string
}

// ProgressFunc is called once per ffmpeg progress block.
type ProgressFunc func(*Progress)

// RunOptions configures ffmpeg execution
type RunOptions struct {
	Args            []string
	ProgressHandler ProgressFunc
	LogHandler      func(line string)
}

// FrameOptions configures frame sampling.
type FrameOptions struct {
	FPS     float64
	Width   int
	Height  int
	Quality int // 1-100, higher is better
	// Overwrite re-extracts even when named frames already exist.
	Overwrite bool
}

// DefaultFrameOptions samples one 512x288 frame per second at quality 80.
func DefaultFrameOptions() FrameOptions {
	return FrameOptions{
		FPS:     1.0,
		Width:   512,
		Height:  288,
		Quality: 80,
	}
}

// ExtractedFrame is one sampled frame on disk.
type ExtractedFrame struct {
	Name      string
	Path      string
	Timestamp float64
}
