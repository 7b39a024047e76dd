package segment

import "github.com/kikiluvv/framefinder/internal/manifest"

// DefaultMinShotSize is the smallest shot kept by the refinement passes.
const DefaultMinShotSize = 2

// FilterSmallShots drops shots with fewer than minSize frames, keeping the
// order of the rest.
func FilterSmallShots(shots []manifest.Shot, minSize int) []manifest.Shot {
	out := make([]manifest.Shot, 0, len(shots))
	for _, s := range shots {
		if len(s.Frames) >= minSize {
			out = append(out, s)
		}
	}
	return out
}

// SplitByTimeGap cuts each shot wherever two consecutive frames are more
// than maxGap seconds apart. Runs shorter than minSize are discarded. Shots
// with fewer than two frames pass through untouched.
func SplitByTimeGap(shots []manifest.Shot, maxGap float64, minSize int) []manifest.Shot {
	out := make([]manifest.Shot, 0, len(shots))
	for _, s := range shots {
		if len(s.Frames) < 2 {
			out = append(out, s)
			continue
		}

		run := []manifest.Frame{s.Frames[0]}
		for i := 1; i < len(s.Frames); i++ {
			if s.Frames[i].Timestamp-s.Frames[i-1].Timestamp > maxGap {
				if len(run) >= minSize {
					out = append(out, manifest.Shot{Frames: run})
				}
				run = nil
			}
			run = append(run, s.Frames[i])
		}
		if len(run) >= minSize {
			out = append(out, manifest.Shot{Frames: run})
		}
	}
	return out
}
