// Package segment turns an ordered frame list into shots and scenes.
//
// Every function here is pure: inputs are never mutated and assignment
// bookkeeping lives in per-call slices indexed by position.
package segment

import (
	"sort"

	"github.com/kikiluvv/framefinder/internal/descriptor"
	"github.com/kikiluvv/framefinder/internal/manifest"
	"github.com/kikiluvv/framefinder/internal/parallel"
)

// Engine runs the clustering scans. Workers > 1 splits each seed's
// candidate scan across goroutines; results are identical to the
// sequential scan.
type Engine struct {
	Workers int
}

// Cluster groups frames into shots with a single sequential engine.
func Cluster(frames []manifest.Frame, metric descriptor.Metric, threshold float64) ([]manifest.Shot, error) {
	return Engine{}.Cluster(frames, metric, threshold)
}

// Cluster groups frames into shots. Frames are visited in timestamp order
// (ties keep input order). Each unassigned frame seeds a shot, and every
// later unassigned frame within threshold of the seed joins it. Distances
// are always measured against the seed, never against a running centroid.
// Shots are returned in seed order.
func (e Engine) Cluster(frames []manifest.Frame, metric descriptor.Metric, threshold float64) ([]manifest.Shot, error) {
	if len(frames) == 0 {
		return []manifest.Shot{}, nil
	}

	sorted := sortFrames(frames)
	assigned := make([]bool, len(sorted))
	shots := make([]manifest.Shot, 0)

	for i := range sorted {
		if assigned[i] {
			continue
		}
		assigned[i] = true
		seed := sorted[i]

		candidates := make([]int, 0, len(sorted)-i-1)
		for j := i + 1; j < len(sorted); j++ {
			if !assigned[j] {
				candidates = append(candidates, j)
			}
		}

		dists, err := parallel.Map(len(candidates), e.Workers, func(k int) (float64, error) {
			return descriptor.Distance(metric, seed.Descriptor, sorted[candidates[k]].Descriptor)
		})
		if err != nil {
			return nil, err
		}

		members := []manifest.Frame{seed}
		for k, j := range candidates {
			if dists[k] <= threshold {
				assigned[j] = true
				members = append(members, sorted[j])
			}
		}
		sort.SliceStable(members, func(a, b int) bool { return members[a].Timestamp < members[b].Timestamp })

		shots = append(shots, manifest.Shot{Frames: members})
	}

	return shots, nil
}

// GroupAdjacent is the legacy grouping: each frame is compared with the
// frame before it only, and a new shot starts whenever that distance
// exceeds threshold.
func GroupAdjacent(frames []manifest.Frame, metric descriptor.Metric, threshold float64) ([]manifest.Shot, error) {
	if len(frames) == 0 {
		return []manifest.Shot{}, nil
	}

	sorted := sortFrames(frames)
	shots := make([]manifest.Shot, 0)
	current := []manifest.Frame{sorted[0]}

	for i := 1; i < len(sorted); i++ {
		d, err := descriptor.Distance(metric, sorted[i].Descriptor, sorted[i-1].Descriptor)
		if err != nil {
			return nil, err
		}
		if d <= threshold {
			current = append(current, sorted[i])
			continue
		}
		shots = append(shots, manifest.Shot{Frames: current})
		current = []manifest.Frame{sorted[i]}
	}

	return append(shots, manifest.Shot{Frames: current}), nil
}

func sortFrames(frames []manifest.Frame) []manifest.Frame {
	sorted := make([]manifest.Frame, len(frames))
	copy(sorted, frames)
	sort.SliceStable(sorted, func(a, b int) bool { return sorted[a].Timestamp < sorted[b].Timestamp })
	return sorted
}
