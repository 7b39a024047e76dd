package segment

import (
	"sort"

	"github.com/kikiluvv/framefinder/internal/manifest"
)

// Assemble merges shots into scenes. Shots are taken in start-time order;
// each unassigned shot opens a scene, and every later unassigned shot whose
// start lies between 0 and maxSceneGap seconds after the scene's running
// end is attached. Shots that start before the running end are never
// attached. Empty shots are ignored.
func Assemble(shots []manifest.Shot, maxSceneGap float64) []manifest.Scene {
	sorted := make([]manifest.Shot, 0, len(shots))
	for _, s := range shots {
		if len(s.Frames) > 0 {
			sorted = append(sorted, s)
		}
	}
	sort.SliceStable(sorted, func(a, b int) bool { return sorted[a].StartTime() < sorted[b].StartTime() })

	assigned := make([]bool, len(sorted))
	scenes := make([]manifest.Scene, 0)

	for i := range sorted {
		if assigned[i] {
			continue
		}
		assigned[i] = true
		scene := manifest.Scene{Shots: []manifest.Shot{sorted[i]}}
		lastEnd := sorted[i].EndTime()

		for j := i + 1; j < len(sorted); j++ {
			if assigned[j] {
				continue
			}
			gap := sorted[j].StartTime() - lastEnd
			if gap < 0 || gap > maxSceneGap {
				continue
			}
			assigned[j] = true
			scene.Shots = append(scene.Shots, sorted[j])
			lastEnd = max(lastEnd, sorted[j].EndTime())
		}

		scenes = append(scenes, scene)
	}

	return scenes
}
