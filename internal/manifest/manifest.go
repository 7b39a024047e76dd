// Package manifest holds the scene → shot → frame hierarchy produced by
// segmentation and read by the query engine.
package manifest

import (
	"fmt"

	"github.com/kikiluvv/framefinder/internal/descriptor"
)

// Frame is one sampled video frame.
type Frame struct {
	ID         string
	Timestamp  float64
	Descriptor descriptor.Descriptor
}

// Shot is a non-empty run of visually continuous frames sorted by timestamp.
type Shot struct {
	ID     string
	Frames []Frame
}

// StartTime is the timestamp of the first frame.
func (s Shot) StartTime() float64 { return s.Frames[0].Timestamp }

// EndTime is the timestamp of the last frame.
func (s Shot) EndTime() float64 { return s.Frames[len(s.Frames)-1].Timestamp }

// Scene is a non-empty group of temporally contiguous shots.
type Scene struct {
	ID    string
	Shots []Shot
}

// StartTime is the earliest shot start.
func (s Scene) StartTime() float64 {
	start := s.Shots[0].StartTime()
	for _, sh := range s.Shots[1:] {
		if t := sh.StartTime(); t < start {
			start = t
		}
	}
	return start
}

// EndTime is the latest shot end.
func (s Scene) EndTime() float64 {
	end := s.Shots[0].EndTime()
	for _, sh := range s.Shots[1:] {
		if t := sh.EndTime(); t > end {
			end = t
		}
	}
	return end
}

// Manifest is the segmentation of one video.
type Manifest struct {
	MovieName string
	Scenes    []Scene
}

// SceneID returns the identifier of the i-th scene (zero based).
func SceneID(i int) string { return fmt.Sprintf("scene_%04d", i+1) }

// ShotID returns the identifier of the i-th shot counted across the manifest.
func ShotID(i int) string { return fmt.Sprintf("shot_%04d", i+1) }

// AssignIDs numbers scenes and shots by position. Building and reloading a
// manifest therefore yields the same identifiers.
func (m *Manifest) AssignIDs() {
	n := 0
	for i := range m.Scenes {
		m.Scenes[i].ID = SceneID(i)
		for j := range m.Scenes[i].Shots {
			m.Scenes[i].Shots[j].ID = ShotID(n)
			n++
		}
	}
}

// FrameCount returns the number of frames across all scenes.
func (m *Manifest) FrameCount() int {
	n := 0
	for _, sc := range m.Scenes {
		for _, sh := range sc.Shots {
			n += len(sh.Frames)
		}
	}
	return n
}

// ShotCount returns the number of shots across all scenes.
func (m *Manifest) ShotCount() int {
	n := 0
	for _, sc := range m.Scenes {
		n += len(sc.Shots)
	}
	return n
}

// Queryable reports whether every frame carries a descriptor.
func (m *Manifest) Queryable() bool {
	for _, sc := range m.Scenes {
		for _, sh := range sc.Shots {
			for _, f := range sh.Frames {
				if f.Descriptor.IsZero() {
					return false
				}
			}
		}
	}
	return m.FrameCount() > 0
}

// Validate checks the structural invariants: no empty scene or shot and
// frames sorted inside each shot.
func (m *Manifest) Validate() error {
	for i, sc := range m.Scenes {
		if len(sc.Shots) == 0 {
			return fmt.Errorf("%w: scene %d has no shots", ErrInvalidManifest, i)
		}
		for j, sh := range sc.Shots {
			if len(sh.Frames) == 0 {
				return fmt.Errorf("%w: scene %d shot %d has no frames", ErrInvalidManifest, i, j)
			}
			for k := 1; k < len(sh.Frames); k++ {
				if sh.Frames[k].Timestamp < sh.Frames[k-1].Timestamp {
					return fmt.Errorf("%w: scene %d shot %d frames out of order", ErrInvalidManifest, i, j)
				}
			}
		}
	}
	return nil
}

// Position locates a frame inside a manifest.
type Position struct {
	Scene int
	Shot  int
	Frame int
}

// FrameRef is a frame together with the scene and shot that own it.
type FrameRef struct {
	Position
	Scene *Scene
	Shot  *Shot
	Frame *Frame
}

// Frames returns every frame in manifest order (scenes, then shots, then
// frames). The references point into m.
func (m *Manifest) Frames() []FrameRef {
	refs := make([]FrameRef, 0, m.FrameCount())
	for i := range m.Scenes {
		sc := &m.Scenes[i]
		for j := range sc.Shots {
			sh := &sc.Shots[j]
			for k := range sh.Frames {
				refs = append(refs, FrameRef{
					Position: Position{Scene: i, Shot: j, Frame: k},
					Scene:    sc,
					Shot:     sh,
					Frame:    &sh.Frames[k],
				})
			}
		}
	}
	return refs
}
