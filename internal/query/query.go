// Package query finds the indexed frame most similar to a query descriptor.
package query

import (
	"fmt"

	"github.com/kikiluvv/framefinder/internal/descriptor"
	"github.com/kikiluvv/framefinder/internal/manifest"
	"github.com/kikiluvv/framefinder/internal/parallel"
)

// Match is the best frame for a query.
type Match struct {
	FrameID        string  `json:"frame_id"`
	Timestamp      float64 `json:"timestamp"`
	SceneID        string  `json:"scene_id"`
	SceneTimestamp float64 `json:"scene_timestamp"`
	ShotID         string  `json:"shot_id"`
	GroupTimestamp float64 `json:"group_timestamp"`
	Similarity     float64 `json:"similarity"`
}

// Engine scans manifests. Workers > 1 computes similarities concurrently;
// the selection still walks frames in manifest order.
type Engine struct {
	Workers int
}

// FindBestMatch scans m sequentially.
func FindBestMatch(q descriptor.Descriptor, m *manifest.Manifest) (*Match, error) {
	return Engine{}.FindBestMatch(q, m)
}

// FindBestMatch returns the frame with the highest cosine similarity to q.
// On ties the first frame in manifest order wins. Frames without a
// descriptor are skipped; a nil Match with a nil error means nothing was
// comparable. A query that is not a color grid yields
// descriptor.ErrShapeMismatch. Frames are never skipped for a kind or shape
// mismatch: a perceptual-hash frame, or a grid of a different size, fails
// the whole search with descriptor.ErrShapeMismatch naming that frame.
func (e Engine) FindBestMatch(q descriptor.Descriptor, m *manifest.Manifest) (*Match, error) {
	if q.Kind() != descriptor.KindColorGrid {
		return nil, fmt.Errorf("%w: query is %s, expected %s", descriptor.ErrShapeMismatch, q.Kind(), descriptor.KindColorGrid)
	}
	if m == nil {
		return nil, nil
	}

	refs := described(m)
	sims, err := parallel.Map(len(refs), e.Workers, func(i int) (float64, error) {
		s, err := descriptor.Similarity(q, refs[i].Frame.Descriptor)
		if err != nil {
			return 0, fmt.Errorf("frame %s: %w", refs[i].Frame.ID, err)
		}
		return s, nil
	})
	if err != nil {
		return nil, err
	}

	best := -1
	for i, s := range sims {
		if best < 0 || s > sims[best] {
			best = i
		}
	}
	if best < 0 {
		return nil, nil
	}

	ref := refs[best]
	return &Match{
		FrameID:        ref.Frame.ID,
		Timestamp:      ref.Frame.Timestamp,
		SceneID:        ref.Scene.ID,
		SceneTimestamp: ref.Scene.StartTime(),
		ShotID:         ref.Shot.ID,
		GroupTimestamp: ref.Shot.StartTime(),
		Similarity:     sims[best],
	}, nil
}

func described(m *manifest.Manifest) []manifest.FrameRef {
	all := m.Frames()
	out := all[:0]
	for _, r := range all {
		if !r.Frame.Descriptor.IsZero() {
			out = append(out, r)
		}
	}
	return out
}
