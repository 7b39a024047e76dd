// Package products annotates each shot of a manifest with the products a
// vision model sees in its representative frame, and searches the result
// by time range.
package products

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/kikiluvv/framefinder/internal/ai"
	"github.com/kikiluvv/framefinder/internal/manifest"
	"github.com/kikiluvv/framefinder/pkg/util"
)

// ErrNoResults is returned by Search when no group falls in the range.
var ErrNoResults = errors.New("no matching products found for the given time range")

// Document is the annotated manifest.
type Document struct {
	Scenes []Scene `json:"scenes"`
}

type Scene struct {
	Timestamp float64 `json:"timestamp"`
	Groups    []Group `json:"groups"`
}

// Group is one annotated shot.
type Group struct {
	Timestamp float64         `json:"timestamp"`
	Frame     string          `json:"frame"`
	Products  json.RawMessage `json:"products"`
}

// Result is one search hit.
type Result struct {
	SceneTimestamp float64         `json:"scene_timestamp"`
	GroupTimestamp float64         `json:"group_timestamp"`
	Frame          string          `json:"frame"`
	Products       json.RawMessage `json:"products"`
}

// Representative returns the middle frame of a shot.
func Representative(sh manifest.Shot) manifest.Frame {
	return sh.Frames[len(sh.Frames)/2]
}

// Annotator runs a ProductDetector over the shots of a manifest.
type Annotator struct {
	logger   zerolog.Logger
	detector ai.ProductDetector
	workers  int
}

func NewAnnotator(logger zerolog.Logger, detector ai.ProductDetector, workers int) *Annotator {
	if workers < 1 {
		workers = 1
	}
	return &Annotator{
		logger:   logger.With().Str("component", "products").Logger(),
		detector: detector,
		workers:  workers,
	}
}

// Annotate detects products in the representative frame of every shot.
// Shots whose frame file is missing under frameDir are left out. A failed
// detection is recorded in place as {"error": ...} and does not stop the run.
func (a *Annotator) Annotate(ctx context.Context, m *manifest.Manifest, frameDir string) (*Document, error) {
	doc := &Document{Scenes: make([]Scene, len(m.Scenes))}
	found := make([][]bool, len(m.Scenes))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)

	for i := range m.Scenes {
		sc := &m.Scenes[i]
		doc.Scenes[i] = Scene{Timestamp: sc.StartTime(), Groups: make([]Group, len(sc.Shots))}
		found[i] = make([]bool, len(sc.Shots))

		for j := range sc.Shots {
			sh := sc.Shots[j]
			if len(sh.Frames) == 0 {
				continue
			}
			frame := Representative(sh)
			path := filepath.Join(frameDir, frame.ID)
			if !util.FileExists(path) {
				a.logger.Warn().Str("frame", frame.ID).Str("shot", sh.ID).Msg("representative frame missing, skipping")
				continue
			}
			found[i][j] = true

			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				products, err := a.detector.DetectProducts(ctx, path)
				if err != nil {
					a.logger.Warn().Err(err).Str("frame", frame.ID).Msg("product detection failed")
					products = ai.ErrorResult(err.Error())
				}
				doc.Scenes[i].Groups[j] = Group{
					Timestamp: sh.StartTime(),
					Frame:     frame.ID,
					Products:  products,
				}
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	detected := 0
	for i := range doc.Scenes {
		groups := doc.Scenes[i].Groups[:0]
		for j, ok := range found[i] {
			if ok {
				groups = append(groups, doc.Scenes[i].Groups[j])
			}
		}
		doc.Scenes[i].Groups = groups
		detected += len(groups)
	}

	a.logger.Info().Int("scenes", len(doc.Scenes)).Int("groups", detected).Msg("product detection complete")
	return doc, nil
}

// Search returns every group whose timestamp lies in [start, end], in
// document order.
func (d *Document) Search(start, end float64) ([]Result, error) {
	var results []Result
	for _, sc := range d.Scenes {
		for _, g := range sc.Groups {
			if g.Timestamp < start || g.Timestamp > end {
				continue
			}
			products := g.Products
			if len(products) == 0 {
				products = json.RawMessage("[]")
			}
			results = append(results, Result{
				SceneTimestamp: sc.Timestamp,
				GroupTimestamp: g.Timestamp,
				Frame:          g.Frame,
				Products:       products,
			})
		}
	}
	if len(results) == 0 {
		return nil, ErrNoResults
	}
	return results, nil
}

// Load reads a document written by Save.
func Load(path string) (*Document, error) {
	data, err := util.ReadFileLocked(path)
	if err != nil {
		return nil, err
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid products document %s: %w", path, err)
	}
	return &doc, nil
}

// Save writes doc as indented JSON, replacing path atomically.
func Save(path string, doc *Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return util.WriteFileAtomic(path, data)
}
