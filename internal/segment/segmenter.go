package segment

import (
	"fmt"

	"github.com/kikiluvv/framefinder/internal/descriptor"
	"github.com/kikiluvv/framefinder/internal/manifest"
)

// Strategy selects the grouping algorithm.
type Strategy string

const (
	// StrategySeed clusters against seed frames, refines by time gaps and
	// assembles scenes.
	StrategySeed Strategy = "seed"
	// StrategyAdjacent is the legacy adjacent-frame grouping; every group
	// becomes its own scene.
	StrategyAdjacent Strategy = "adjacent"
)

// Default thresholds per metric.
const (
	DefaultHammingThreshold = 8
	DefaultGridThreshold    = 1000
	DefaultMaxFrameGap      = 2.0
	DefaultMaxSceneGap      = 5.0
)

// Config parameterizes a Segmenter.
type Config struct {
	Strategy    Strategy
	Metric      descriptor.Metric
	Threshold   float64
	MinShotSize int
	MaxFrameGap float64
	MaxSceneGap float64
	Workers     int
}

// DefaultConfig returns the seed strategy over color grids.
func DefaultConfig() Config {
	return Config{
		Strategy:    StrategySeed,
		Metric:      descriptor.MetricGridSquared,
		Threshold:   DefaultGridThreshold,
		MinShotSize: DefaultMinShotSize,
		MaxFrameGap: DefaultMaxFrameGap,
		MaxSceneGap: DefaultMaxSceneGap,
	}
}

// Validate rejects configurations the algorithms cannot run with.
func (c Config) Validate() error {
	switch c.Strategy {
	case StrategySeed, StrategyAdjacent:
	default:
		return fmt.Errorf("unknown strategy %q", c.Strategy)
	}
	if c.Metric.Kind() == descriptor.KindNone {
		return fmt.Errorf("unknown metric %q", c.Metric)
	}
	if c.Threshold < 0 {
		return fmt.Errorf("threshold must be non-negative, got %v", c.Threshold)
	}
	if c.MinShotSize < 1 {
		return fmt.Errorf("min shot size must be at least 1, got %d", c.MinShotSize)
	}
	if c.MaxFrameGap < 0 || c.MaxSceneGap < 0 {
		return fmt.Errorf("gaps must be non-negative")
	}
	return nil
}

// Stats counts what each stage produced.
type Stats struct {
	Frames   int
	Clusters int
	Kept     int
	Shots    int
	Scenes   int
}

// Segmenter runs the full segmentation for one video.
type Segmenter struct {
	cfg Config
}

// New validates cfg and returns a Segmenter.
func New(cfg Config) (*Segmenter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Segmenter{cfg: cfg}, nil
}

// Run segments frames into a manifest with positional identifiers.
func (s *Segmenter) Run(movieName string, frames []manifest.Frame) (*manifest.Manifest, Stats, error) {
	stats := Stats{Frames: len(frames)}
	m := &manifest.Manifest{MovieName: movieName, Scenes: []manifest.Scene{}}

	switch s.cfg.Strategy {
	case StrategyAdjacent:
		shots, err := GroupAdjacent(frames, s.cfg.Metric, s.cfg.Threshold)
		if err != nil {
			return nil, stats, err
		}
		stats.Clusters, stats.Kept, stats.Shots = len(shots), len(shots), len(shots)
		for _, sh := range shots {
			m.Scenes = append(m.Scenes, manifest.Scene{Shots: []manifest.Shot{sh}})
		}

	default:
		shots, err := Engine{Workers: s.cfg.Workers}.Cluster(frames, s.cfg.Metric, s.cfg.Threshold)
		if err != nil {
			return nil, stats, err
		}
		stats.Clusters = len(shots)

		shots = FilterSmallShots(shots, s.cfg.MinShotSize)
		stats.Kept = len(shots)

		shots = SplitByTimeGap(shots, s.cfg.MaxFrameGap, s.cfg.MinShotSize)
		stats.Shots = len(shots)

		m.Scenes = Assemble(shots, s.cfg.MaxSceneGap)
	}

	stats.Scenes = len(m.Scenes)
	m.AssignIDs()
	return m, stats, nil
}
