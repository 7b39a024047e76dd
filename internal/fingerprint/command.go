// Package fingerprint obtains frame descriptors from an external
// fingerprinting command and reads the frames documents it produces.
package fingerprint

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/kikiluvv/framefinder/internal/descriptor"
	"github.com/kikiluvv/framefinder/internal/manifest"
)

// ErrNoCommand is returned when no fingerprint command is configured.
var ErrNoCommand = errors.New("no fingerprint command configured")

// Fingerprinter computes descriptors for every frame in a directory.
type Fingerprinter interface {
	Fingerprint(ctx context.Context, dir string, kind descriptor.Kind) ([]manifest.Frame, error)
}

// Command runs an external program as
//
//	<argv...> --kind phash|rgb --grid-size N <dir>
//
// and reads a frames document from its stdout.
type Command struct {
	logger   zerolog.Logger
	argv     []string
	gridSize int
}

// NewCommand returns a Command fingerprinter.
func NewCommand(logger zerolog.Logger, argv []string, gridSize int) (*Command, error) {
	if len(argv) == 0 {
		return nil, ErrNoCommand
	}
	if _, err := exec.LookPath(argv[0]); err != nil {
		return nil, fmt.Errorf("fingerprint command not found: %w", err)
	}
	return &Command{
		logger:   logger.With().Str("component", "fingerprint").Logger(),
		argv:     argv,
		gridSize: gridSize,
	}, nil
}

func (c *Command) args(dir string, kind descriptor.Kind) []string {
	args := append([]string{}, c.argv[1:]...)
	return append(args,
		"--kind", kindArg(kind),
		"--grid-size", strconv.Itoa(c.gridSize),
		dir,
	)
}

func kindArg(k descriptor.Kind) string {
	if k == descriptor.KindPerceptualHash {
		return "phash"
	}
	return "rgb"
}

// Fingerprint runs the command over dir. Every returned frame must carry a
// descriptor of the requested kind.
func (c *Command) Fingerprint(ctx context.Context, dir string, kind descriptor.Kind) ([]manifest.Frame, error) {
	args := c.args(dir, kind)
	c.logger.Info().
		Str("dir", dir).
		Str("kind", kind.String()).
		Strs("args", args).
		Msg("fingerprinting frames")

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.argv[0], args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.Error().Str("stderr", stderr.String()).Msg("fingerprint command failed")
		return nil, fmt.Errorf("fingerprint command failed: %w", err)
	}

	frames, err := ReadFrames(&stdout)
	if err != nil {
		return nil, fmt.Errorf("failed to parse fingerprint output: %w", err)
	}

	for _, f := range frames {
		if f.Descriptor.Kind() != kind {
			return nil, fmt.Errorf("frame %s: %w: got %s, want %s", f.ID, descriptor.ErrShapeMismatch, f.Descriptor.Kind(), kind)
		}
	}

	c.logger.Info().Int("frames", len(frames)).Msg("fingerprinting complete")
	return frames, nil
}
