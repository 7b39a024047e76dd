package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/kikiluvv/framefinder/internal/manifest"
	"github.com/kikiluvv/framefinder/pkg/util"
)

// File stores each manifest as <dir>/<key>.json. Writes go through a
// sidecar flock and an atomic rename.
type File struct {
	logger zerolog.Logger
	dir    string
}

func NewFile(logger zerolog.Logger, dir string) *File {
	return &File{logger: logger, dir: dir}
}

// Path returns the manifest file for name.
func (f *File) Path(name string) string {
	return filepath.Join(f.dir, Key(name)+".json")
}

func (f *File) Save(_ context.Context, name string, m *manifest.Manifest) error {
	data, err := manifest.Marshal(m, manifest.VariantAuto)
	if err != nil {
		return err
	}
	path := f.Path(name)
	if err := util.WriteFileAtomic(path, data); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	f.logger.Debug().Str("path", path).Int("bytes", len(data)).Msg("manifest saved")
	return nil
}

func (f *File) Load(_ context.Context, name string) (*manifest.Manifest, error) {
	path := f.Path(name)
	data, err := util.ReadFileLocked(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, err
	}
	return manifest.Unmarshal(data)
}

func (f *File) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".json"))
	}
	sort.Strings(names)
	return names, nil
}

func (f *File) Close() error { return nil }
