package fingerprint

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/kikiluvv/framefinder/internal/descriptor"
	"github.com/kikiluvv/framefinder/internal/manifest"
	"github.com/kikiluvv/framefinder/pkg/util"
)

// maxLine bounds a single frames document record.
const maxLine = 4 << 20

// record is one line of a frames document.
type record struct {
	Frame     string   `json:"frame"`
	Timestamp *float64 `json:"timestamp,omitempty"`
	descriptor.Fields
}

// ReadFrames parses a frames document: one JSON object per line carrying a
// frame name, an optional timestamp and a phash or rgb_grid. A missing
// timestamp is taken from the HH_MM_SS_mmm frame name.
func ReadFrames(r io.Reader) ([]manifest.Frame, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLine)

	var frames []manifest.Frame
	line := 0
	for scanner.Scan() {
		line++
		data := bytes.TrimSpace(scanner.Bytes())
		if len(data) == 0 {
			continue
		}

		var rec record
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if rec.Frame == "" {
			return nil, fmt.Errorf("line %d: missing frame name", line)
		}

		f := manifest.Frame{ID: rec.Frame}
		if rec.Timestamp != nil {
			f.Timestamp = *rec.Timestamp
		} else {
			ts, err := util.ParseFrameName(rec.Frame)
			if err != nil {
				return nil, fmt.Errorf("line %d: no timestamp: %w", line, err)
			}
			f.Timestamp = ts
		}
		if f.Timestamp < 0 {
			return nil, fmt.Errorf("line %d: negative timestamp %v", line, f.Timestamp)
		}

		d, err := rec.Fields.Descriptor()
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		f.Descriptor = d

		frames = append(frames, f)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return frames, nil
}

// WriteFrames writes frames as a frames document.
func WriteFrames(w io.Writer, frames []manifest.Frame) error {
	enc := json.NewEncoder(w)
	for _, f := range frames {
		ts := f.Timestamp
		if err := enc.Encode(record{Frame: f.ID, Timestamp: &ts, Fields: f.Descriptor.Fields()}); err != nil {
			return err
		}
	}
	return nil
}
