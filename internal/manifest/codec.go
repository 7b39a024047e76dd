package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/kikiluvv/framefinder/internal/descriptor"
	"github.com/kikiluvv/framefinder/pkg/util"
)

// Variant selects how frames are written.
type Variant int

const (
	// VariantAuto writes descriptors when every frame has one.
	VariantAuto Variant = iota
	// VariantSegmentation writes frames as bare identifiers.
	VariantSegmentation
	// VariantQueryable writes frames as objects carrying their descriptor.
	VariantQueryable
)

type document struct {
	MovieName string     `json:"movie_name,omitempty"`
	Scenes    []sceneDoc `json:"scenes"`
}

type sceneDoc struct {
	Timestamp float64    `json:"timestamp"`
	Groups    []groupDoc `json:"groups,omitempty"`
	// Frames is only present in the legacy flat layout, one group per scene.
	Frames []frameDoc `json:"frames,omitempty"`
}

type groupDoc struct {
	Timestamp float64    `json:"timestamp"`
	Frames    []frameDoc `json:"frames"`
}

// frameDoc is either a bare frame identifier or a frame object.
type frameDoc struct {
	name   string
	object *frameObject
}

type frameObject struct {
	Frame     string   `json:"frame"`
	Timestamp *float64 `json:"timestamp,omitempty"`
	MovieName string   `json:"movie_name,omitempty"`
	descriptor.Fields
}

func (f frameDoc) MarshalJSON() ([]byte, error) {
	if f.object != nil {
		return json.Marshal(f.object)
	}
	return json.Marshal(f.name)
}

func (f *frameDoc) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &f.name)
	}
	var obj frameObject
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	f.object = &obj
	f.name = obj.Frame
	return nil
}

// toFrame resolves the frame timestamp from the record, then from the frame
// name, and finally from the enclosing group.
func (f frameDoc) toFrame(groupTS float64) (Frame, error) {
	if f.name == "" {
		return Frame{}, fmt.Errorf("%w: frame without identifier", ErrInvalidManifest)
	}
	fr := Frame{ID: f.name, Timestamp: groupTS}
	if ts, err := util.ParseFrameName(f.name); err == nil {
		fr.Timestamp = ts
	}
	if f.object == nil {
		return fr, nil
	}
	if f.object.Timestamp != nil {
		fr.Timestamp = *f.object.Timestamp
	}
	d, err := f.object.Fields.Descriptor()
	if err != nil {
		return Frame{}, fmt.Errorf("frame %s: %w", f.name, err)
	}
	fr.Descriptor = d
	return fr, nil
}

func toFrameDoc(f Frame, movie string, queryable bool) frameDoc {
	if !queryable {
		return frameDoc{name: f.ID}
	}
	ts := f.Timestamp
	return frameDoc{
		name: f.ID,
		object: &frameObject{
			Frame:     f.ID,
			Timestamp: &ts,
			MovieName: movie,
			Fields:    f.Descriptor.Fields(),
		},
	}
}

// Marshal encodes m as a manifest document.
func Marshal(m *Manifest, v Variant) ([]byte, error) {
	queryable := v == VariantQueryable || (v == VariantAuto && m.Queryable())

	doc := document{MovieName: m.MovieName, Scenes: make([]sceneDoc, 0, len(m.Scenes))}
	for _, sc := range m.Scenes {
		sd := sceneDoc{Timestamp: sc.StartTime(), Groups: make([]groupDoc, 0, len(sc.Shots))}
		for _, sh := range sc.Shots {
			gd := groupDoc{Timestamp: sh.StartTime(), Frames: make([]frameDoc, 0, len(sh.Frames))}
			for _, f := range sh.Frames {
				gd.Frames = append(gd.Frames, toFrameDoc(f, m.MovieName, queryable))
			}
			sd.Groups = append(sd.Groups, gd)
		}
		doc.Scenes = append(doc.Scenes, sd)
	}

	return json.MarshalIndent(doc, "", "  ")
}

// Unmarshal decodes a manifest document in either variant, or in the legacy
// flat layout, rejects documents whose groups are out of timestamp order
// and assigns positional identifiers.
func Unmarshal(data []byte) (*Manifest, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}

	m := &Manifest{MovieName: doc.MovieName, Scenes: make([]Scene, 0, len(doc.Scenes))}
	for i, sd := range doc.Scenes {
		groups := sd.Groups
		if len(groups) == 0 && len(sd.Frames) > 0 {
			groups = []groupDoc{{Timestamp: sd.Timestamp, Frames: sd.Frames}}
		}
		if len(groups) == 0 {
			return nil, fmt.Errorf("%w: scene %d has no groups", ErrInvalidManifest, i)
		}

		sc := Scene{Shots: make([]Shot, 0, len(groups))}
		for j, gd := range groups {
			if len(gd.Frames) == 0 {
				return nil, fmt.Errorf("%w: scene %d group %d has no frames", ErrInvalidManifest, i, j)
			}
			sh := Shot{Frames: make([]Frame, 0, len(gd.Frames))}
			for _, fd := range gd.Frames {
				f, err := fd.toFrame(gd.Timestamp)
				if err != nil {
					return nil, err
				}
				if m.MovieName == "" && fd.object != nil {
					m.MovieName = fd.object.MovieName
				}
				sh.Frames = append(sh.Frames, f)
			}
			sc.Shots = append(sc.Shots, sh)
		}
		m.Scenes = append(m.Scenes, sc)
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}
	m.AssignIDs()
	return m, nil
}

// Encode writes m to w.
func Encode(w io.Writer, m *Manifest, v Variant) error {
	data, err := Marshal(m, v)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// Decode reads a manifest document from r.
func Decode(r io.Reader) (*Manifest, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return Unmarshal(data)
}
