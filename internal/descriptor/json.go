package descriptor

import (
	"encoding/json"
	"fmt"
)

// MarshalJSON encodes the grid as {"row,col": [r, g, b]}.
func (g ColorGrid) MarshalJSON() ([]byte, error) {
	m := make(map[string]RGB, len(g.cells))
	for _, c := range g.cells {
		m[c.Key.String()] = c.Color
	}
	return json.Marshal(m)
}

func (g *ColorGrid) UnmarshalJSON(data []byte) error {
	var raw map[string]RGB
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: rgb_grid: %v", ErrInvalidDescriptor, err)
	}
	cells := make(map[GridKey]RGB, len(raw))
	for k, c := range raw {
		key, err := ParseGridKey(k)
		if err != nil {
			return err
		}
		if _, dup := cells[key]; dup {
			return fmt.Errorf("%w: duplicate grid key %q", ErrInvalidDescriptor, k)
		}
		cells[key] = c
	}
	parsed, err := NewColorGrid(cells)
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}

// Fields is the serialized form of a Descriptor inside frame records:
// at most one of the two fields is set.
type Fields struct {
	PHash   *PerceptualHash `json:"phash,omitempty"`
	RGBGrid *ColorGrid      `json:"rgb_grid,omitempty"`
}

// Fields returns the serialized form of d.
func (d Descriptor) Fields() Fields {
	switch d.kind {
	case KindPerceptualHash:
		h := d.hash
		return Fields{PHash: &h}
	case KindColorGrid:
		g := d.grid
		return Fields{RGBGrid: &g}
	default:
		return Fields{}
	}
}

// Descriptor converts serialized fields back into a Descriptor.
func (f Fields) Descriptor() (Descriptor, error) {
	switch {
	case f.PHash != nil && f.RGBGrid != nil:
		return Descriptor{}, fmt.Errorf("%w: both phash and rgb_grid present", ErrInvalidDescriptor)
	case f.PHash != nil:
		return FromHash(*f.PHash), nil
	case f.RGBGrid != nil:
		return FromGrid(*f.RGBGrid), nil
	default:
		return Descriptor{}, nil
	}
}
