// Package descriptor defines the visual fingerprints attached to frames and
// the distance functions used to compare them.
package descriptor

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Kind identifies which variant a Descriptor holds.
type Kind int

const (
	// KindNone is the zero Descriptor: the frame carries no fingerprint.
	KindNone Kind = iota
	KindPerceptualHash
	KindColorGrid
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindPerceptualHash:
		return "phash"
	case KindColorGrid:
		return "rgb_grid"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Descriptor is a tagged value holding either a perceptual hash or a color
// grid. Construct it with FromHash or FromGrid.
type Descriptor struct {
	kind Kind
	hash PerceptualHash
	grid ColorGrid
}

// FromHash wraps a perceptual hash.
func FromHash(h PerceptualHash) Descriptor {
	return Descriptor{kind: KindPerceptualHash, hash: h}
}

// FromGrid wraps a color grid.
func FromGrid(g ColorGrid) Descriptor {
	return Descriptor{kind: KindColorGrid, grid: g}
}

// Kind returns the variant held by d.
func (d Descriptor) Kind() Kind { return d.kind }

// IsZero reports whether d carries no fingerprint.
func (d Descriptor) IsZero() bool { return d.kind == KindNone }

// Hash returns the perceptual hash and whether d holds one.
func (d Descriptor) Hash() (PerceptualHash, bool) {
	return d.hash, d.kind == KindPerceptualHash
}

// Grid returns the color grid and whether d holds one.
func (d Descriptor) Grid() (ColorGrid, bool) {
	return d.grid, d.kind == KindColorGrid
}

// PerceptualHash is a fixed-width bit string. Width is the number of
// significant bits, at most 64.
type PerceptualHash struct {
	Bits  uint64
	Width int
}

// ParseHash parses a hexadecimal hash. The width is four bits per digit.
func ParseHash(s string) (PerceptualHash, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if s == "" {
		return PerceptualHash{}, fmt.Errorf("%w: empty hash", ErrInvalidDescriptor)
	}
	if len(s) > 16 {
		return PerceptualHash{}, fmt.Errorf("%w: hash %q wider than 64 bits", ErrInvalidDescriptor, s)
	}
	bits, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return PerceptualHash{}, fmt.Errorf("%w: hash %q: %v", ErrInvalidDescriptor, s, err)
	}
	return PerceptualHash{Bits: bits, Width: 4 * len(s)}, nil
}

// String renders the hash as zero-padded lowercase hex.
func (h PerceptualHash) String() string {
	digits := (h.Width + 3) / 4
	return fmt.Sprintf("%0*x", digits, h.Bits)
}

func (h PerceptualHash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

func (h *PerceptualHash) UnmarshalText(text []byte) error {
	parsed, err := ParseHash(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// GridKey addresses one cell of a color grid.
type GridKey struct {
	Row int
	Col int
}

func (k GridKey) String() string {
	return strconv.Itoa(k.Row) + "," + strconv.Itoa(k.Col)
}

// Less orders keys as (row, col) tuples.
func (k GridKey) Less(o GridKey) bool {
	if k.Row != o.Row {
		return k.Row < o.Row
	}
	return k.Col < o.Col
}

// ParseGridKey parses the "row,col" form used in serialized grids.
func ParseGridKey(s string) (GridKey, error) {
	row, col, ok := strings.Cut(s, ",")
	if !ok {
		return GridKey{}, fmt.Errorf("%w: grid key %q", ErrInvalidDescriptor, s)
	}
	r, err := strconv.Atoi(strings.TrimSpace(row))
	if err != nil {
		return GridKey{}, fmt.Errorf("%w: grid key %q", ErrInvalidDescriptor, s)
	}
	c, err := strconv.Atoi(strings.TrimSpace(col))
	if err != nil {
		return GridKey{}, fmt.Errorf("%w: grid key %q", ErrInvalidDescriptor, s)
	}
	return GridKey{Row: r, Col: c}, nil
}

// RGB is a mean cell color.
type RGB [3]int

// Cell is one entry of a color grid.
type Cell struct {
	Key   GridKey
	Color RGB
}

// ColorGrid maps grid cells to mean colors. Cells are kept sorted by key so
// that every traversal uses the same deterministic order.
type ColorGrid struct {
	cells []Cell
}

// NewColorGrid builds a grid from a key/color mapping.
func NewColorGrid(cells map[GridKey]RGB) (ColorGrid, error) {
	out := make([]Cell, 0, len(cells))
	for k, c := range cells {
		if c[0] < 0 || c[1] < 0 || c[2] < 0 {
			return ColorGrid{}, fmt.Errorf("%w: negative color at cell %s", ErrInvalidDescriptor, k)
		}
		out = append(out, Cell{Key: k, Color: c})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.Less(out[j].Key) })
	return ColorGrid{cells: out}, nil
}

// UniformGrid returns a size×size grid with every cell set to c.
func UniformGrid(size int, c RGB) ColorGrid {
	cells := make([]Cell, 0, size*size)
	for r := 0; r < size; r++ {
		for col := 0; col < size; col++ {
			cells = append(cells, Cell{Key: GridKey{Row: r, Col: col}, Color: c})
		}
	}
	return ColorGrid{cells: cells}
}

// Len returns the number of cells.
func (g ColorGrid) Len() int { return len(g.cells) }

// Cells returns the cells in key order. The slice must not be modified.
func (g ColorGrid) Cells() []Cell { return g.cells }

// Vector flattens the grid in key order, three components per cell.
func (g ColorGrid) Vector() []float32 {
	v := make([]float32, 0, 3*len(g.cells))
	for _, c := range g.cells {
		v = append(v, float32(c.Color[0]), float32(c.Color[1]), float32(c.Color[2]))
	}
	return v
}

// sameShape reports whether both grids have the identical key set.
func (g ColorGrid) sameShape(o ColorGrid) bool {
	if len(g.cells) != len(o.cells) {
		return false
	}
	for i := range g.cells {
		if g.cells[i].Key != o.cells[i].Key {
			return false
		}
	}
	return true
}
