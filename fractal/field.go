package fractal

import (
	"context"
	"math"
)

// Range holds the smallest positive and the largest intensity of a Field.
// Min stays +Inf and Max stays 0 when no pixel escaped.
type Range struct {
	Min, Max float64
}

// emptyRange is the identity for Range.merge.
func emptyRange() Range {
	return Range{Min: math.Inf(1), Max: 0}
}

func (r *Range) observe(v float64) {
	if v > r.Max {
		r.Max = v
	}
	if v > 0 && v < r.Min {
		r.Min = v
	}
}

func (r *Range) merge(o Range) {
	if o.Max > r.Max {
		r.Max = o.Max
	}
	if o.Min < r.Min {
		r.Min = o.Min
	}
}

// Degenerate reports whether the range cannot be used to normalize: nothing
// escaped or every escaped pixel has the same value.
func (r Range) Degenerate() bool {
	return math.IsInf(r.Min, 0) || math.IsNaN(r.Min) || math.IsNaN(r.Max) || !(r.Max > r.Min)
}

// Field stores one intensity per pixel, row-major by x + y*Width.
type Field struct {
	Width, Height int
	Values        []float64
	Range         Range
}

// newField allocates a zeroed field.
func newField(width, height int) *Field {
	return &Field{
		Width:  width,
		Height: height,
		Values: make([]float64, width*height),
		Range:  emptyRange(),
	}
}

// At returns the intensity at pixel (x, y).
func (f *Field) At(x, y int) float64 {
	return f.Values[y*f.Width+x]
}

// Escaped counts pixels that left the escape radius.
func (f *Field) Escaped() int {
	n := 0
	for _, v := range f.Values {
		if v != 0 {
			n++
		}
	}
	return n
}

// Backend evaluates a full grid. Implementations return either a complete
// field or an error, never a partially filled field.
type Backend interface {
	Evaluate(ctx context.Context, vp Viewport, maxIters int) (*Field, error)
	Name() string
	Close()
}
