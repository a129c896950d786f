package fractal

import (
	"fmt"
	"strings"
)

// Bounds is a rectangle on the complex plane.
type Bounds struct {
	Xmin float64 `toml:"xmin" json:"xmin"`
	Xmax float64 `toml:"xmax" json:"xmax"`
	Ymin float64 `toml:"ymin" json:"ymin"`
	Ymax float64 `toml:"ymax" json:"ymax"`
}

// DefaultBounds frames the whole set with some margin.
var DefaultBounds = Bounds{Xmin: -2.1, Xmax: 1.1, Ymin: -1.6, Ymax: 1.6}

// Classic landmarks in the Mandelbrot set.
var (
	// SeahorseValley has dense filaments and repeating seahorse curls.
	SeahorseValley = Bounds{Xmin: -0.8, Xmax: -0.7, Ymin: 0.05, Ymax: 0.15}
	// ElephantValley is a large bulb with trunk-like tendrils.
	ElephantValley = Bounds{Xmin: -1.85, Xmax: -1.75, Ymin: -0.10, Ymax: -0.02}
	// SpiralMinibrot is a small copy of the set with tight spiral arms.
	SpiralMinibrot = Bounds{Xmin: -0.7435, Xmax: -0.7420, Ymin: 0.1310, Ymax: 0.1325}
	// TripleSpiral has threefold symmetric spirals.
	TripleSpiral = Bounds{Xmin: -0.7480, Xmax: -0.7450, Ymin: 0.0950, Ymax: 0.0980}
	// ValleyOfTheDragon has deep, highly detailed spiral filaments.
	ValleyOfTheDragon = Bounds{Xmin: -0.7400, Xmax: -0.7350, Ymin: 0.1800, Ymax: 0.1850}
	// MinibrotInMiniSpiral is a copy of the set inside a spiral arm.
	MinibrotInMiniSpiral = Bounds{Xmin: -1.7390, Xmax: -1.7375, Ymin: -0.0235, Ymax: -0.0220}
)

// Region is a named set of bounds.
type Region struct {
	Name   string
	Bounds Bounds
}

// Regions lists the named start regions in hotkey order.
var Regions = []Region{
	{Name: "seahorse", Bounds: SeahorseValley},
	{Name: "elephant", Bounds: ElephantValley},
	{Name: "spiral", Bounds: SpiralMinibrot},
	{Name: "triple-spiral", Bounds: TripleSpiral},
	{Name: "dragon", Bounds: ValleyOfTheDragon},
	{Name: "mini-spiral", Bounds: MinibrotInMiniSpiral},
}

// LookupRegion resolves a region name. "default" and "" map to DefaultBounds.
func LookupRegion(name string) (Bounds, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || name == "default" {
		return DefaultBounds, true
	}
	for _, r := range Regions {
		if r.Name == name {
			return r.Bounds, true
		}
	}
	return Bounds{}, false
}

// Validate reports whether b is finite with strictly ordered axes.
func (b Bounds) Validate() error {
	for _, f := range []float64{b.Xmin, b.Xmax, b.Ymin, b.Ymax} {
		if !isFinite(f) {
			return fmt.Errorf("%w: bounds %v are not finite", ErrInvalidArgument, b)
		}
	}
	if !(b.Xmin < b.Xmax) || !(b.Ymin < b.Ymax) {
		return fmt.Errorf("%w: bounds %v are empty", ErrInvalidArgument, b)
	}
	return nil
}

// normalized swaps inverted axis pairs.
func (b Bounds) normalized() Bounds {
	if b.Xmin > b.Xmax {
		b.Xmin, b.Xmax = b.Xmax, b.Xmin
	}
	if b.Ymin > b.Ymax {
		b.Ymin, b.Ymax = b.Ymax, b.Ymin
	}
	return b
}

func (b Bounds) String() string {
	return fmt.Sprintf("x=[%g, %g] y=[%g, %g]", b.Xmin, b.Xmax, b.Ymin, b.Ymax)
}

// Viewport maps a Width x Height pixel grid onto Bounds. Pixel row 0 is the
// top of the grid and corresponds to Ymax.
//
// Viewport is a value: every operation returns the updated viewport and
// leaves the receiver untouched, so an evaluation in flight never sees a
// mutation.
type Viewport struct {
	Bounds
	Width, Height int
}

// NewViewport returns a width x height viewport showing DefaultBounds.
func NewViewport(width, height int) (Viewport, error) {
	if width < 1 || height < 1 {
		return Viewport{}, fmt.Errorf("%w: grid %dx%d", ErrInvalidArgument, width, height)
	}
	return Viewport{Bounds: DefaultBounds, Width: width, Height: height}, nil
}

// Validate checks the grid size and the bounds invariant.
func (v Viewport) Validate() error {
	if v.Width < 1 || v.Height < 1 {
		return fmt.Errorf("%w: grid %dx%d", ErrInvalidArgument, v.Width, v.Height)
	}
	return v.Bounds.Validate()
}

// ToComplex maps a pixel position to the complex plane.
func (v Viewport) ToComplex(px, py float64) Point {
	return Point{
		Re: v.Xmin + (v.Xmax-v.Xmin)*px/float64(v.Width),
		Im: v.Ymax - (v.Ymax-v.Ymin)*py/float64(v.Height),
	}
}

// ToPixel is the inverse of ToComplex.
func (v Viewport) ToPixel(c Point) (px, py float64) {
	px = (c.Re - v.Xmin) / (v.Xmax - v.Xmin) * float64(v.Width)
	py = (v.Ymax - c.Im) / (v.Ymax - v.Ymin) * float64(v.Height)
	return px, py
}

// Span returns the width and height of the window on the complex plane.
func (v Viewport) Span() (float64, float64) {
	return v.Xmax - v.Xmin, v.Ymax - v.Ymin
}

// Center returns the middle of the window.
func (v Viewport) Center() Point {
	return Point{Re: (v.Xmin + v.Xmax) / 2, Im: (v.Ymin + v.Ymax) / 2}
}

// ZoomIn pulls every edge in by a tenth of the current range. It fails and
// keeps v when the span has shrunk below float64 resolution.
func (v Viewport) ZoomIn() (Viewport, error) {
	next := v
	xr, yr := v.Span()
	next.Xmin += 0.1 * xr
	next.Xmax -= 0.1 * xr
	next.Ymin += 0.1 * yr
	next.Ymax -= 0.1 * yr
	return v.commit(next)
}

// ZoomOut undoes one ZoomIn: the range grows by a factor of 1/0.8, not by the
// 0.1 step a symmetric zoom would use. It fails and keeps v on overflow.
func (v Viewport) ZoomOut() (Viewport, error) {
	next := v
	xr, yr := v.Span()
	next.Xmin -= 0.125 * xr
	next.Xmax += 0.125 * xr
	next.Ymin -= 0.125 * yr
	next.Ymax += 0.125 * yr
	return v.commit(next)
}

// Pan shifts the window by fractions of its range. Positive dy moves up.
// Shifts that leave the bounds empty or infinite fail and keep v.
func (v Viewport) Pan(dx, dy float64) (Viewport, error) {
	next := v
	xr, yr := v.Span()
	next.Xmin += dx * xr
	next.Xmax += dx * xr
	next.Ymin += dy * yr
	next.Ymax += dy * yr
	return v.commit(next)
}

// commit returns next when it satisfies the bounds invariant and v otherwise.
func (v Viewport) commit(next Viewport) (Viewport, error) {
	if err := next.Bounds.Validate(); err != nil {
		return v, err
	}
	return next, nil
}

// SetRegion replaces the bounds. Inverted axis pairs are swapped before the
// bounds are checked.
func (v Viewport) SetRegion(b Bounds) (Viewport, error) {
	b = b.normalized()
	if err := b.Validate(); err != nil {
		return v, err
	}
	v.Bounds = b
	return v, nil
}

// Reset restores DefaultBounds.
func (v Viewport) Reset() Viewport {
	v.Bounds = DefaultBounds
	return v
}
