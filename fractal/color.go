package fractal

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"strings"
)

// Mode selects how escaped pixels are painted.
type Mode int

const (
	// ModeColor paints escaped pixels along a hue ramp starting at violet.
	ModeColor Mode = iota
	// ModeMonochrome paints every escaped pixel white.
	ModeMonochrome
)

// ParseMode accepts "color"/"colour" and "mono"/"monochrome".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "color", "colour", "":
		return ModeColor, nil
	case "mono", "monochrome":
		return ModeMonochrome, nil
	}
	return ModeColor, fmt.Errorf("%w: unknown color mode %q", ErrInvalidArgument, s)
}

func (m Mode) String() string {
	if m == ModeMonochrome {
		return "mono"
	}
	return "color"
}

// Toggle flips between color and monochrome.
func (m Mode) Toggle() Mode {
	if m == ModeMonochrome {
		return ModeColor
	}
	return ModeMonochrome
}

var (
	inSetColor  = color.RGBA{A: 0xff}
	escapedMono = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
)

// hueOffset is the hue, in degrees, of the slowest escaping pixels.
const hueOffset = 280

// ColorOf maps one intensity to a pixel color. In-set pixels (v == 0) are
// opaque black in both modes. A degenerate range normalizes every escaped
// pixel to the start of the ramp.
func ColorOf(v float64, r Range, mode Mode) color.RGBA {
	if v == 0 {
		return inSetColor
	}
	if mode == ModeMonochrome {
		return escapedMono
	}
	red, green, blue := HSVToRGB(math.Mod(hueOffset+360*normalize(v, r), 360), 1, 1)
	return color.RGBA{R: channel(red), G: channel(green), B: channel(blue), A: 0xff}
}

// normalize maps v into [0, 1] relative to r.
func normalize(v float64, r Range) float64 {
	if r.Degenerate() {
		return 0
	}
	t := (v - r.Min) / (r.Max - r.Min)
	switch {
	case math.IsNaN(t) || t < 0:
		return 0
	case t > 1:
		return 1
	}
	return t
}

// HSVToRGB converts a hue in degrees [0, 360) with saturation and value in
// [0, 1] to red, green and blue in [0, 1].
func HSVToRGB(h, s, v float64) (r, g, b float64) {
	c := s * v
	h /= 60
	x := c * (1 - math.Abs(math.Mod(h, 2)-1))
	switch {
	case h < 1:
		r, g, b = c, x, 0
	case h < 2:
		r, g, b = x, c, 0
	case h < 3:
		r, g, b = 0, c, x
	case h < 4:
		r, g, b = 0, x, c
	case h < 5:
		r, g, b = x, 0, c
	default:
		r, g, b = c, 0, x
	}
	m := v - c
	return r + m, g + m, b + m
}

// channel scales [0, 1] to a byte with round-half-even and clamping.
func channel(f float64) uint8 {
	f = math.RoundToEven(f * 255)
	if f <= 0 || math.IsNaN(f) {
		return 0
	}
	if f >= 255 {
		return 255
	}
	return uint8(f)
}

// Colorize writes the RGBA bytes of f into dst, growing it when needed, and
// returns the filled slice of length Width*Height*4.
func Colorize(f *Field, mode Mode, dst []byte) []byte {
	n := len(f.Values) * 4
	if cap(dst) < n {
		dst = make([]byte, n)
	}
	dst = dst[:n]
	for i, v := range f.Values {
		c := ColorOf(v, f.Range, mode)
		base := i * 4
		dst[base] = c.R
		dst[base+1] = c.G
		dst[base+2] = c.B
		dst[base+3] = c.A
	}
	return dst
}

// Image returns f colorized as an *image.RGBA.
func Image(f *Field, mode Mode) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	img.Pix = Colorize(f, mode, img.Pix)
	return img
}
