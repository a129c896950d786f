// Package overlay draws axes, the drag-selection box and their labels on top
// of a colorized field.
package overlay

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"strconv"
	"sync"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomono"

	"mandelview/fractal"
)

const (
	lineWidth = 2
	fontSize  = 12
	tickHalf  = 5
)

var (
	colorInk = color.White
	monoInk  = color.RGBA{R: 0x77, G: 0x77, B: 0x77, A: 0xff}
)

// Ink returns the stroke and text color used over a field painted in mode.
func Ink(mode fractal.Mode) color.Color {
	if mode == fractal.ModeMonochrome {
		return monoInk
	}
	return colorInk
}

// Options selects the layers drawn by Render.
type Options struct {
	Mode      fractal.Mode
	Axes      bool
	Selection *fractal.Selection
}

// Painter draws overlays with a shared label face. It is safe for concurrent
// use.
type Painter struct {
	mu   sync.Mutex
	face font.Face
}

// NewPainter parses the label font.
func NewPainter() (*Painter, error) {
	ttf, err := truetype.Parse(gomono.TTF)
	if err != nil {
		return nil, fmt.Errorf("parsing label font: %w", err)
	}
	face := truetype.NewFace(ttf, &truetype.Options{
		Size:    fontSize,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	return &Painter{face: face}, nil
}

func (p *Painter) prepare(dc *gg.Context, mode fractal.Mode) {
	dc.SetColor(Ink(mode))
	dc.SetLineWidth(lineWidth)
	dc.SetFontFace(p.face)
}

// Render colorizes f and draws the requested layers onto it.
func (p *Painter) Render(f *fractal.Field, vp fractal.Viewport, opts Options) *image.RGBA {
	img := fractal.Image(f, opts.Mode)
	dc := gg.NewContextForRGBA(img)
	if opts.Axes {
		p.DrawAxes(dc, vp.Bounds, opts.Mode)
	}
	if opts.Selection != nil {
		p.DrawSelection(dc, vp, opts.Selection, opts.Mode)
	}
	return img
}

// AxesLayer returns the axes for vp on a transparent image.
func (p *Painter) AxesLayer(vp fractal.Viewport, mode fractal.Mode) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, vp.Width, vp.Height))
	p.DrawAxes(gg.NewContextForRGBA(img), vp.Bounds, mode)
	return img
}

// SelectionLayer returns the selection box on a transparent image, or nil
// when no drag is active.
func (p *Painter) SelectionLayer(vp fractal.Viewport, sel *fractal.Selection, mode fractal.Mode) *image.RGBA {
	if !sel.Dragging() {
		return nil
	}
	img := image.NewRGBA(image.Rect(0, 0, vp.Width, vp.Height))
	p.DrawSelection(gg.NewContextForRGBA(img), vp, sel, mode)
	return img
}

// DrawAxes draws the real and imaginary axes through the origin when it is in
// view, and labelled rulers along the right and bottom edges otherwise.
func (p *Painter) DrawAxes(dc *gg.Context, b fractal.Bounds, mode fractal.Mode) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prepare(dc, mode)

	m := newMapping(b, dc.Width(), dc.Height())
	if b.Xmin < 0 && b.Xmax > 0 && b.Ymin < 0 && b.Ymax > 0 {
		originAxes(dc, m)
		return
	}
	edgeRulers(dc, m)
}

// mapping converts plane coordinates to canvas coordinates.
type mapping struct {
	b    fractal.Bounds
	w, h float64
}

func newMapping(b fractal.Bounds, w, h int) mapping {
	return mapping{b: b, w: float64(w), h: float64(h)}
}

func (m mapping) x(re float64) float64 {
	return m.w * (re - m.b.Xmin) / (m.b.Xmax - m.b.Xmin)
}

func (m mapping) y(im float64) float64 {
	return m.h - m.h*(im-m.b.Ymin)/(m.b.Ymax-m.b.Ymin)
}

func (m mapping) hasRe(re float64) bool { return m.b.Xmin < re && m.b.Xmax > re }
func (m mapping) hasIm(im float64) bool { return m.b.Ymin < im && m.b.Ymax > im }

func textWidth(dc *gg.Context, s string) float64 {
	w, _ := dc.MeasureString(s)
	return w
}

func originAxes(dc *gg.Context, m mapping) {
	x0 := m.x(0)
	dc.DrawLine(x0, 0, x0, m.h)
	dc.Stroke()
	dc.DrawString("Im[c]", x0-textWidth(dc, "Im[c]")-3, 15)
	for _, im := range []float64{-1, 1} {
		if !m.hasIm(im) {
			continue
		}
		y := m.y(im)
		dc.DrawLine(x0-tickHalf, y, x0+tickHalf, y)
		dc.Stroke()
		dc.DrawString(tickLabel(im), x0+10, y+5)
	}

	y0 := m.y(0)
	dc.DrawLine(0, y0, m.w, y0)
	dc.Stroke()
	for _, re := range []float64{-2, -1, 1} {
		if !m.hasRe(re) {
			continue
		}
		x := m.x(re)
		dc.DrawLine(x, y0-tickHalf, x, y0+tickHalf)
		dc.Stroke()
		lx := x
		if re < 0 {
			lx -= 5
		}
		dc.DrawString(tickLabel(re), lx, y0+15)
	}
	dc.DrawString("Re[c]", m.w-textWidth(dc, "Re[c]")-3, y0-10)
}

func edgeRulers(dc *gg.Context, m mapping) {
	// Imaginary ruler on the right edge.
	span := m.b.Ymax - m.b.Ymin
	low, high := m.b.Ymin+0.1*span, m.b.Ymax-0.1*span
	screenLow, screenHigh := 0.9*m.h, 0.1*m.h
	dc.MoveTo(m.w-15, screenLow)
	dc.LineTo(m.w-5, screenLow)
	dc.LineTo(m.w-5, screenHigh)
	dc.LineTo(m.w-15, screenHigh)
	if m.hasIm(0) {
		y0 := m.y(0)
		dc.MoveTo(m.w-15, y0)
		dc.LineTo(m.w-5, y0)
		dc.DrawString("0", m.w-25, y0+3)
	}
	dc.Stroke()
	lowText, highText := rulerLabel(low), rulerLabel(high)
	dc.DrawString(lowText, m.w-18-textWidth(dc, lowText), screenLow+3)
	dc.DrawString(highText, m.w-18-textWidth(dc, highText), screenHigh+3)
	dc.DrawString("Im[c]", m.w-textWidth(dc, "Im[c]")-3, screenHigh-10)

	// Real ruler on the bottom edge.
	span = m.b.Xmax - m.b.Xmin
	low, high = m.b.Xmin+0.1*span, m.b.Xmax-0.1*span
	screenLow, screenHigh = 0.1*m.w, 0.9*m.w
	dc.MoveTo(screenLow, m.h-15)
	dc.LineTo(screenLow, m.h-5)
	dc.LineTo(screenHigh, m.h-5)
	dc.LineTo(screenHigh, m.h-15)
	if m.hasRe(0) {
		x0 := m.x(0)
		dc.MoveTo(x0, m.h-15)
		dc.LineTo(x0, m.h-5)
		dc.DrawString("0", x0-3, m.h-17)
	}
	dc.Stroke()
	dc.DrawString(rulerLabel(low), screenLow-20, m.h-20)
	dc.DrawString(rulerLabel(high), screenHigh-20, m.h-20)
	dc.DrawString("Re[c]", screenHigh+10, m.h-7)
}

func tickLabel(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func rulerLabel(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

// Corner label offsets in pixels.
const (
	labelShiftX = 80
	labelAbove  = 5
	labelBelow  = 10
)

// DrawSelection outlines an active drag and labels both corners with the
// complex value under them. It reports whether anything was drawn.
func (p *Painter) DrawSelection(dc *gg.Context, vp fractal.Viewport, sel *fractal.Selection, mode fractal.Mode) bool {
	anchor, current, ok := sel.Points()
	if !ok {
		return false
	}
	ca, cc, _ := sel.Corners(vp)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.prepare(dc, mode)

	dc.DrawRectangle(float64(anchor.X), float64(anchor.Y),
		float64(current.X-anchor.X), float64(current.Y-anchor.Y))
	dc.Stroke()

	ao, co := cornerOffsets(anchor, current)
	dc.DrawString(ca.String(), float64(anchor.X+ao.X), float64(anchor.Y+ao.Y))
	dc.DrawString(cc.String(), float64(current.X+co.X), float64(current.Y+co.Y))
	return true
}

// cornerOffsets places each corner label outside the box: the label of the
// rightmost corner is shifted left by its width, the upper label sits above
// its corner and the lower label below.
func cornerOffsets(anchor, current image.Point) (ao, co image.Point) {
	if anchor.X > current.X {
		ao.X = -labelShiftX
	} else {
		co.X = -labelShiftX
	}
	if anchor.Y > current.Y {
		ao.Y, co.Y = labelBelow, -labelAbove
	} else {
		ao.Y, co.Y = -labelAbove, labelBelow
	}
	return ao, co
}

// EncodePNG writes img as PNG.
func EncodePNG(w io.Writer, img *image.RGBA) error {
	return gg.NewContextForRGBA(img).EncodePNG(w)
}

// SavePNG writes img to path as PNG.
func SavePNG(path string, img image.Image) error {
	if err := gg.SavePNG(path, img); err != nil {
		return fmt.Errorf("saving %s: %w", path, err)
	}
	return nil
}
