package overlay

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mandelview/fractal"
)

func newPainter(t *testing.T) *Painter {
	t.Helper()
	p, err := NewPainter()
	require.NoError(t, err)
	return p
}

func viewport(t *testing.T, w, h int, b fractal.Bounds) fractal.Viewport {
	t.Helper()
	vp, err := fractal.NewViewport(w, h)
	require.NoError(t, err)
	vp, err = vp.SetRegion(b)
	require.NoError(t, err)
	return vp
}

func inked(img *image.RGBA, x, y int) bool {
	return img.RGBAAt(x, y).A > 0
}

func TestInk(t *testing.T) {
	assert.Equal(t, color.White, Ink(fractal.ModeColor))
	assert.Equal(t, color.RGBA{R: 0x77, G: 0x77, B: 0x77, A: 0xff}, Ink(fractal.ModeMonochrome))
}

func TestAxesThroughOrigin(t *testing.T) {
	p := newPainter(t)
	vp := viewport(t, 400, 400, fractal.Bounds{Xmin: -2, Xmax: 2, Ymin: -2, Ymax: 2})

	img := p.AxesLayer(vp, fractal.ModeColor)
	require.Equal(t, image.Rect(0, 0, 400, 400), img.Bounds())

	t.Run("imaginary axis at re = 0", func(t *testing.T) {
		for _, y := range []int{60, 150, 300, 380} {
			assert.True(t, inked(img, 200, y), "y=%d", y)
		}
	})
	t.Run("real axis at im = 0", func(t *testing.T) {
		for _, x := range []int{20, 150, 250} {
			assert.True(t, inked(img, x, 200), "x=%d", x)
		}
	})
	t.Run("tick at re = -1", func(t *testing.T) {
		assert.True(t, inked(img, 100, 196))
	})
	t.Run("background stays transparent", func(t *testing.T) {
		assert.False(t, inked(img, 50, 350))
		assert.False(t, inked(img, 330, 330))
	})
}

func TestAxesMonochromeInk(t *testing.T) {
	p := newPainter(t)
	vp := viewport(t, 200, 200, fractal.Bounds{Xmin: -2, Xmax: 2, Ymin: -2, Ymax: 2})

	c := p.AxesLayer(vp, fractal.ModeMonochrome).RGBAAt(100, 150)
	assert.Greater(t, c.A, uint8(0))
	assert.Equal(t, c.R, c.G)
	assert.Equal(t, c.G, c.B)
	assert.Less(t, c.R, uint8(0xff))
}

func TestAxesEdgeRulers(t *testing.T) {
	p := newPainter(t)
	vp := viewport(t, 300, 300, fractal.Bounds{Xmin: 0.2, Xmax: 0.6, Ymin: 0.2, Ymax: 0.6})

	img := p.AxesLayer(vp, fractal.ModeColor)
	// Right ruler spans 10% to 90% of the height at x = width-5.
	assert.True(t, inked(img, 295, 150))
	// Bottom ruler at y = height-5.
	assert.True(t, inked(img, 150, 295))
	// No axis through the middle.
	assert.False(t, inked(img, 150, 150))
}

func TestSelectionLayer(t *testing.T) {
	p := newPainter(t)
	vp := viewport(t, 400, 400, fractal.Bounds{Xmin: -2, Xmax: 2, Ymin: -2, Ymax: 2})

	var sel fractal.Selection
	assert.Nil(t, p.SelectionLayer(vp, &sel, fractal.ModeColor))

	sel.PointerDown(100, 100, fractal.ButtonPrimary)
	sel.PointerMove(300, 250)
	img := p.SelectionLayer(vp, &sel, fractal.ModeColor)
	require.NotNil(t, img)

	assert.True(t, inked(img, 200, 100), "top edge")
	assert.True(t, inked(img, 100, 175), "left edge")
	assert.True(t, inked(img, 300, 175), "right edge")
	assert.False(t, inked(img, 200, 175), "interior")
}

func TestCornerOffsets(t *testing.T) {
	ao, co := cornerOffsets(image.Pt(10, 10), image.Pt(50, 50))
	assert.Equal(t, image.Pt(0, -5), ao)
	assert.Equal(t, image.Pt(-80, 10), co)

	ao, co = cornerOffsets(image.Pt(50, 50), image.Pt(10, 10))
	assert.Equal(t, image.Pt(-80, 10), ao)
	assert.Equal(t, image.Pt(0, -5), co)
}

func TestRulerLabel(t *testing.T) {
	assert.Equal(t, "-0.7400", rulerLabel(-0.74))
	assert.Equal(t, "1.2346", rulerLabel(1.23456))
	assert.Equal(t, "-1", tickLabel(-1))
}

func TestRenderAndEncode(t *testing.T) {
	p := newPainter(t)
	vp, err := fractal.NewViewport(64, 48)
	require.NoError(t, err)
	field, err := fractal.NewEvaluator(2, 16, nil).Evaluate(context.Background(), vp, 40)
	require.NoError(t, err)

	plain := p.Render(field, vp, Options{Mode: fractal.ModeColor})
	withAxes := p.Render(field, vp, Options{Mode: fractal.ModeColor, Axes: true})
	assert.Equal(t, plain.Bounds(), withAxes.Bounds())
	assert.NotEqual(t, plain.Pix, withAxes.Pix)
	assert.Equal(t, color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}, withAxes.RGBAAt(41, 30))

	var buf bytes.Buffer
	require.NoError(t, EncodePNG(&buf, withAxes))
	decoded, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 64, 48), decoded.Bounds())

	path := filepath.Join(t.TempDir(), "frame.png")
	require.NoError(t, SavePNG(path, withAxes))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}
