package main

import (
	"fmt"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"mandelview/config"
	"mandelview/fractal"
)

// regionKeys maps the digit keys to fractal.Regions in order.
var regionKeys = []ebiten.Key{
	ebiten.KeyDigit1, ebiten.KeyDigit2, ebiten.KeyDigit3,
	ebiten.KeyDigit4, ebiten.KeyDigit5, ebiten.KeyDigit6,
}

// handleInput applies this tick's input and reports whether the view or the
// iteration cap changed.
func (g *Game) handleInput() bool {
	changed := g.handlePointer()
	changed = g.handleNavigation() || changed
	g.handleDisplayKeys()
	return changed
}

// cursor returns the pointer position clamped to the logical screen.
func (g *Game) cursor() (int, int) {
	x, y := ebiten.CursorPosition()
	return clampCoord(x, 0, g.cfg.Width), clampCoord(y, 0, g.cfg.Height)
}

func (g *Game) handlePointer() bool {
	x, y := g.cursor()
	if inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft) {
		g.selDirty = g.sel.PointerDown(x, y, fractal.ButtonPrimary) || g.selDirty
	}
	if g.sel.PointerMove(x, y) {
		g.selDirty = true
	}
	if inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonRight) || inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		g.sel.Cancel()
	}
	if !inpututil.IsMouseButtonJustReleased(ebiten.MouseButtonLeft) {
		return false
	}
	next, ok, err := g.sel.PointerUp(x, y, fractal.ButtonPrimary, g.shown())
	if err != nil {
		g.setStatus("selection rejected: " + err.Error())
		return false
	}
	if !ok {
		return false
	}
	g.vp = next
	return true
}

func (g *Game) handleNavigation() bool {
	changed := false
	_, wheel := ebiten.Wheel()
	switch {
	case inpututil.IsKeyJustPressed(ebiten.KeyZ) || wheel > 0:
		changed = g.moveTo(g.vp.ZoomIn())
	case inpututil.IsKeyJustPressed(ebiten.KeyX) || wheel < 0:
		changed = g.moveTo(g.vp.ZoomOut())
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyR) {
		g.vp = g.vp.Reset()
		changed = true
	}

	dx, dy := 0.0, 0.0
	if inpututil.IsKeyJustPressed(ebiten.KeyArrowLeft) {
		dx -= panStep
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyArrowRight) {
		dx += panStep
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyArrowUp) {
		dy += panStep
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyArrowDown) {
		dy -= panStep
	}
	if (dx != 0 || dy != 0) && g.moveTo(g.vp.Pan(dx, dy)) {
		changed = true
	}

	for i, key := range regionKeys {
		if i < len(fractal.Regions) && inpututil.IsKeyJustPressed(key) {
			next, err := g.vp.SetRegion(fractal.Regions[i].Bounds)
			if err != nil {
				g.setStatus(err.Error())
				continue
			}
			g.vp = next
			g.setStatus("region: " + fractal.Regions[i].Name)
			changed = true
		}
	}

	if inpututil.IsKeyJustPressed(ebiten.KeyEqual) || inpututil.IsKeyJustPressed(ebiten.KeyKPAdd) {
		changed = g.adjustIterations(iterationFactor) || changed
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyMinus) || inpututil.IsKeyJustPressed(ebiten.KeyKPSubtract) {
		changed = g.adjustIterations(-iterationFactor) || changed
	}
	if changed && g.sel.Dragging() {
		g.sel.Cancel()
	}
	return changed
}

// handleDisplayKeys toggles presentation state that needs no evaluation.
func (g *Game) handleDisplayKeys() {
	if inpututil.IsKeyJustPressed(ebiten.KeyM) {
		g.mode = g.mode.Toggle()
		g.pixelsDirty = true
		g.selDirty = true
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyA) {
		g.axes = !g.axes
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF1) {
		g.debug = !g.debug
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyC) {
		g.copyBounds()
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyP) {
		g.saveSnapshot()
	}
}

// adjustIterations multiplies the iteration cap by factor, or divides by
// -factor when negative, clamped to [minIterations, config.MaxIterations].
// It reports whether the cap changed.
func (g *Game) adjustIterations(factor int) bool {
	next := g.iters
	if factor > 0 {
		next *= factor
	} else {
		next /= -factor
	}
	next = clampCoord(next, minIterations, config.MaxIterations)
	if next == g.iters {
		return false
	}
	g.iters = next
	g.setStatus(fmt.Sprintf("iterations: %d", next))
	return true
}

// clampCoord constrains v to lie within the inclusive [lo, hi] range.
func clampCoord(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// moveTo commits a navigation result and reports whether the view changed.
func (g *Game) moveTo(next fractal.Viewport, err error) bool {
	if err != nil {
		g.setStatus(err.Error())
		return false
	}
	g.vp = next
	return true
}
