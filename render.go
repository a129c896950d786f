package main

import (
	"fmt"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"

	"mandelview/fractal"
)

// Draw renders the newest frame, the overlays and the status text.
func (g *Game) Draw(screen *ebiten.Image) {
	if g.frame != nil {
		if g.pixelsDirty {
			g.pixels = fractal.Colorize(g.frame.Field, g.mode, g.pixels)
			g.fieldImage.WritePixels(g.pixels)
			g.pixelsDirty = false
		}
		screen.DrawImage(g.fieldImage, nil)
		if g.axes {
			screen.DrawImage(g.axesLayer(), nil)
		}
	}
	if g.sel.Dragging() {
		screen.DrawImage(g.selectionLayer(), nil)
	}

	if g.sched.Busy() || g.frame == nil {
		ebitenutil.DebugPrintAt(screen, "Recalculating...", recalcLabelX, recalcLabelY)
	}
	if g.status != "" && time.Now().Before(g.statusUntil) {
		ebitenutil.DebugPrintAt(screen, g.status, recalcLabelX, g.cfg.Height-debugOverlayY)
	}
	if g.debug {
		ebitenutil.DebugPrintAt(screen, g.debugText(), 0, debugOverlayY)
	}
}

// Layout reports the logical screen size used by Ebiten.
func (g *Game) Layout(_, _ int) (int, int) { return g.cfg.Width, g.cfg.Height }

// axesLayer returns the axes image for the displayed frame, redrawing it
// when the bounds or the mode changed.
func (g *Game) axesLayer() *ebiten.Image {
	b := g.frame.Viewport.Bounds
	if g.axesImage == nil || b != g.axesBounds || g.mode != g.axesMode {
		if g.axesImage != nil {
			g.axesImage.Deallocate()
		}
		g.axesImage = ebiten.NewImageFromImage(g.painter.AxesLayer(g.frame.Viewport, g.mode))
		g.axesBounds, g.axesMode = b, g.mode
	}
	return g.axesImage
}

// selectionLayer returns the drag box, redrawn after pointer movement.
func (g *Game) selectionLayer() *ebiten.Image {
	if g.selImage == nil {
		g.selImage = ebiten.NewImage(g.cfg.Width, g.cfg.Height)
		g.selDirty = true
	}
	if g.selDirty {
		if layer := g.painter.SelectionLayer(g.shown(), &g.sel, g.mode); layer != nil {
			g.selImage.WritePixels(layer.Pix)
		}
		g.selDirty = false
	}
	return g.selImage
}

func (g *Game) debugText() string {
	msg := fmt.Sprintf("FPS: %.1f  TPS: %.1f\nIterations: %d (+/-)\nMode: %s\n%s",
		ebiten.ActualFPS(), ebiten.ActualTPS(), g.iters, g.mode, g.vp.Bounds)
	if g.frame != nil {
		msg += fmt.Sprintf("\nFrame %d: %.1f ms on %s\nEscaped: %d/%d",
			g.frame.Seq, g.frame.Elapsed.Seconds()*1000, g.frame.Backend,
			g.frame.Field.Escaped(), len(g.frame.Field.Values))
	}
	return msg
}
