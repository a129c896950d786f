package main

import (
	"bytes"
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/atotto/clipboard"

	"mandelview/fractal"
	"mandelview/overlay"
)

// saveSnapshot writes the displayed frame with its overlays to a
// timestamped PNG in the working directory.
func (g *Game) saveSnapshot() {
	if g.frame == nil {
		g.setStatus("nothing to save yet")
		return
	}
	img := g.painter.Render(g.frame.Field, g.frame.Viewport, overlay.Options{
		Mode: g.mode,
		Axes: g.axes,
	})
	path := fmt.Sprintf(snapshotPattern, time.Now().Format(snapshotStamp))
	if err := overlay.SavePNG(path, img); err != nil {
		g.log.Error("saving snapshot", "err", err)
		g.setStatus("snapshot failed")
		return
	}
	g.setStatus("saved " + path)
}

// copyBounds puts the current bounds on the clipboard as a TOML [bounds]
// table that can be pasted into the config file.
func (g *Game) copyBounds() {
	text, err := boundsTOML(g.vp.Bounds)
	if err == nil {
		err = clipboard.WriteAll(text)
	}
	if err != nil {
		g.log.Warn("copying bounds", "err", err)
		g.setStatus("clipboard unavailable")
		return
	}
	g.setStatus("bounds copied")
}

func boundsTOML(b fractal.Bounds) (string, error) {
	var buf bytes.Buffer
	doc := struct {
		Bounds fractal.Bounds `toml:"bounds"`
	}{b}
	if err := toml.NewEncoder(&buf).Encode(doc); err != nil {
		return "", fmt.Errorf("encoding bounds: %w", err)
	}
	return buf.String(), nil
}
