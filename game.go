package main

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hajimehoshi/ebiten/v2"

	"mandelview/config"
	"mandelview/fractal"
	"mandelview/overlay"
)

// Game holds the explorer state. Evaluation runs on the scheduler; Update
// only polls for finished frames, so input stays responsive during long
// renders.
type Game struct {
	ctx     context.Context
	cfg     *config.Config
	log     *slog.Logger
	sched   *fractal.Scheduler
	painter *overlay.Painter

	vp    fractal.Viewport
	sel   fractal.Selection
	iters int
	mode  fractal.Mode
	axes  bool
	debug bool

	// frame is the newest published evaluation; pixels holds its colors.
	frame       *fractal.Frame
	pixels      []byte
	fieldImage  *ebiten.Image
	pixelsDirty bool

	axesImage  *ebiten.Image
	axesBounds fractal.Bounds
	axesMode   fractal.Mode

	selImage *ebiten.Image
	selDirty bool

	status      string
	statusUntil time.Time
	lastErr     error
}

// newGame builds the explorer and submits the first evaluation.
func newGame(ctx context.Context, cfg *config.Config, sched *fractal.Scheduler, painter *overlay.Painter, logger *slog.Logger) (*Game, error) {
	vp, err := cfg.Viewport()
	if err != nil {
		return nil, err
	}
	g := &Game{
		ctx:        ctx,
		cfg:        cfg,
		log:        logger,
		sched:      sched,
		painter:    painter,
		vp:         vp,
		iters:      cfg.Iterations,
		mode:       cfg.ColorMode(),
		axes:       cfg.Axes,
		debug:      cfg.Debug,
		fieldImage: ebiten.NewImage(cfg.Width, cfg.Height),
	}
	g.recompute()
	return g, nil
}

// Close stops the scheduler and its backend.
func (g *Game) Close() {
	g.sched.Close()
}

// recompute submits the current view and iteration cap.
func (g *Game) recompute() {
	seq := g.sched.Submit(fractal.Request{Viewport: g.vp, MaxIters: g.iters})
	g.log.Debug("evaluation submitted", "seq", seq, "bounds", g.vp.Bounds.String(), "iterations", g.iters)
}

// Update handles input and picks up finished frames.
func (g *Game) Update() error {
	if g.ctx.Err() != nil {
		return ebiten.Termination
	}
	if g.handleInput() {
		g.recompute()
	}
	g.pollFrame()
	return nil
}

func (g *Game) pollFrame() {
	frame, err := g.sched.Latest()
	if err != nil && !errors.Is(err, context.Canceled) && err != g.lastErr {
		g.setStatus("evaluation failed: " + err.Error())
	}
	g.lastErr = err
	if frame == nil || frame == g.frame {
		return
	}
	g.frame = frame
	g.pixelsDirty = true
	g.selDirty = true
	g.log.Debug("frame shown", "seq", frame.Seq, "elapsed", frame.Elapsed, "escaped", frame.Field.Escaped())
}

// shown returns the viewport of the frame on screen, which lags g.vp while
// an evaluation is pending. Drags are mapped through it.
func (g *Game) shown() fractal.Viewport {
	if g.frame == nil {
		return g.vp
	}
	return g.frame.Viewport
}

// setStatus shows msg at the bottom of the window for statusDuration.
func (g *Game) setStatus(msg string) {
	g.status = msg
	g.statusUntil = time.Now().Add(statusDuration)
	g.log.Info(msg)
}
