package fractal

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// DefaultTileSize is the edge length of the square tiles handed to workers.
const DefaultTileSize = 64

// Evaluator computes fields on the CPU. Tiles are evaluated in parallel on up
// to Workers goroutines; the zero value uses runtime.NumCPU workers and
// DefaultTileSize tiles.
type Evaluator struct {
	Workers  int
	TileSize int

	// OnProgress, if set, is called after each tile with the number of
	// finished pixels and the total. It may be called concurrently.
	OnProgress func(done, total int)

	Logger *slog.Logger
}

var _ Backend = (*Evaluator)(nil)

// NewEvaluator returns a CPU evaluator with the given parallelism. Values
// below one pick the defaults.
func NewEvaluator(workers, tileSize int, logger *slog.Logger) *Evaluator {
	return &Evaluator{Workers: workers, TileSize: tileSize, Logger: logger}
}

// Name implements Backend.
func (e *Evaluator) Name() string {
	return fmt.Sprintf("cpu/%d", e.workers())
}

// Close implements Backend.
func (e *Evaluator) Close() {}

func (e *Evaluator) workers() int {
	if e.Workers < 1 {
		return runtime.NumCPU()
	}
	return e.Workers
}

func (e *Evaluator) tileSize() int {
	if e.TileSize < 1 {
		return DefaultTileSize
	}
	return e.TileSize
}

func (e *Evaluator) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}

// Evaluate classifies every pixel of vp and returns the field with its range.
func (e *Evaluator) Evaluate(ctx context.Context, vp Viewport, maxIters int) (*Field, error) {
	if maxIters < 1 {
		return nil, fmt.Errorf("%w: iteration cap %d", ErrInvalidArgument, maxIters)
	}
	if err := vp.Validate(); err != nil {
		return nil, err
	}

	field := newField(vp.Width, vp.Height)
	tiles := splitRect(image.Rect(0, 0, vp.Width, vp.Height), e.tileSize(), e.tileSize())
	total := vp.Width * vp.Height

	var (
		mu       sync.Mutex
		finished atomic.Int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers())
	for _, tile := range tiles {
		g.Go(func() error {
			r, err := evaluateTile(gctx, vp, maxIters, tile, field.Values)
			if err != nil {
				return err
			}
			mu.Lock()
			field.Range.merge(r)
			mu.Unlock()
			done := finished.Add(int64(tile.Dx() * tile.Dy()))
			if e.OnProgress != nil {
				e.OnProgress(int(done), total)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	// errgroup only reports worker errors; a cancel after the last tile
	// still counts as cancelled.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.logger().Debug("field evaluated",
		"width", vp.Width, "height", vp.Height, "iterations", maxIters,
		"tiles", len(tiles), "min", field.Range.Min, "max", field.Range.Max)
	return field, nil
}

// evaluateTile fills the tile's cells of values and returns the tile's range.
func evaluateTile(ctx context.Context, vp Viewport, maxIters int, tile image.Rectangle, values []float64) (Range, error) {
	r := emptyRange()
	for y := tile.Min.Y; y < tile.Max.Y; y++ {
		if err := ctx.Err(); err != nil {
			return r, err
		}
		base := y * vp.Width
		for x := tile.Min.X; x < tile.Max.X; x++ {
			c := vp.ToComplex(float64(x), float64(y))
			v := escape(c.Re, c.Im, maxIters)
			values[base+x] = v
			r.observe(v)
		}
	}
	return r, nil
}

// splitRect splits r into tiles of size tileW x tileH. Tiles on the right and
// bottom edges are smaller when r is not divisible.
func splitRect(r image.Rectangle, tileW, tileH int) []image.Rectangle {
	w := r.Dx()
	h := r.Dy()

	tiles := make([]image.Rectangle, 0, ((w+tileW-1)/tileW)*((h+tileH-1)/tileH))
	for oy := 0; oy < h; oy += tileH {
		th := min(tileH, h-oy)
		for ox := 0; ox < w; ox += tileW {
			tw := min(tileW, w-ox)
			tiles = append(tiles, image.Rect(
				r.Min.X+ox,
				r.Min.Y+oy,
				r.Min.X+ox+tw,
				r.Min.Y+oy+th,
			))
		}
	}
	return tiles
}
