package fractal

import (
	"context"
	"image"
	"math"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateDefaultView(t *testing.T) {
	vp, err := NewViewport(50, 50)
	require.NoError(t, err)

	field, err := NewEvaluator(4, 16, nil).Evaluate(context.Background(), vp, 50)
	require.NoError(t, err)
	require.Len(t, field.Values, 50*50)

	escaped := field.Escaped()
	assert.Greater(t, escaped, 0)
	assert.Less(t, escaped, 50*50)
	assert.False(t, field.Range.Degenerate())
	assert.Greater(t, field.Range.Min, 0.0)
	assert.LessOrEqual(t, field.Range.Min, field.Range.Max)

	var black, lit int
	pix := Colorize(field, ModeColor, nil)
	for i := 0; i < len(pix); i += 4 {
		if pix[i] == 0 && pix[i+1] == 0 && pix[i+2] == 0 {
			black++
		} else {
			lit++
		}
		assert.Equal(t, uint8(0xff), pix[i+3])
	}
	assert.Greater(t, black, 0)
	assert.Greater(t, lit, 0)
}

func TestEvaluateMatchesClassify(t *testing.T) {
	vp, err := NewViewport(23, 17)
	require.NoError(t, err)
	field, err := NewEvaluator(3, 5, nil).Evaluate(context.Background(), vp, 80)
	require.NoError(t, err)

	for y := 0; y < vp.Height; y++ {
		for x := 0; x < vp.Width; x++ {
			want, err := Classify(vp.ToComplex(float64(x), float64(y)), 80)
			require.NoError(t, err)
			assert.Equal(t, want, field.At(x, y), "pixel %d,%d", x, y)
		}
	}
}

func TestEvaluateIndependentOfParallelism(t *testing.T) {
	vp, err := NewViewport(97, 61)
	require.NoError(t, err)
	vp, err = vp.SetRegion(SeahorseValley)
	require.NoError(t, err)

	serial, err := NewEvaluator(1, 7, nil).Evaluate(context.Background(), vp, 200)
	require.NoError(t, err)
	parallel, err := NewEvaluator(8, 16, nil).Evaluate(context.Background(), vp, 200)
	require.NoError(t, err)

	assert.Equal(t, serial.Values, parallel.Values)
	assert.Equal(t, serial.Range, parallel.Range)
}

func TestEvaluateAllInSet(t *testing.T) {
	vp, err := NewViewport(20, 20)
	require.NoError(t, err)
	vp, err = vp.SetRegion(Bounds{Xmin: -0.1, Xmax: 0.1, Ymin: -0.1, Ymax: 0.1})
	require.NoError(t, err)

	field, err := NewEvaluator(2, 8, nil).Evaluate(context.Background(), vp, 100)
	require.NoError(t, err)
	assert.Zero(t, field.Escaped())
	assert.True(t, math.IsInf(field.Range.Min, 1))
	assert.Zero(t, field.Range.Max)
	assert.True(t, field.Range.Degenerate())
}

func TestEvaluateCancelled(t *testing.T) {
	vp, err := NewViewport(64, 64)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	field, err := NewEvaluator(4, 16, nil).Evaluate(ctx, vp, 1000)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, field)
}

func TestEvaluateInvalidArgument(t *testing.T) {
	vp, err := NewViewport(8, 8)
	require.NoError(t, err)
	e := NewEvaluator(1, 0, nil)

	_, err = e.Evaluate(context.Background(), vp, 0)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	bad := vp
	bad.Width = 0
	_, err = e.Evaluate(context.Background(), bad, 10)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestEvaluateProgress(t *testing.T) {
	vp, err := NewViewport(40, 30)
	require.NoError(t, err)

	var calls, last atomic.Int64
	e := NewEvaluator(2, 10, nil)
	e.OnProgress = func(done, total int) {
		assert.Equal(t, 40*30, total)
		calls.Add(1)
		for {
			prev := last.Load()
			if int64(done) <= prev || last.CompareAndSwap(prev, int64(done)) {
				break
			}
		}
	}
	_, err = e.Evaluate(context.Background(), vp, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(12), calls.Load())
	assert.Equal(t, int64(40*30), last.Load())
}

func TestSplitRect(t *testing.T) {
	tiles := splitRect(image.Rect(0, 0, 100, 50), 32, 32)
	require.Len(t, tiles, 8)
	assert.Equal(t, image.Rect(0, 0, 32, 32), tiles[0])
	assert.Equal(t, image.Rect(96, 0, 100, 32), tiles[3])
	assert.Equal(t, image.Rect(96, 32, 100, 50), tiles[7])

	area := 0
	for _, tile := range tiles {
		area += tile.Dx() * tile.Dy()
	}
	assert.Equal(t, 100*50, area)

	assert.Empty(t, splitRect(image.Rectangle{}, 16, 16))
}

func TestEvaluatorName(t *testing.T) {
	assert.Equal(t, "cpu/3", NewEvaluator(3, 0, nil).Name())
}

func BenchmarkEvaluate(b *testing.B) {
	vp, err := NewViewport(500, 500)
	require.NoError(b, err)
	vp, err = vp.SetRegion(Bounds{Xmin: -1.5, Xmax: 0.5, Ymin: -1, Ymax: 1})
	require.NoError(b, err)

	for _, workers := range []int{1, 4} {
		e := NewEvaluator(workers, 64, nil)
		b.Run(e.Name(), func(b *testing.B) {
			for b.Loop() {
				if _, err := e.Evaluate(context.Background(), vp, 50); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
