package fractal

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyInSet(t *testing.T) {
	points := []Point{
		{0, 0},
		{-1, 0},
		{-0.5, 0.5},
		{0, 1},
		{-0.1, 0.1},
	}
	for _, iters := range []int{50, 100, 1000} {
		for _, c := range points {
			v, err := Classify(c, iters)
			require.NoError(t, err)
			assert.Zero(t, v, "c=%v iters=%d", c, iters)
		}
	}
}

func TestClassifyEscapes(t *testing.T) {
	c := Point{Re: 2, Im: 2}
	for _, iters := range []int{1, 2, 10, 50, 1000} {
		v, err := Classify(c, iters)
		require.NoError(t, err)
		assert.Greater(t, v, 0.0)
		assert.False(t, math.IsInf(v, 0) || math.IsNaN(v))

		// 2+2i leaves on the first step with |z|^2 = 8.
		want := (1 + 1 - math.Log(math.Sqrt(8))/math.Sqrt2) / float64(iters)
		assert.Equal(t, want, v)
	}
}

func TestClassifySmoothsAcrossIterations(t *testing.T) {
	// Points further out escape sooner and get a smaller raw escape count.
	near, err := Classify(Point{Re: -0.75, Im: 0.1}, 200)
	require.NoError(t, err)
	far, err := Classify(Point{Re: 1, Im: 1}, 200)
	require.NoError(t, err)
	assert.Greater(t, near, far)
	assert.Greater(t, far, 0.0)
}

func TestClassifyFarOutsideStaysPositive(t *testing.T) {
	v, err := Classify(Point{Re: 1e6, Im: -1e6}, 10)
	require.NoError(t, err)
	assert.Greater(t, v, 0.0)
}

func TestClassifyInvalidArgument(t *testing.T) {
	for _, iters := range []int{0, -1} {
		_, err := Classify(Point{}, iters)
		assert.ErrorIs(t, err, ErrInvalidArgument)
	}
	for _, c := range []Point{
		{Re: math.NaN()},
		{Im: math.Inf(1)},
		{Re: math.Inf(-1), Im: 1},
	} {
		_, err := Classify(c, 10)
		assert.ErrorIs(t, err, ErrInvalidArgument, "c=%v", c)
	}
}

func TestPointString(t *testing.T) {
	assert.Equal(t, "-0.7500+0.1000i", Point{Re: -0.75, Im: 0.1}.String())
	assert.Equal(t, "1.0000-2.5000i", Point{Re: 1, Im: -2.5}.String())
}

func BenchmarkClassify(b *testing.B) {
	c := Point{Re: -0.7435, Im: 0.1314}
	for b.Loop() {
		_, _ = Classify(c, 1000)
	}
}
