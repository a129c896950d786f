package fractal

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidArgument is returned when a caller passes an iteration cap below
// one, non-finite coordinates or a degenerate viewport.
var ErrInvalidArgument = errors.New("invalid argument")

const (
	// escapeRadiusSq is the squared modulus past which a point has escaped.
	escapeRadiusSq = 5.0
	// smoothDivisor scales ln|z| in the continuous escape correction.
	smoothDivisor = math.Sqrt2
)

// Point is a value c = Re + Im*i on the complex plane.
type Point struct {
	Re, Im float64
}

func (p Point) finite() bool {
	return isFinite(p.Re) && isFinite(p.Im)
}

func (p Point) String() string {
	return fmt.Sprintf("%.4f%+.4fi", p.Re, p.Im)
}

// Classify iterates z = z*z + c from z = 0 and reports how fast the orbit
// leaves the disc |z|^2 <= 5. It returns 0 when the orbit stays bounded for
// maxIters steps and a positive, smoothed escape value otherwise.
func Classify(c Point, maxIters int) (float64, error) {
	if maxIters < 1 {
		return 0, fmt.Errorf("%w: iteration cap %d", ErrInvalidArgument, maxIters)
	}
	if !c.finite() {
		return 0, fmt.Errorf("%w: point %v is not finite", ErrInvalidArgument, c)
	}
	return escape(c.Re, c.Im, maxIters), nil
}

// escape is the unchecked hot path shared by every CPU evaluation.
func escape(re, im float64, maxIters int) float64 {
	var zr, zi float64
	for i := 1; i <= maxIters; i++ {
		x := zr*zr - zi*zi + re
		y := 2*zr*zi + im
		zr, zi = x, y
		if mag := x*x + y*y; mag > escapeRadiusSq {
			v := (float64(i) + 1 - math.Log(math.Sqrt(mag))/smoothDivisor) / float64(maxIters)
			if v <= 0 {
				// Far outside the set the correction overshoots; keep 0 for in-set points.
				return math.SmallestNonzeroFloat64
			}
			return v
		}
	}
	return 0
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
