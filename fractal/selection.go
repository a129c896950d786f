package fractal

import "image"

// Button identifies a pointer button.
type Button int

const (
	ButtonPrimary Button = iota
	ButtonSecondary
	ButtonMiddle
)

// Selection tracks a drag-to-zoom rectangle in pixel space. The zero value is
// idle.
type Selection struct {
	dragging bool
	anchor   image.Point
	current  image.Point
}

// Dragging reports whether a drag is in progress.
func (s *Selection) Dragging() bool {
	return s.dragging
}

// PointerDown starts a drag on the primary button and reports whether the
// selection changed.
func (s *Selection) PointerDown(x, y int, b Button) bool {
	if b != ButtonPrimary || s.dragging {
		return false
	}
	s.dragging = true
	s.anchor = image.Pt(x, y)
	s.current = s.anchor
	return true
}

// PointerMove moves the free corner of an active drag and reports whether the
// overlay needs a redraw.
func (s *Selection) PointerMove(x, y int) bool {
	if !s.dragging {
		return false
	}
	p := image.Pt(x, y)
	if p == s.current {
		return false
	}
	s.current = p
	return true
}

// PointerUp finishes a primary-button drag at (x, y) and returns vp zoomed to
// the selected rectangle. ok is false when nothing changed: the selection was
// idle, another button was released, or the rectangle had no area.
func (s *Selection) PointerUp(x, y int, b Button, vp Viewport) (next Viewport, ok bool, err error) {
	if b != ButtonPrimary || !s.dragging {
		return vp, false, nil
	}
	s.current = image.Pt(x, y)
	anchor, current := s.anchor, s.current
	s.Cancel()

	if anchor.X == current.X || anchor.Y == current.Y {
		return vp, false, nil
	}
	ul := vp.ToComplex(float64(anchor.X), float64(anchor.Y))
	lr := vp.ToComplex(float64(current.X), float64(current.Y))
	// Pixel y grows downwards while Im grows upwards: the lower-right corner
	// carries ymin.
	next, err = vp.SetRegion(Bounds{Xmin: ul.Re, Xmax: lr.Re, Ymin: lr.Im, Ymax: ul.Im})
	if err != nil {
		return vp, false, err
	}
	return next, true, nil
}

// Cancel drops an active drag.
func (s *Selection) Cancel() {
	s.dragging = false
	s.anchor = image.Point{}
	s.current = image.Point{}
}

// Rect returns the canonical pixel rectangle of an active drag.
func (s *Selection) Rect() (image.Rectangle, bool) {
	if !s.dragging {
		return image.Rectangle{}, false
	}
	return image.Rectangle{Min: s.anchor, Max: s.current}.Canon(), true
}

// Points returns the anchor and the free corner of an active drag.
func (s *Selection) Points() (anchor, current image.Point, ok bool) {
	return s.anchor, s.current, s.dragging
}

// Corners returns the complex values under the anchor and the free corner.
func (s *Selection) Corners(vp Viewport) (anchor, current Point, ok bool) {
	if !s.dragging {
		return Point{}, Point{}, false
	}
	return vp.ToComplex(float64(s.anchor.X), float64(s.anchor.Y)),
		vp.ToComplex(float64(s.current.X), float64(s.current.Y)), true
}
