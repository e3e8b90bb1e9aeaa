// Package boxes implements region box geometry in image pixel coordinates.
//
// Boxes use the inclusive pixel convention of Fast R-CNN: a box from x1 to x2 covers
// x2-x1+1 pixels. Degenerate boxes (x2 < x1) are treated as one pixel wide.
package boxes

import (
	"fmt"

	"github.com/chewxy/math32"
)

// Box is an axis-aligned box with inclusive corners.
type Box struct {
	X1, Y1, X2, Y2 float32
}

func (b Box) String() string {
	return fmt.Sprintf("[%g, %g, %g, %g]", b.X1, b.Y1, b.X2, b.Y2)
}

// Width returns the box width in pixels, at least 1.
func (b Box) Width() float32 {
	return math32.Max(b.X2-b.X1+1, 1)
}

// Height returns the box height in pixels, at least 1.
func (b Box) Height() float32 {
	return math32.Max(b.Y2-b.Y1+1, 1)
}

// Area returns Width * Height.
func (b Box) Area() float32 {
	return b.Width() * b.Height()
}

// Center returns the box center.
func (b Box) Center() (cx, cy float32) {
	return b.X1 + 0.5*b.Width(), b.Y1 + 0.5*b.Height()
}

// Degenerate reports whether the box has no positive extent in either direction.
func (b Box) Degenerate() bool {
	return b.X2 < b.X1 || b.Y2 < b.Y1
}

// IoU returns the intersection over union with o.
func (b Box) IoU(o Box) float32 {
	iw := math32.Min(b.X2, o.X2) - math32.Max(b.X1, o.X1) + 1
	ih := math32.Min(b.Y2, o.Y2) - math32.Max(b.Y1, o.Y1) + 1
	if iw <= 0 || ih <= 0 {
		return 0
	}
	inter := iw * ih
	union := b.Area() + o.Area() - inter
	if union <= 0 {
		return 0
	}
	return math32.Min(inter/union, 1)
}

// Clip confines the box to an image of the given size.
func (b Box) Clip(width, height int) Box {
	w, h := float32(width-1), float32(height-1)
	return Box{
		X1: math32.Max(math32.Min(b.X1, w), 0),
		Y1: math32.Max(math32.Min(b.Y1, h), 0),
		X2: math32.Max(math32.Min(b.X2, w), 0),
		Y2: math32.Max(math32.Min(b.Y2, h), 0),
	}
}

// FlipX mirrors the box horizontally in an image of the given width.
func (b Box) FlipX(width int) Box {
	w := float32(width)
	return Box{X1: w - b.X2 - 1, Y1: b.Y1, X2: w - b.X1 - 1, Y2: b.Y2}
}

// ROI returns the row of a rois tensor: image index followed by the corners.
func (b Box) ROI(image int) [5]float64 {
	return [5]float64{float64(image), float64(b.X1), float64(b.Y1), float64(b.X2), float64(b.Y2)}
}
