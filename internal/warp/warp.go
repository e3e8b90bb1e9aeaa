// Package warp implements the per-block spatial transforms applied to pooled region features.
//
// A transform maps every location of a normalised target grid (x, y in [-1, 1]) to a
// source location in the same normalised space. The source value is read with bilinear
// interpolation over a zero-padded plane: corners outside the plane contribute zero value
// and zero gradient, so a transform that moves the grid off the block masks it.
//
// Two kinds are supported:
//   - ScaleShift: params (sx, sy, tx, ty), xs = sx*xt + tx, ys = sy*yt + ty
//   - Rotation:   params (a), xs = cos(a)*xt + sin(a)*yt, ys = -sin(a)*xt + cos(a)*yt
package warp

import (
	"fmt"
	"math"
)

// Kind selects the parametrisation of a block transform.
type Kind int

// Supported transform kinds.
const (
	ScaleShift Kind = iota
	Rotation
)

// ParseKind converts a configuration string into a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "scale_shift", "":
		return ScaleShift, nil
	case "rotation":
		return Rotation, nil
	default:
		return 0, fmt.Errorf("unknown transform kind %q", s)
	}
}

// String returns the configuration name of the kind.
func (k Kind) String() string {
	switch k {
	case ScaleShift:
		return "scale_shift"
	case Rotation:
		return "rotation"
	default:
		return "unknown"
	}
}

// ParamsPerBlock returns the number of parameters one block consumes.
func (k Kind) ParamsPerBlock() int {
	switch k {
	case ScaleShift:
		return 4
	case Rotation:
		return 1
	default:
		panic(fmt.Sprintf("warp: unknown kind %d", k))
	}
}

// Identity returns the parameters of the identity transform for one block.
func (k Kind) Identity() []float64 {
	switch k {
	case ScaleShift:
		return []float64{1, 1, 0, 0}
	case Rotation:
		return []float64{0}
	default:
		panic(fmt.Sprintf("warp: unknown kind %d", k))
	}
}

// Map returns the source location of target location (xt, yt).
func (k Kind) Map(p []float64, xt, yt float64) (xs, ys float64) {
	switch k {
	case ScaleShift:
		return p[0]*xt + p[2], p[1]*yt + p[3]
	case Rotation:
		sin, cos := math.Sincos(p[0])
		return cos*xt + sin*yt, -sin*xt + cos*yt
	default:
		panic(fmt.Sprintf("warp: unknown kind %d", k))
	}
}

// MapGrad writes d(xs)/d(p) into dxs and d(ys)/d(p) into dys.
func (k Kind) MapGrad(p []float64, xt, yt float64, dxs, dys []float64) {
	switch k {
	case ScaleShift:
		dxs[0], dxs[1], dxs[2], dxs[3] = xt, 0, 1, 0
		dys[0], dys[1], dys[2], dys[3] = 0, yt, 0, 1
	case Rotation:
		sin, cos := math.Sincos(p[0])
		dxs[0] = -sin*xt + cos*yt
		dys[0] = -cos*xt - sin*yt
	default:
		panic(fmt.Sprintf("warp: unknown kind %d", k))
	}
}

// Spec describes how a region's parameter vector is split over channel blocks.
type Spec struct {
	Kind     Kind
	BlockNum int
}

// NumParams returns the length of one region's parameter vector.
func (s Spec) NumParams() int {
	return s.BlockNum * s.Kind.ParamsPerBlock()
}

// Identity returns the identity parameter vector for one region.
func (s Spec) Identity() []float64 {
	id := s.Kind.Identity()
	out := make([]float64, 0, s.NumParams())
	for b := 0; b < s.BlockNum; b++ {
		out = append(out, id...)
	}
	return out
}

// Linspace returns n evenly spaced values over [-1, 1]. A single point sits at 0.
func Linspace(n int) []float64 {
	out := make([]float64, n)
	if n == 1 {
		return out
	}
	for i := range out {
		out[i] = -1 + 2*float64(i)/float64(n-1)
	}
	return out
}

// ToPixel maps a normalised coordinate onto [0, n-1].
func ToPixel(u float64, n int) float64 {
	return (u + 1) / 2 * float64(n-1)
}
