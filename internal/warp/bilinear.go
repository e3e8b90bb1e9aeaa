package warp

import "math"

// inside reports whether any bilinear corner of (x, y) can fall on the plane.
// NaN coordinates are rejected too.
func inside(h, w int, x, y float64) bool {
	return x > -1 && x < float64(w) && y > -1 && y < float64(h)
}

func at(plane []float64, h, w, x, y int) float64 {
	if x < 0 || y < 0 || x >= w || y >= h {
		return 0
	}
	return plane[y*w+x]
}

// Bilinear samples a zero-padded h×w plane at pixel location (x, y).
// It also returns the derivative of the sample with respect to x and y.
func Bilinear(plane []float64, h, w int, x, y float64) (v, gx, gy float64) {
	if !inside(h, w, x, y) {
		return 0, 0, 0
	}
	x0, y0 := math.Floor(x), math.Floor(y)
	fx, fy := x-x0, y-y0
	ix, iy := int(x0), int(y0)

	v00 := at(plane, h, w, ix, iy)
	v10 := at(plane, h, w, ix+1, iy)
	v01 := at(plane, h, w, ix, iy+1)
	v11 := at(plane, h, w, ix+1, iy+1)

	v = v00*(1-fx)*(1-fy) + v10*fx*(1-fy) + v01*(1-fx)*fy + v11*fx*fy
	gx = (v10-v00)*(1-fy) + (v11-v01)*fy
	gy = (v01-v00)*(1-fx) + (v11-v10)*fx
	return v, gx, gy
}

// Scatter adds g into dplane at the corners of (x, y), weighted by the same
// bilinear weights Bilinear reads with.
func Scatter(dplane []float64, h, w int, x, y, g float64) {
	if !inside(h, w, x, y) {
		return
	}
	x0, y0 := math.Floor(x), math.Floor(y)
	fx, fy := x-x0, y-y0
	ix, iy := int(x0), int(y0)

	add := func(cx, cy int, weight float64) {
		if cx < 0 || cy < 0 || cx >= w || cy >= h {
			return
		}
		dplane[cy*w+cx] += g * weight
	}
	add(ix, iy, (1-fx)*(1-fy))
	add(ix+1, iy, fx*(1-fy))
	add(ix, iy+1, (1-fx)*fy)
	add(ix+1, iy+1, fx*fy)
}
