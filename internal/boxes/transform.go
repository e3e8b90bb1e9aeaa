package boxes

import "github.com/chewxy/math32"

// Delta is a box regression target (dx, dy, dw, dh).
type Delta [4]float32

// Encode returns the regression target moving src onto dst:
//
//	dx = (dst.cx - src.cx) / src.w    dw = log(dst.w / src.w)
//	dy = (dst.cy - src.cy) / src.h    dh = log(dst.h / src.h)
func Encode(src, dst Box) Delta {
	sw, sh := src.Width(), src.Height()
	scx, scy := src.Center()
	dw, dh := dst.Width(), dst.Height()
	dcx, dcy := dst.Center()
	return Delta{
		(dcx - scx) / sw,
		(dcy - scy) / sh,
		math32.Log(dw / sw),
		math32.Log(dh / sh),
	}
}

// Decode applies d to src. It is the inverse of Encode for non-degenerate boxes.
func Decode(src Box, d Delta) Box {
	sw, sh := src.Width(), src.Height()
	scx, scy := src.Center()
	cx := d[0]*sw + scx
	cy := d[1]*sh + scy
	w := math32.Exp(d[2]) * sw
	h := math32.Exp(d[3]) * sh
	return Box{
		X1: cx - 0.5*w,
		Y1: cy - 0.5*h,
		X2: cx + 0.5*w - 1,
		Y2: cy + 0.5*h - 1,
	}
}

// Normalize returns (d - means) / stds.
func (d Delta) Normalize(means, stds [4]float32) Delta {
	var out Delta
	for i := range d {
		out[i] = (d[i] - means[i]) / stds[i]
	}
	return out
}

// Denormalize returns d * stds + means.
func (d Delta) Denormalize(means, stds [4]float32) Delta {
	var out Delta
	for i := range d {
		out[i] = d[i]*stds[i] + means[i]
	}
	return out
}
