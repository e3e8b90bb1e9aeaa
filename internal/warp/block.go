package warp

// Forward warps a block of channels×h×w values from src into dst using params p.
func Forward(k Kind, p, src, dst []float64, channels, h, w int) {
	xt, yt := Linspace(w), Linspace(h)
	plane := h * w
	for i := 0; i < h; i++ {
		for j := 0; j < w; j++ {
			u, v := k.Map(p, xt[j], yt[i])
			px, py := ToPixel(u, w), ToPixel(v, h)
			for c := 0; c < channels; c++ {
				val, _, _ := Bilinear(src[c*plane:(c+1)*plane], h, w, px, py)
				dst[c*plane+i*w+j] = val
			}
		}
	}
}

// Backward accumulates the gradients of Forward.
//
// gOut is the gradient of the warped block. The feature gradient is scattered into
// dSrc through the interpolation weights; the parameter gradient is added into dParams
// through the derivative of the interpolation kernel with respect to the sampling
// location. Either destination may be nil to skip it.
func Backward(k Kind, p, src, gOut, dSrc, dParams []float64, channels, h, w int) {
	xt, yt := Linspace(w), Linspace(h)
	plane := h * w
	n := k.ParamsPerBlock()
	du := make([]float64, n)
	dv := make([]float64, n)
	scaleX := float64(w-1) / 2
	scaleY := float64(h-1) / 2

	for i := 0; i < h; i++ {
		for j := 0; j < w; j++ {
			u, v := k.Map(p, xt[j], yt[i])
			px, py := ToPixel(u, w), ToPixel(v, h)
			if !inside(h, w, px, py) {
				continue
			}
			if dParams != nil {
				k.MapGrad(p, xt[j], yt[i], du, dv)
			}
			for c := 0; c < channels; c++ {
				g := gOut[c*plane+i*w+j]
				if g == 0 {
					continue
				}
				srcPlane := src[c*plane : (c+1)*plane]
				if dSrc != nil {
					Scatter(dSrc[c*plane:(c+1)*plane], h, w, px, py, g)
				}
				if dParams != nil {
					_, gx, gy := Bilinear(srcPlane, h, w, px, py)
					dpx := g * gx * scaleX
					dpy := g * gy * scaleY
					for q := 0; q < n; q++ {
						dParams[q] += dpx*du[q] + dpy*dv[q]
					}
				}
			}
		}
	}
}
