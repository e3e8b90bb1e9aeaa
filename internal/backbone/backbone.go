// Package backbone defines the feature extractor the region heads consume.
//
// The detector treats the backbone as a pure function from an image to a dense feature
// map at a fixed stride. Fixed is a deterministic stand-in used by the synthetic
// training run and the tests.
package backbone

import (
	"fmt"
	"math/rand/v2"

	"github.com/chewxy/math32"

	"github.com/born-ml/astn/internal/parallel"
	"github.com/born-ml/astn/internal/roidata"
	"github.com/born-ml/astn/internal/tensor"
)

// Backbone maps an image to a feature map.
type Backbone interface {
	// Features returns the [C, ceil(H/stride), ceil(W/stride)] feature map of im.
	Features(im *roidata.Image) *tensor.RawTensor
	// Channels returns C.
	Channels() int
	// Stride returns the pixel size of one feature cell.
	Stride() int
}

// Stack runs the backbone on every image and packs the maps into [N, C, H, W], zero
// padded to the largest map on the bottom and right.
func Stack(b Backbone, images []*roidata.Image) *tensor.RawTensor {
	if len(images) == 0 {
		panic("backbone: no images")
	}
	maps := make([]*tensor.RawTensor, len(images))
	parallel.For(len(images), func(i int) {
		maps[i] = b.Features(images[i])
	}, parallel.DefaultConfig())

	c := b.Channels()
	var h, w int
	for i, m := range maps {
		s := m.Shape()
		if len(s) != 3 || s[0] != c {
			panic(fmt.Sprintf("backbone: image %d has feature shape %v, want [%d, H, W]", images[i].Index, s, c))
		}
		h, w = max(h, s[1]), max(w, s[2])
	}

	out := tensor.Zeros(tensor.Shape{len(images), c, h, w}, maps[0].Device())
	dst := out.Data()
	for n, m := range maps {
		mh, mw := m.Shape()[1], m.Shape()[2]
		src := m.Data()
		for ch := 0; ch < c; ch++ {
			for y := 0; y < mh; y++ {
				row := ((n*c+ch)*h + y) * w
				copy(dst[row:row+mw], src[(ch*mh+y)*mw:(ch*mh+y+1)*mw])
			}
		}
	}
	return out
}

// Fixed renders an image's objects as a class map, average-pools it by the stride and
// projects every cell onto a fixed random embedding per class, plus per-image noise.
//
// It is deterministic: the same image always yields the same map.
type Fixed struct {
	channels int
	stride   int
	embed    [][]float64 // [class][channel]; class 0 is background
	noise    float64
	seed     uint64
}

// NewFixed creates a fixed backbone for numClasses classes.
func NewFixed(channels, stride, numClasses int, noise float64, seed uint64) *Fixed {
	rng := rand.New(rand.NewPCG(seed, 0))
	embed := make([][]float64, numClasses)
	for k := range embed {
		embed[k] = make([]float64, channels)
		for c := range embed[k] {
			embed[k][c] = rng.NormFloat64()
		}
	}
	return &Fixed{channels: channels, stride: stride, embed: embed, noise: noise, seed: seed}
}

// Channels returns the feature depth.
func (f *Fixed) Channels() int { return f.channels }

// Stride returns the cell size in pixels.
func (f *Fixed) Stride() int { return f.stride }

// Features returns the feature map of im.
func (f *Fixed) Features(im *roidata.Image) *tensor.RawTensor {
	h := (im.Height + f.stride - 1) / f.stride
	w := (im.Width + f.stride - 1) / f.stride
	out := tensor.Zeros(tensor.Shape{f.channels, max(h, 1), max(w, 1)}, tensor.CPU)
	h, w = out.Shape()[1], out.Shape()[2]
	data := out.Data()
	rng := rand.New(rand.NewPCG(f.seed, uint64(im.Index)+1))

	s := float32(f.stride)
	cover := make([]float64, len(f.embed))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			clear(cover)
			cell := [4]float32{float32(x) * s, float32(y) * s, float32(x+1)*s - 1, float32(y+1)*s - 1}
			fg := 0.0
			for _, g := range im.GT {
				if g.Class <= 0 || g.Class >= len(f.embed) {
					continue
				}
				iw := math32.Min(g.Box.X2, cell[2]) - math32.Max(g.Box.X1, cell[0]) + 1
				ih := math32.Min(g.Box.Y2, cell[3]) - math32.Max(g.Box.Y1, cell[1]) + 1
				if iw <= 0 || ih <= 0 {
					continue
				}
				frac := float64(iw * ih / (s * s))
				cover[g.Class] += frac
				fg += frac
			}
			cover[0] = max(0, 1-fg)
			for c := 0; c < f.channels; c++ {
				v := f.noise * rng.NormFloat64()
				for k, frac := range cover {
					v += frac * f.embed[k][c]
				}
				data[(c*h+y)*w+x] = v
			}
		}
	}
	return out
}
