// Package synth generates a deterministic image database with known objects.
//
// Every image gets a few non-overlapping objects and three kinds of proposals: tight
// jitters of each object, half-shifted copies that land in the hard negative band, and
// random boxes elsewhere in the image.
package synth

import (
	"math/rand/v2"

	"github.com/born-ml/astn/internal/boxes"
	"github.com/born-ml/astn/internal/roidata"
)

// Options controls dataset generation.
type Options struct {
	NumImages    int
	NumClasses   int // including background
	MinSize      int // image side range in pixels
	MaxSize      int
	MaxObjects   int // 1..MaxObjects objects per image
	Jitters      int // tight proposals per object
	Shifts       int // hard negative proposals per object
	RandomBoxes  int // random proposals per image
	EmptyEvery   int // every EmptyEvery-th image has no objects; 0 disables
	MinObjectPix int // smallest object side
}

// DefaultOptions returns a small dataset suited to the synthetic training run.
func DefaultOptions(numClasses int) Options {
	return Options{
		NumImages:    16,
		NumClasses:   numClasses,
		MinSize:      160,
		MaxSize:      240,
		MaxObjects:   3,
		Jitters:      8,
		Shifts:       6,
		RandomBoxes:  24,
		EmptyEvery:   8,
		MinObjectPix: 32,
	}
}

// Generate returns opts.NumImages images drawn from rng.
func Generate(opts Options, rng *rand.Rand) []*roidata.Image {
	images := make([]*roidata.Image, opts.NumImages)
	for i := range images {
		images[i] = generateImage(i, opts, rng)
	}
	return images
}

func generateImage(index int, opts Options, rng *rand.Rand) *roidata.Image {
	im := &roidata.Image{
		Index:  index,
		Width:  between(rng, opts.MinSize, opts.MaxSize),
		Height: between(rng, opts.MinSize, opts.MaxSize),
	}
	if opts.EmptyEvery <= 0 || (index+1)%opts.EmptyEvery != 0 {
		n := between(rng, 1, opts.MaxObjects)
		for tries := 0; len(im.GT) < n && tries < 20*n; tries++ {
			g := randomBox(rng, im.Width, im.Height, opts.MinObjectPix)
			if overlapsAny(g, im.GT) {
				continue
			}
			im.GT = append(im.GT, roidata.GTBox{Box: g, Class: between(rng, 1, opts.NumClasses-1)})
		}
	}

	for _, g := range im.GT {
		w, h := g.Box.Width(), g.Box.Height()
		for j := 0; j < opts.Jitters; j++ {
			im.Proposals = append(im.Proposals, boxes.Box{
				X1: g.Box.X1 + jitter(rng, 0.08*w),
				Y1: g.Box.Y1 + jitter(rng, 0.08*h),
				X2: g.Box.X2 + jitter(rng, 0.08*w),
				Y2: g.Box.Y2 + jitter(rng, 0.08*h),
			}.Clip(im.Width, im.Height))
		}
		for j := 0; j < opts.Shifts; j++ {
			dx := (0.45 + 0.2*float32(rng.Float64())) * w
			if rng.IntN(2) == 0 {
				dx = -dx
			}
			im.Proposals = append(im.Proposals, boxes.Box{
				X1: g.Box.X1 + dx, Y1: g.Box.Y1, X2: g.Box.X2 + dx, Y2: g.Box.Y2,
			}.Clip(im.Width, im.Height))
		}
	}
	for j := 0; j < opts.RandomBoxes; j++ {
		im.Proposals = append(im.Proposals, randomBox(rng, im.Width, im.Height, opts.MinObjectPix/2))
	}
	return im
}

func randomBox(rng *rand.Rand, width, height, minSide int) boxes.Box {
	w := between(rng, minSide, max(minSide, width/2))
	h := between(rng, minSide, max(minSide, height/2))
	x := rng.IntN(max(1, width-w))
	y := rng.IntN(max(1, height-h))
	return boxes.Box{X1: float32(x), Y1: float32(y), X2: float32(x + w - 1), Y2: float32(y + h - 1)}
}

func overlapsAny(b boxes.Box, gt []roidata.GTBox) bool {
	for _, g := range gt {
		if b.IoU(g.Box) > 0 {
			return true
		}
	}
	return false
}

// between returns a uniform integer in [lo, hi].
func between(rng *rand.Rand, lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + rng.IntN(hi-lo+1)
}

func jitter(rng *rand.Rand, scale float32) float32 {
	return (2*float32(rng.Float64()) - 1) * scale
}
