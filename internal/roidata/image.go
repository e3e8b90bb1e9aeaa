// Package roidata turns proposals and ground truth into training minibatches.
//
// A Sampler assigns labels and regression targets to a fixed number of regions per
// image. A Loader walks the image database in shuffled, aspect-grouped order, and a
// Prefetcher samples the next batch on a producer goroutine while the current one trains.
package roidata

import (
	"github.com/born-ml/astn/internal/boxes"
)

// GTBox is a ground-truth object: a box and its class in 1..num_classes-1.
type GTBox struct {
	Box   boxes.Box
	Class int
}

// Image is one entry of the image database.
type Image struct {
	Index     int // position in the database
	Width     int
	Height    int
	Proposals []boxes.Box
	GT        []GTBox
	Flipped   bool
}

// Flip returns a horizontally mirrored copy of the image.
func (im *Image) Flip() *Image {
	out := &Image{
		Index:     im.Index,
		Width:     im.Width,
		Height:    im.Height,
		Proposals: make([]boxes.Box, len(im.Proposals)),
		GT:        make([]GTBox, len(im.GT)),
		Flipped:   !im.Flipped,
	}
	for i, p := range im.Proposals {
		out.Proposals[i] = p.FlipX(im.Width)
	}
	for i, g := range im.GT {
		out.GT[i] = GTBox{Box: g.Box.FlipX(im.Width), Class: g.Class}
	}
	return out
}

// Horizontal reports whether the image is at least as wide as it is tall.
func (im *Image) Horizontal() bool {
	return im.Width >= im.Height
}

// candidates returns the boxes eligible for sampling, clipped to the image.
// Ground-truth boxes come first when withGT is set.
func (im *Image) candidates(withGT bool) []boxes.Box {
	n := len(im.Proposals)
	if withGT {
		n += len(im.GT)
	}
	out := make([]boxes.Box, 0, n)
	if withGT {
		for _, g := range im.GT {
			out = append(out, g.Box)
		}
	}
	for _, p := range im.Proposals {
		if im.Width > 0 && im.Height > 0 {
			p = p.Clip(im.Width, im.Height)
		}
		out = append(out, p)
	}
	return out
}

func (im *Image) gtBoxes() []boxes.Box {
	out := make([]boxes.Box, len(im.GT))
	for i, g := range im.GT {
		out[i] = g.Box
	}
	return out
}
