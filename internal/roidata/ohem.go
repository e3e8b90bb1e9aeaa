package roidata

import (
	"cmp"
	"fmt"
	"slices"
)

// SelectHard keeps the keepPerImage highest-loss valid regions of every image and
// makes the rest inert. Ties keep the lower slot. Outside weights are renormalized
// over the kept regions. The input batch is not modified.
//
// losses holds one value per slot; invalid slots are ignored.
func SelectHard(b *Batch, losses []float64, keepPerImage int) *Batch {
	if len(losses) != len(b.Regions) {
		panic(fmt.Sprintf("ohem: %d losses for %d regions", len(losses), len(b.Regions)))
	}
	out := b.Clone()
	if keepPerImage <= 0 || len(b.Images) == 0 {
		return out
	}

	per := len(b.Regions) / len(b.Images)
	for img := range b.Images {
		var valid []int
		for i := img * per; i < (img+1)*per; i++ {
			if out.Regions[i].Valid {
				valid = append(valid, i)
			}
		}
		if len(valid) <= keepPerImage {
			continue
		}
		slices.SortStableFunc(valid, func(x, y int) int {
			return cmp.Compare(losses[y], losses[x])
		})
		for _, i := range valid[keepPerImage:] {
			out.reset(i)
		}
	}
	out.normalize()
	return out
}
