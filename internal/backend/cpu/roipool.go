package cpu

import (
	"fmt"
	"math"

	"github.com/born-ml/astn/internal/parallel"
	"github.com/born-ml/astn/internal/tensor"
)

// ROIPool max-pools every region into a fixed pooledH×pooledW grid.
//
// Region corners are scaled by spatialScale and rounded to feature cells. A region is
// at least one cell in each direction. Bin bounds are floor/ceil of the fractional bin
// edges, clipped to the feature map; an empty bin outputs 0 and records argmax -1.
//
// Regions are pooled in parallel; each writes only its own output rows.
func (cpu *CPUBackend) ROIPool(features, rois *tensor.RawTensor, pooledH, pooledW int, spatialScale float64) (*tensor.RawTensor, []int) {
	fs := features.Shape()
	if len(fs) != 4 {
		panic(fmt.Sprintf("roipool: expected features [N, C, H, W], got %v", fs))
	}
	rs := rois.Shape()
	if len(rs) != 2 || rs[1] != 5 {
		panic(fmt.Sprintf("roipool: expected rois [R, 5], got %v", rs))
	}
	if pooledH <= 0 || pooledW <= 0 {
		panic(fmt.Sprintf("roipool: invalid pooled size %dx%d", pooledH, pooledW))
	}

	n, c, h, w := fs[0], fs[1], fs[2], fs[3]
	numRois := rs[0]
	result := tensor.Zeros(tensor.Shape{numRois, c, pooledH, pooledW}, cpu.device)
	argmax := make([]int, result.NumElements())

	in, out, boxes := features.Data(), result.Data(), rois.Data()
	binsPerRoi := c * pooledH * pooledW
	for r := 0; r < numRois; r++ {
		if img := int(boxes[r*5]); img < 0 || img >= n {
			panic(fmt.Sprintf("roipool: region %d references image %d of %d", r, img, n))
		}
	}

	parallel.For(numRois, func(r int) {
		roi := boxes[r*5 : r*5+5]
		img := int(roi[0])

		startW := int(math.Round(roi[1] * spatialScale))
		startH := int(math.Round(roi[2] * spatialScale))
		endW := int(math.Round(roi[3] * spatialScale))
		endH := int(math.Round(roi[4] * spatialScale))

		roiW := max(endW-startW+1, 1)
		roiH := max(endH-startH+1, 1)
		binH := float64(roiH) / float64(pooledH)
		binW := float64(roiW) / float64(pooledW)

		base := img * c * h * w
		dst := out[r*binsPerRoi : (r+1)*binsPerRoi]
		idx := argmax[r*binsPerRoi : (r+1)*binsPerRoi]

		for ph := 0; ph < pooledH; ph++ {
			hs := clamp(int(math.Floor(float64(ph)*binH))+startH, 0, h)
			he := clamp(int(math.Ceil(float64(ph+1)*binH))+startH, 0, h)
			for pw := 0; pw < pooledW; pw++ {
				ws := clamp(int(math.Floor(float64(pw)*binW))+startW, 0, w)
				we := clamp(int(math.Ceil(float64(pw+1)*binW))+startW, 0, w)
				empty := he <= hs || we <= ws

				for ch := 0; ch < c; ch++ {
					o := (ch*pooledH+ph)*pooledW + pw
					if empty {
						dst[o] = 0
						idx[o] = -1
						continue
					}
					plane := base + ch*h*w
					best, bestIdx := math.Inf(-1), -1
					for y := hs; y < he; y++ {
						for x := ws; x < we; x++ {
							if v := in[plane+y*w+x]; v > best {
								best, bestIdx = v, plane+y*w+x
							}
						}
					}
					dst[o] = best
					idx[o] = bestIdx
				}
			}
		}
	}, cpu.par)

	return result, argmax
}

// ROIPoolBackward routes every output gradient to the feature cell that won its bin.
//
// Bins of different regions may share a winner, so the scatter runs sequentially.
func (cpu *CPUBackend) ROIPoolBackward(featureShape tensor.Shape, outputGrad *tensor.RawTensor, argmax []int) *tensor.RawTensor {
	if len(argmax) != outputGrad.NumElements() {
		panic(fmt.Sprintf("roipool backward: %d argmax entries for %d gradients",
			len(argmax), outputGrad.NumElements()))
	}
	result := tensor.Zeros(featureShape, cpu.device)
	dst := result.Data()
	for i, g := range outputGrad.Data() {
		if j := argmax[i]; j >= 0 {
			dst[j] += g
		}
	}
	return result
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}
