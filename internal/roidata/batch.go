package roidata

import (
	"fmt"

	"github.com/born-ml/astn/internal/boxes"
	"github.com/born-ml/astn/internal/tensor"
)

// Region is one slot of a minibatch.
//
// An invalid slot is inert: background label and zero weights everywhere, so it
// contributes nothing to any loss.
type Region struct {
	Image   int // position of the source image in Batch.Images
	Box     boxes.Box
	Label   int     // 0 is background
	GTIndex int     // matched ground truth, -1 if none
	IoU     float32 // overlap with the matched ground truth
	Valid   bool
}

// Batch is a sampled minibatch. It is never modified after it is handed out.
//
// Targets, Inside and Outside are row-major [len(Regions), TargetDim].
type Batch struct {
	Images     []*Image
	NumClasses int
	TargetDim  int
	Regions    []Region
	Targets    []float64
	Inside     []float64
	Outside    []float64
	NumFg      int
	NumBg      int
	NumValid   int
}

func newBatch(images []*Image, perImage, numClasses, targetDim int) *Batch {
	n := perImage * len(images)
	b := &Batch{
		Images:     images,
		NumClasses: numClasses,
		TargetDim:  targetDim,
		Regions:    make([]Region, n),
		Targets:    make([]float64, n*targetDim),
		Inside:     make([]float64, n*targetDim),
		Outside:    make([]float64, n*targetDim),
	}
	for i := range b.Regions {
		b.Regions[i] = Region{Image: i / perImage, GTIndex: -1}
	}
	return b
}

// Len returns the number of slots, valid or not.
func (b *Batch) Len() int {
	return len(b.Regions)
}

// Labels returns the class label of every slot.
func (b *Batch) Labels() []int {
	out := make([]int, len(b.Regions))
	for i, r := range b.Regions {
		out[i] = r.Label
	}
	return out
}

// ValidMask reports which slots hold sampled regions.
func (b *Batch) ValidMask() []bool {
	out := make([]bool, len(b.Regions))
	for i, r := range b.Regions {
		out[i] = r.Valid
	}
	return out
}

// ClsWeights returns the classification weight of every slot: 1 if valid, else 0.
func (b *Batch) ClsWeights() []float64 {
	out := make([]float64, len(b.Regions))
	for i, r := range b.Regions {
		if r.Valid {
			out[i] = 1
		}
	}
	return out
}

// Row returns the target, inside and outside weights of slot i.
func (b *Batch) Row(i int) (targets, inside, outside []float64) {
	lo, hi := i*b.TargetDim, (i+1)*b.TargetDim
	return b.Targets[lo:hi], b.Inside[lo:hi], b.Outside[lo:hi]
}

// Tensors is the tensor view of a batch consumed by the model.
type Tensors struct {
	ROIs       *tensor.RawTensor // [R, 5]: image position, x1, y1, x2, y2
	Targets    *tensor.RawTensor // [R, TargetDim]
	Inside     *tensor.RawTensor // [R, TargetDim]
	Outside    *tensor.RawTensor // [R, TargetDim]
	Labels     []int
	ClsWeights []float64
	Valid      []bool
}

// Tensors copies the batch into freshly allocated tensors. The batch must not be empty.
func (b *Batch) Tensors(device tensor.Device) Tensors {
	n := len(b.Regions)
	rois := make([]float64, 0, n*5)
	for _, r := range b.Regions {
		row := r.Box.ROI(r.Image)
		rois = append(rois, row[:]...)
	}
	return Tensors{
		ROIs:       mustTensor(rois, tensor.Shape{n, 5}, device),
		Targets:    mustTensor(b.Targets, tensor.Shape{n, b.TargetDim}, device),
		Inside:     mustTensor(b.Inside, tensor.Shape{n, b.TargetDim}, device),
		Outside:    mustTensor(b.Outside, tensor.Shape{n, b.TargetDim}, device),
		Labels:     b.Labels(),
		ClsWeights: b.ClsWeights(),
		Valid:      b.ValidMask(),
	}
}

// Clone returns a deep copy of the batch. Images are shared.
func (b *Batch) Clone() *Batch {
	out := *b
	out.Images = append([]*Image(nil), b.Images...)
	out.Regions = append([]Region(nil), b.Regions...)
	out.Targets = append([]float64(nil), b.Targets...)
	out.Inside = append([]float64(nil), b.Inside...)
	out.Outside = append([]float64(nil), b.Outside...)
	return &out
}

// normalize recounts the batch and spreads the outside weight evenly over valid slots.
func (b *Batch) normalize() {
	b.NumFg, b.NumBg, b.NumValid = 0, 0, 0
	for _, r := range b.Regions {
		if !r.Valid {
			continue
		}
		b.NumValid++
		if r.Label > 0 {
			b.NumFg++
		} else {
			b.NumBg++
		}
	}
	w := 0.0
	if b.NumValid > 0 {
		w = 1 / float64(b.NumValid)
	}
	for i, r := range b.Regions {
		_, _, outside := b.Row(i)
		v := 0.0
		if r.Valid {
			v = w
		}
		for j := range outside {
			outside[j] = v
		}
	}
}

// reset makes slot i inert.
func (b *Batch) reset(i int) {
	r := &b.Regions[i]
	r.Label, r.GTIndex, r.IoU, r.Valid = 0, -1, 0, false
	targets, inside, outside := b.Row(i)
	clear(targets)
	clear(inside)
	clear(outside)
}

func mustTensor(data []float64, shape tensor.Shape, device tensor.Device) *tensor.RawTensor {
	t, err := tensor.FromSlice(data, shape, device)
	if err != nil {
		panic(fmt.Sprintf("roidata: %v", err))
	}
	return t
}
