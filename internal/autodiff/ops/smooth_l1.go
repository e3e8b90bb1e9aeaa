package ops

import (
	"fmt"
	"math"

	"github.com/born-ml/astn/internal/tensor"
)

// SmoothL1Op represents the Fast R-CNN box regression loss.
//
// Forward, with d = inside * (pred - target):
//
//	f(d) = 0.5 * σ² * d²      if |d| < 1/σ²
//	     = |d| - 0.5 / σ²     otherwise
//	Loss = Σ outside * f(d)
//
// Normalisation is carried by the outside weights.
type SmoothL1Op struct {
	lossOp
}

// NewSmoothL1Op creates a new SmoothL1Op from a forward result.
func NewSmoothL1Op(pred, localGrad, output *tensor.RawTensor) *SmoothL1Op {
	return &SmoothL1Op{lossOp{input: pred, localGrad: localGrad, output: output}}
}

// SmoothL1Forward computes the loss and its gradient with respect to pred.
func SmoothL1Forward(pred, target, inside, outside *tensor.RawTensor, sigma float64) (loss, grad *tensor.RawTensor) {
	for _, t := range []*tensor.RawTensor{target, inside, outside} {
		if !t.Shape().Equal(pred.Shape()) {
			panic(fmt.Sprintf("smooth l1: shape %v does not match prediction %v", t.Shape(), pred.Shape()))
		}
	}
	sigma2 := sigma * sigma
	grad = tensor.Zeros(pred.Shape(), pred.Device())

	p, t, in, out, g := pred.Data(), target.Data(), inside.Data(), outside.Data(), grad.Data()
	total := 0.0
	for i := range p {
		if out[i] == 0 || in[i] == 0 {
			continue
		}
		d := in[i] * (p[i] - t[i])
		if math.Abs(d) < 1/sigma2 {
			total += out[i] * 0.5 * sigma2 * d * d
			g[i] = out[i] * in[i] * sigma2 * d
		} else {
			total += out[i] * (math.Abs(d) - 0.5/sigma2)
			g[i] = out[i] * in[i] * sign(d)
		}
	}
	return tensor.Scalar(total, pred.Device()), grad
}

// SmoothL1Terms returns the per-row loss Σ_j f(inside * (pred - target)) with unit
// outside weights.
func SmoothL1Terms(pred, target, inside *tensor.RawTensor, sigma float64) []float64 {
	rows, cols := pred.Shape().Rows()
	sigma2 := sigma * sigma
	terms := make([]float64, rows)
	p, t, in := pred.Data(), target.Data(), inside.Data()
	for i := 0; i < rows; i++ {
		for j := i * cols; j < (i+1)*cols; j++ {
			d := in[j] * (p[j] - t[j])
			if math.Abs(d) < 1/sigma2 {
				terms[i] += 0.5 * sigma2 * d * d
			} else {
				terms[i] += math.Abs(d) - 0.5/sigma2
			}
		}
	}
	return terms
}

func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}
