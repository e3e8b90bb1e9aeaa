package ops

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/born-ml/astn/internal/tensor"
)

// softmaxRow writes a numerically stable softmax of logits into dst.
func softmaxRow(logits, dst []float64) {
	maxVal := floats.Max(logits)
	for i, v := range logits {
		dst[i] = math.Exp(v - maxVal)
	}
	floats.Scale(1/floats.Sum(dst), dst)
}

// scaledClone returns t * s as a new tensor.
func scaledClone(t *tensor.RawTensor, s float64) *tensor.RawTensor {
	out := t.Clone()
	floats.Scale(s, out.Data())
	return out
}

// lossOp is the common shape of the scalar loss operations: the forward pass stores
// dLoss/dInput, and Backward scales it by the upstream scalar gradient.
type lossOp struct {
	input     *tensor.RawTensor
	localGrad *tensor.RawTensor
	output    *tensor.RawTensor
}

// Backward scales the stored local gradient.
func (op *lossOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{scaledClone(op.localGrad, outputGrad.Item())}
}

// Inputs returns the differentiated input.
func (op *lossOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns the scalar loss.
func (op *lossOp) Output() *tensor.RawTensor {
	return op.output
}

func checkRows(name string, t *tensor.RawTensor, n int) (rows, cols int) {
	if len(t.Shape()) != 2 {
		panic(fmt.Sprintf("%s: expected 2D input, got %v", name, t.Shape()))
	}
	rows, cols = t.Shape().Rows()
	if n >= 0 && rows != n {
		panic(fmt.Sprintf("%s: %d rows but %d labels", name, rows, n))
	}
	return rows, cols
}
