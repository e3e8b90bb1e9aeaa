package ops

import (
	"fmt"
	"math"

	"github.com/born-ml/astn/internal/tensor"
)

// CrossEntropyOp represents the weighted softmax cross-entropy loss.
//
// Forward:
//
//	Loss = Σ_i w_i * -log_softmax(logits_i)[labels_i] / Σ_i w_i
//
// Backward:
//
//	∂L/∂logits_i = w_i * (softmax(logits_i) - onehot(labels_i)) / Σ_i w_i
//
// A region with weight 0 contributes nothing; if every weight is 0 the loss is 0.
type CrossEntropyOp struct {
	lossOp
}

// NewCrossEntropyOp creates a new cross-entropy operation from a forward result.
func NewCrossEntropyOp(logits, localGrad, output *tensor.RawTensor) *CrossEntropyOp {
	return &CrossEntropyOp{lossOp{input: logits, localGrad: localGrad, output: output}}
}

// CrossEntropyForward computes the loss and its gradient with respect to logits.
//
// weights may be nil for uniform weighting.
func CrossEntropyForward(logits *tensor.RawTensor, labels []int, weights []float64) (loss, grad *tensor.RawTensor) {
	rows, cols := checkRows("cross entropy", logits, len(labels))
	if weights != nil && len(weights) != rows {
		panic(fmt.Sprintf("cross entropy: %d weights for %d rows", len(weights), rows))
	}

	grad = tensor.Zeros(logits.Shape(), logits.Device())
	terms := CrossEntropyTerms(logits, labels)

	norm := 0.0
	for i := 0; i < rows; i++ {
		norm += weightAt(weights, i)
	}
	if norm == 0 {
		return tensor.Scalar(0, logits.Device()), grad
	}

	total := 0.0
	in, g := logits.Data(), grad.Data()
	for i := 0; i < rows; i++ {
		w := weightAt(weights, i)
		if w == 0 {
			continue
		}
		total += w * terms[i]
		row := g[i*cols : (i+1)*cols]
		softmaxRow(in[i*cols:(i+1)*cols], row)
		for j := range row {
			row[j] *= w / norm
		}
		row[labels[i]] -= w / norm
	}
	return tensor.Scalar(total/norm, logits.Device()), grad
}

// CrossEntropyTerms returns the unweighted per-row loss -log_softmax(logits_i)[labels_i].
func CrossEntropyTerms(logits *tensor.RawTensor, labels []int) []float64 {
	rows, cols := checkRows("cross entropy", logits, len(labels))
	terms := make([]float64, rows)
	in := logits.Data()
	for i := 0; i < rows; i++ {
		row := in[i*cols : (i+1)*cols]
		label := labels[i]
		if label < 0 || label >= cols {
			panic(fmt.Sprintf("cross entropy: label %d out of range [0, %d)", label, cols))
		}
		maxVal := math.Inf(-1)
		for _, v := range row {
			maxVal = math.Max(maxVal, v)
		}
		sum := 0.0
		for _, v := range row {
			sum += math.Exp(v - maxVal)
		}
		terms[i] = maxVal + math.Log(sum) - row[label]
	}
	return terms
}

func weightAt(weights []float64, i int) float64 {
	if weights == nil {
		return 1
	}
	return weights[i]
}
