package ops

import (
	"fmt"
	"math"

	"github.com/born-ml/astn/internal/tensor"
)

// QualityMode selects how the transform quality loss scores a region.
type QualityMode int

const (
	// QualityCooperative penalises foreground regions whose true-class probability is
	// below the threshold: -log(p_y). Above the threshold the region is already good.
	QualityCooperative QualityMode = iota

	// QualityAdversarial penalises foreground regions whose true-class probability is at
	// or above the threshold: -log(1 - p_y). The transform learns to make regions hard.
	QualityAdversarial
)

// String returns the configuration name of the mode.
func (m QualityMode) String() string {
	switch m {
	case QualityCooperative:
		return "cooperative"
	case QualityAdversarial:
		return "adversarial"
	default:
		return "unknown"
	}
}

// QualityOptions configures TransformQualityForward.
type QualityOptions struct {
	Mode       QualityMode
	ScoreThres float64
	Eps        float64 // log argument floor; 1e-12 when zero
}

// TransformQualityOp represents the weakly supervised transform quality loss.
//
// The input is the probability matrix [R, K]. Only foreground regions (label > 0) that
// are valid and pass the threshold gate contribute; the loss is the mean over valid
// regions. Background regions count in the mean with zero loss, padding slots do not.
type TransformQualityOp struct {
	lossOp
}

// NewTransformQualityOp creates a new TransformQualityOp from a forward result.
func NewTransformQualityOp(probs, localGrad, output *tensor.RawTensor) *TransformQualityOp {
	return &TransformQualityOp{lossOp{input: probs, localGrad: localGrad, output: output}}
}

// TransformQualityForward computes the loss and its gradient with respect to probs.
//
// valid may be nil, in which case every region is valid.
func TransformQualityForward(probs *tensor.RawTensor, labels []int, valid []bool, opts QualityOptions) (loss, grad *tensor.RawTensor) {
	rows, cols := checkRows("transform quality", probs, len(labels))
	if valid != nil && len(valid) != rows {
		panic(fmt.Sprintf("transform quality: %d validity flags for %d rows", len(valid), rows))
	}
	eps := opts.Eps
	if eps == 0 {
		eps = 1e-12
	}

	grad = tensor.Zeros(probs.Shape(), probs.Device())
	numValid := 0
	for i := 0; i < rows; i++ {
		if valid == nil || valid[i] {
			numValid++
		}
	}
	if numValid == 0 {
		return tensor.Scalar(0, probs.Device()), grad
	}

	p, g := probs.Data(), grad.Data()
	scale := 1 / float64(numValid)
	total := 0.0
	for i := 0; i < rows; i++ {
		label := labels[i]
		if label <= 0 || (valid != nil && !valid[i]) {
			continue
		}
		if label >= cols {
			panic(fmt.Sprintf("transform quality: label %d out of range [0, %d)", label, cols))
		}
		py := p[i*cols+label]

		switch opts.Mode {
		case QualityCooperative:
			if py >= opts.ScoreThres {
				continue
			}
			total += -math.Log(math.Max(py, eps))
			if py > eps {
				g[i*cols+label] = -scale / py
			}
		case QualityAdversarial:
			if py < opts.ScoreThres {
				continue
			}
			q := 1 - py
			total += -math.Log(math.Max(q, eps))
			if q > eps {
				g[i*cols+label] = scale / q
			}
		default:
			panic(fmt.Sprintf("transform quality: unknown mode %d", opts.Mode))
		}
	}
	return tensor.Scalar(total*scale, probs.Device()), grad
}
