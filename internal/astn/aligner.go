package astn

import (
	"math/rand/v2"

	"github.com/born-ml/astn/internal/autodiff"
	"github.com/born-ml/astn/internal/nn"
	"github.com/born-ml/astn/internal/tensor"
	"github.com/born-ml/astn/internal/warp"
)

// Aligned holds the two views of a warped region batch.
type Aligned struct {
	// Features feed the classification and regression losses. They carry gradient to
	// the pooled features but not to Theta.
	Features *tensor.RawTensor
	// Probe feeds the quality loss. It carries gradient to Theta but not to the
	// pooled features.
	Probe *tensor.RawTensor
	// Theta is the predicted parameter vector of every region.
	Theta *tensor.RawTensor
}

// Aligner predicts and applies the region warp.
type Aligner[B tensor.Backend] struct {
	predictor   *Predictor[B]
	transformer *Transformer[B]
}

// NewAligner creates an aligner for pooled regions of channels×pooledH×pooledW values.
func NewAligner[B tensor.Backend](spec warp.Spec, channels, pooledH, pooledW, hidden int, backend B, rng *rand.Rand) *Aligner[B] {
	return &Aligner[B]{
		predictor:   NewPredictor(spec, channels*pooledH*pooledW, hidden, backend, rng),
		transformer: NewTransformer(spec, backend),
	}
}

// Align warps pooled [R, C, H, W] features.
//
// The predictor reads a detached copy of the features, so the only gradient its
// parameters receive is the one that enters through Probe.
func (a *Aligner[B]) Align(pooled *tensor.RawTensor) Aligned {
	theta := a.predictor.Forward(autodiff.Detach(pooled))
	return Aligned{
		Features: a.transformer.Forward(pooled, autodiff.Detach(theta)),
		Probe:    a.transformer.Forward(autodiff.Detach(pooled), theta),
		Theta:    theta,
	}
}

// Parameters returns the predictor parameters.
func (a *Aligner[B]) Parameters() []*nn.Parameter {
	return a.predictor.Parameters()
}

// Predictor returns the parameter predictor.
func (a *Aligner[B]) Predictor() *Predictor[B] {
	return a.predictor
}
