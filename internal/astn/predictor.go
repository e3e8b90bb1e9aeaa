// Package astn implements the adaptive spatial transform of pooled region features.
//
// A Predictor maps each pooled region to transform parameters, a Transformer warps the
// region's channel blocks with them, and QualityLoss scores the warp by the confidence a
// frozen classifier assigns to the region's true class. Aligner wires the three with the
// stop-gradient boundaries that keep the classification losses away from the predictor
// and the quality loss away from everything else.
package astn

import (
	"fmt"
	"math/rand/v2"

	"github.com/born-ml/astn/internal/nn"
	"github.com/born-ml/astn/internal/tensor"
	"github.com/born-ml/astn/internal/warp"
)

// Predictor is a two-layer perceptron from flattened pooled features to one
// parameter vector per region.
//
// The output layer starts with zero weights and an identity bias, so an untrained
// predictor leaves every region unwarped. There is no output activation.
type Predictor[B tensor.Backend] struct {
	spec       warp.Spec
	inFeatures int
	mlp        *nn.Sequential[B]
	backend    B
}

// NewPredictor creates a predictor for regions of inFeatures values.
func NewPredictor[B tensor.Backend](spec warp.Spec, inFeatures, hidden int, backend B, rng *rand.Rand) *Predictor[B] {
	return &Predictor[B]{
		spec:       spec,
		inFeatures: inFeatures,
		mlp: nn.NewSequential[B](
			nn.NewLinear("astn_fc1", inFeatures, hidden, backend, rng),
			nn.NewReLU(backend),
			nn.NewLinear("astn_fc2", hidden, spec.NumParams(), backend, rng,
				nn.WithWeightInit(nn.Constant()),
				nn.WithBiasInit(nn.Constant(spec.Identity()...))),
		),
		backend: backend,
	}
}

// Forward maps pooled features [R, C, H, W] to parameters [R, NumParams].
func (p *Predictor[B]) Forward(pooled *tensor.RawTensor) *tensor.RawTensor {
	s := pooled.Shape()
	if len(s) != 4 || s[1]*s[2]*s[3] != p.inFeatures {
		panic(fmt.Sprintf("astn predictor: expected [R, C, H, W] with %d features per region, got %v",
			p.inFeatures, s))
	}
	flat := p.backend.Reshape(pooled, tensor.Shape{s[0], p.inFeatures})
	return p.mlp.Forward(flat)
}

// Parameters returns the trainable parameters.
func (p *Predictor[B]) Parameters() []*nn.Parameter {
	return p.mlp.Parameters()
}

// Spec returns the transform layout the predictor emits.
func (p *Predictor[B]) Spec() warp.Spec {
	return p.spec
}
