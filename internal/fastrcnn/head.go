// Package fastrcnn implements the region classification network around the spatial
// transform: ROI pooling, the aligner, the classifier head, the three training losses
// and the training loop that applies their gradients.
package fastrcnn

import (
	"fmt"
	"math/rand/v2"

	"github.com/born-ml/astn/internal/nn"
	"github.com/born-ml/astn/internal/tensor"
)

// ClassifierHead is the Fast R-CNN region head:
//
//	fc6 -> ReLU -> fc7 -> ReLU -> { cls_score [K], bbox_pred [D] }
//
// D is 4K for per-class regression or 4 when class agnostic.
type ClassifierHead[B tensor.Backend] struct {
	inFeatures int
	trunk      *nn.Sequential[B]
	cls        *nn.Linear[B]
	bbox       *nn.Linear[B]
	backend    B
}

// NewClassifierHead creates a head over inFeatures region features.
func NewClassifierHead[B tensor.Backend](inFeatures, hidden, numClasses, bboxDim int, backend B, rng *rand.Rand) *ClassifierHead[B] {
	return &ClassifierHead[B]{
		inFeatures: inFeatures,
		trunk: nn.NewSequential[B](
			nn.NewLinear("fc6", inFeatures, hidden, backend, rng),
			nn.NewReLU(backend),
			nn.NewLinear("fc7", hidden, hidden, backend, rng),
			nn.NewReLU(backend),
		),
		cls:     nn.NewLinear("cls_score", hidden, numClasses, backend, rng, nn.WithWeightInit(nn.Normal(0.01))),
		bbox:    nn.NewLinear("bbox_pred", hidden, bboxDim, backend, rng, nn.WithWeightInit(nn.Normal(0.001))),
		backend: backend,
	}
}

// Forward returns class logits [R, K] and box deltas [R, D] of features [R, C, H, W].
func (h *ClassifierHead[B]) Forward(features *tensor.RawTensor) (cls, bbox *tensor.RawTensor) {
	x := h.trunk.Forward(h.flatten(features))
	return h.cls.Forward(x), h.bbox.Forward(x)
}

// ForwardFrozen computes Forward with every weight detached. Gradient reaches the
// features but no parameter of the head.
func (h *ClassifierHead[B]) ForwardFrozen(features *tensor.RawTensor) (cls, bbox *tensor.RawTensor) {
	x := h.trunk.ForwardFrozen(h.flatten(features))
	return h.cls.ForwardFrozen(x), h.bbox.ForwardFrozen(x)
}

func (h *ClassifierHead[B]) flatten(features *tensor.RawTensor) *tensor.RawTensor {
	s := features.Shape()
	if len(s) != 4 || s[1]*s[2]*s[3] != h.inFeatures {
		panic(fmt.Sprintf("classifier head: expected [R, C, H, W] with %d features per region, got %v",
			h.inFeatures, s))
	}
	return h.backend.Reshape(features, tensor.Shape{s[0], h.inFeatures})
}

// Parameters returns every trainable parameter of the head.
func (h *ClassifierHead[B]) Parameters() []*nn.Parameter {
	params := h.trunk.Parameters()
	params = append(params, h.cls.Parameters()...)
	return append(params, h.bbox.Parameters()...)
}

// Classifier returns the cls_score layer.
func (h *ClassifierHead[B]) Classifier() *nn.Linear[B] {
	return h.cls
}

// Regressor returns the bbox_pred layer.
func (h *ClassifierHead[B]) Regressor() *nn.Linear[B] {
	return h.bbox
}
