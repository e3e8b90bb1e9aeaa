package nn

import (
	"fmt"
	"math/rand/v2"

	"github.com/born-ml/astn/internal/autodiff"
	"github.com/born-ml/astn/internal/tensor"
)

// Linear implements a fully connected (dense) layer.
//
// Performs the transformation: y = x @ W.T + b
// where:
//   - x is the input tensor with shape [batch_size, in_features]
//   - W is the weight matrix with shape [out_features, in_features]
//   - b is the bias vector with shape [out_features]
//   - y is the output tensor with shape [batch_size, out_features]
type Linear[B tensor.Backend] struct {
	inFeatures  int
	outFeatures int
	weight      *Parameter // [out_features, in_features]
	bias        *Parameter // [out_features]
	backend     B
}

// LinearOption customises NewLinear.
type LinearOption func(*linearOptions)

type linearOptions struct {
	weightInit Init
	biasInit   Init
}

// WithWeightInit overrides the Xavier weight initialization.
func WithWeightInit(init Init) LinearOption {
	return func(o *linearOptions) { o.weightInit = init }
}

// WithBiasInit overrides the zero bias initialization.
func WithBiasInit(init Init) LinearOption {
	return func(o *linearOptions) { o.biasInit = init }
}

// NewLinear creates a new Linear layer named name.
//
// Weights are initialized using Xavier/Glorot uniform distribution and biases to
// zeros unless overridden by options.
func NewLinear[B tensor.Backend](name string, inFeatures, outFeatures int, backend B, rng *rand.Rand, opts ...LinearOption) *Linear[B] {
	o := linearOptions{
		weightInit: Xavier(inFeatures, outFeatures),
		biasInit:   Constant(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	weight := tensor.Zeros(tensor.Shape{outFeatures, inFeatures}, backend.Device())
	o.weightInit(weight, rng)
	bias := tensor.Zeros(tensor.Shape{outFeatures}, backend.Device())
	o.biasInit(bias, rng)

	return &Linear[B]{
		inFeatures:  inFeatures,
		outFeatures: outFeatures,
		weight:      NewParameter(name+".weight", weight),
		bias:        NewParameter(name+".bias", bias),
		backend:     backend,
	}
}

// Forward computes y = x @ W.T + b.
func (l *Linear[B]) Forward(input *tensor.RawTensor) *tensor.RawTensor {
	l.checkInput(input)
	return l.backend.Linear(input, l.weight.Tensor(), l.bias.Tensor())
}

// ForwardFrozen computes Forward over detached copies of W and b.
func (l *Linear[B]) ForwardFrozen(input *tensor.RawTensor) *tensor.RawTensor {
	l.checkInput(input)
	return l.backend.Linear(input, autodiff.Detach(l.weight.Tensor()), autodiff.Detach(l.bias.Tensor()))
}

func (l *Linear[B]) checkInput(input *tensor.RawTensor) {
	inputShape := input.Shape()
	if len(inputShape) != 2 {
		panic(fmt.Sprintf("Linear.Forward: expected 2D input [batch, features], got shape %v", inputShape))
	}
	if inputShape[1] != l.inFeatures {
		panic(fmt.Sprintf("Linear.Forward: expected input with %d features, got %d", l.inFeatures, inputShape[1]))
	}
}

// Parameters returns [weight, bias].
func (l *Linear[B]) Parameters() []*Parameter {
	return []*Parameter{l.weight, l.bias}
}

// Weight returns the weight parameter.
func (l *Linear[B]) Weight() *Parameter {
	return l.weight
}

// Bias returns the bias parameter.
func (l *Linear[B]) Bias() *Parameter {
	return l.bias
}

// InFeatures returns the number of input features.
func (l *Linear[B]) InFeatures() int {
	return l.inFeatures
}

// OutFeatures returns the number of output features.
func (l *Linear[B]) OutFeatures() int {
	return l.outFeatures
}
