package nn

import "github.com/born-ml/astn/internal/tensor"

// Sequential is a container module that chains multiple modules together.
//
// Example:
//
//	mlp := nn.NewSequential[B](
//	    nn.NewLinear("fc6", 7*7*512, 4096, backend, rng),
//	    nn.NewReLU(backend),
//	    nn.NewLinear("fc7", 4096, 4096, backend, rng),
//	    nn.NewReLU(backend),
//	)
type Sequential[B tensor.Backend] struct {
	modules []Module[B]
}

// NewSequential creates a new Sequential container.
func NewSequential[B tensor.Backend](modules ...Module[B]) *Sequential[B] {
	return &Sequential[B]{
		modules: modules,
	}
}

// Forward applies all modules in sequence.
func (s *Sequential[B]) Forward(input *tensor.RawTensor) *tensor.RawTensor {
	output := input
	for _, module := range s.modules {
		output = module.Forward(output)
	}
	return output
}

// ForwardFrozen applies every module frozen.
func (s *Sequential[B]) ForwardFrozen(input *tensor.RawTensor) *tensor.RawTensor {
	output := input
	for _, module := range s.modules {
		output = module.ForwardFrozen(output)
	}
	return output
}

// Parameters returns the parameters of all contained modules in order.
func (s *Sequential[B]) Parameters() []*Parameter {
	var params []*Parameter
	for _, module := range s.modules {
		params = append(params, module.Parameters()...)
	}
	return params
}

// Len returns the number of contained modules.
func (s *Sequential[B]) Len() int {
	return len(s.modules)
}
