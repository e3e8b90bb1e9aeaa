package nn

import "github.com/born-ml/astn/internal/tensor"

// ReLU applies max(0, x) element-wise.
type ReLU[B tensor.Backend] struct {
	backend B
}

// NewReLU creates a new ReLU activation.
func NewReLU[B tensor.Backend](backend B) *ReLU[B] {
	return &ReLU[B]{backend: backend}
}

// Forward applies ReLU.
func (r *ReLU[B]) Forward(input *tensor.RawTensor) *tensor.RawTensor {
	return r.backend.ReLU(input)
}

// ForwardFrozen is Forward; ReLU has no weights.
func (r *ReLU[B]) ForwardFrozen(input *tensor.RawTensor) *tensor.RawTensor {
	return r.backend.ReLU(input)
}

// Parameters returns nil.
func (r *ReLU[B]) Parameters() []*Parameter {
	return nil
}
