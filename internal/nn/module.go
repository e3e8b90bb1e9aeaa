// Package nn implements the neural network modules of the region heads.
//
// This package provides:
//   - Module interface: Base interface for all NN components
//   - Parameter: Trainable parameters with gradient tracking
//   - Linear: Fully connected layer
//   - ReLU activation
//   - Sequential: Container for stacking layers
//   - LossBackend: the loss kernels losses are computed with
//
// Every module can also run frozen: the same forward computation over detached copies
// of its weights, so gradients flow to the input but never to the module itself.
package nn

import (
	"github.com/born-ml/astn/internal/tensor"
)

// Module is the base interface for all neural network components.
//
// Type parameter B must satisfy the tensor.Backend interface.
type Module[B tensor.Backend] interface {
	// Forward computes the output of the module given an input tensor.
	Forward(input *tensor.RawTensor) *tensor.RawTensor

	// ForwardFrozen computes Forward with detached weights.
	ForwardFrozen(input *tensor.RawTensor) *tensor.RawTensor

	// Parameters returns all trainable parameters of this module.
	Parameters() []*Parameter
}
