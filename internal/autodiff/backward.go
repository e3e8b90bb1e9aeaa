package autodiff

import "github.com/born-ml/astn/internal/tensor"

// BackwardCapable is an interface for backends that support backward pass.
// AutodiffBackend implements this interface.
type BackwardCapable interface {
	tensor.Backend
	// GetTape returns the gradient tape for backward computation.
	GetTape() *GradientTape
}

// GetTape returns the gradient tape (implements BackwardCapable interface).
func (b *AutodiffBackend[B]) GetTape() *GradientTape {
	return b.tape
}

// Backward computes gradients of t using the backend's tape.
//
// The output gradient is seeded with ones. Returns a map from RawTensor to its
// gradient; tensors that t does not depend on have no entry.
func Backward(t *tensor.RawTensor, backend BackwardCapable) map[*tensor.RawTensor]*tensor.RawTensor {
	tape := backend.GetTape()
	if tape.NumOps() == 0 {
		panic("backward: no operations recorded (did you forget to call Tape().StartRecording()?)")
	}
	outputGrad := tensor.Full(t.Shape(), 1, backend.Device())
	return tape.Backward(t, outputGrad, backend)
}

// Detach returns a copy of t that is not connected to any recorded operation.
//
// Gradients computed through the copy never reach t or anything t depends on.
func Detach(t *tensor.RawTensor) *tensor.RawTensor {
	return t.Clone()
}
