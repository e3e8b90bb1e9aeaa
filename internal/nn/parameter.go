package nn

import (
	"github.com/born-ml/astn/internal/tensor"
)

// Parameter represents a trainable parameter in a neural network.
//
// Example:
//
//	weight := nn.NewParameter("fc6.weight", weightTensor)
//	grads := autodiff.Backward(loss, backend)
//	nn.CollectGrads(model.Parameters(), grads)
//	g := weight.Grad()
type Parameter struct {
	name   string            // Parameter name (e.g., "fc6.weight")
	tensor *tensor.RawTensor // The parameter tensor
	grad   *tensor.RawTensor // Gradient tensor (computed during backward pass)
}

// NewParameter creates a new trainable parameter.
func NewParameter(name string, t *tensor.RawTensor) *Parameter {
	return &Parameter{
		name:   name,
		tensor: t,
	}
}

// Name returns the parameter name.
func (p *Parameter) Name() string {
	return p.name
}

// Tensor returns the parameter tensor.
func (p *Parameter) Tensor() *tensor.RawTensor {
	return p.tensor
}

// Grad returns the gradient tensor.
//
// Returns nil if no gradient has been computed yet.
func (p *Parameter) Grad() *tensor.RawTensor {
	return p.grad
}

// SetGrad sets the gradient tensor.
func (p *Parameter) SetGrad(grad *tensor.RawTensor) {
	p.grad = grad
}

// AccumulateGrad adds grad into the parameter gradient.
func (p *Parameter) AccumulateGrad(grad *tensor.RawTensor) {
	if grad == nil {
		return
	}
	if p.grad == nil {
		p.grad = grad.Clone()
		return
	}
	dst := p.grad.Data()
	for i, v := range grad.Data() {
		dst[i] += v
	}
}

// ZeroGrad clears the gradient tensor.
func (p *Parameter) ZeroGrad() {
	p.grad = nil
}

// CollectGrads accumulates the gradients found in grads into params.
//
// Parameters that received no gradient keep their current gradient.
func CollectGrads(params []*Parameter, grads map[*tensor.RawTensor]*tensor.RawTensor) {
	for _, p := range params {
		p.AccumulateGrad(grads[p.tensor])
	}
}

// ZeroGrads clears the gradients of params.
func ZeroGrads(params []*Parameter) {
	for _, p := range params {
		p.ZeroGrad()
	}
}
