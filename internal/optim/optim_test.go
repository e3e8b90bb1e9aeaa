package optim_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/born-ml/astn/internal/nn"
	"github.com/born-ml/astn/internal/optim"
	"github.com/born-ml/astn/internal/tensor"
)

func setup(value, grad float64) (*nn.Parameter, map[*tensor.RawTensor]*tensor.RawTensor) {
	param := nn.NewParameter("x", tensor.Full(tensor.Shape{1}, value, tensor.CPU))
	grads := map[*tensor.RawTensor]*tensor.RawTensor{
		param.Tensor(): tensor.Full(tensor.Shape{1}, grad, tensor.CPU),
	}
	return param, grads
}

func TestSGD_SimpleUpdate(t *testing.T) {
	param, grads := setup(2, 1)
	optimizer := optim.NewSGD([]*nn.Parameter{param}, optim.SGDConfig{LR: 0.1})

	optimizer.Step(grads)
	assert.InDelta(t, 1.9, param.Tensor().Item(), 1e-12)
}

func TestSGD_WithMomentum(t *testing.T) {
	param, grads := setup(2, 1)
	optimizer := optim.NewSGD([]*nn.Parameter{param}, optim.SGDConfig{LR: 0.1, Momentum: 0.9})

	optimizer.Step(grads) // v = 1, x = 1.9
	optimizer.Step(grads) // v = 1.9, x = 1.71
	assert.InDelta(t, 1.71, param.Tensor().Item(), 1e-12)
}

func TestSGD_WeightDecay(t *testing.T) {
	param, grads := setup(2, 0)
	optimizer := optim.NewSGD([]*nn.Parameter{param}, optim.SGDConfig{LR: 0.1, WeightDecay: 0.5})

	optimizer.Step(grads) // g = 0 + 0.5*2 = 1
	assert.InDelta(t, 1.9, param.Tensor().Item(), 1e-12)
}

func TestSGD_SkipsMissingGradient(t *testing.T) {
	param, _ := setup(2, 0)
	optimizer := optim.NewSGD([]*nn.Parameter{param}, optim.SGDConfig{LR: 0.1, WeightDecay: 0.5})

	optimizer.Step(map[*tensor.RawTensor]*tensor.RawTensor{})
	assert.Equal(t, 2.0, param.Tensor().Item())
}

func TestSGD_DefaultsAndLR(t *testing.T) {
	optimizer := optim.NewSGD(nil, optim.SGDConfig{})
	assert.Equal(t, 0.01, optimizer.GetLR())
	optimizer.SetLR(0.5)
	assert.Equal(t, 0.5, optimizer.GetLR())

	var _ optim.Optimizer = optimizer
}

func TestSGD_ZeroGrad(t *testing.T) {
	param, grads := setup(1, 1)
	param.SetGrad(grads[param.Tensor()])
	optimizer := optim.NewSGD([]*nn.Parameter{param}, optim.SGDConfig{})
	optimizer.ZeroGrad()
	assert.Nil(t, param.Grad())
}
