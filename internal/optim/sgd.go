package optim

import (
	"gonum.org/v1/gonum/floats"

	"github.com/born-ml/astn/internal/nn"
	"github.com/born-ml/astn/internal/tensor"
)

// SGD implements Stochastic Gradient Descent with momentum and L2 weight decay.
//
// Update rule:
//
//	g = gradient + weight_decay * param
//	velocity = momentum * velocity + g
//	param = param - lr * velocity
type SGD struct {
	params      []*nn.Parameter
	lr          float64
	momentum    float64
	weightDecay float64
	velocities  map[*nn.Parameter][]float64
}

// SGDConfig holds configuration for SGD optimizer.
type SGDConfig struct {
	LR          float64 // Learning rate (default: 0.01)
	Momentum    float64 // Momentum factor (range: [0, 1))
	WeightDecay float64 // L2 penalty
}

// NewSGD creates a new SGD optimizer.
func NewSGD(params []*nn.Parameter, config SGDConfig) *SGD {
	if config.LR == 0 {
		config.LR = 0.01
	}
	return &SGD{
		params:      params,
		lr:          config.LR,
		momentum:    config.Momentum,
		weightDecay: config.WeightDecay,
		velocities:  make(map[*nn.Parameter][]float64),
	}
}

// Step performs a single optimization step.
//
// Parameters with no gradient (not in computational graph) are skipped, including
// their weight decay.
func (s *SGD) Step(grads map[*tensor.RawTensor]*tensor.RawTensor) {
	for _, param := range s.params {
		grad := getGradient(param, grads)
		if grad == nil {
			continue
		}
		data := param.Tensor().Data()
		g := make([]float64, len(data))
		copy(g, grad.Data())
		if s.weightDecay != 0 {
			floats.AddScaled(g, s.weightDecay, data)
		}

		if s.momentum != 0 {
			v, ok := s.velocities[param]
			if !ok {
				v = make([]float64, len(data))
				s.velocities[param] = v
			}
			floats.Scale(s.momentum, v)
			floats.Add(v, g)
			g = v
		}
		floats.AddScaled(data, -s.lr, g)
	}
}

// ZeroGrad clears gradients for all parameters.
func (s *SGD) ZeroGrad() {
	nn.ZeroGrads(s.params)
}

// GetLR returns the current learning rate.
func (s *SGD) GetLR() float64 {
	return s.lr
}

// SetLR updates the learning rate.
func (s *SGD) SetLR(lr float64) {
	s.lr = lr
}
