package model

import "math"

// MomentumSGD applies classic momentum updates over flat param/grad
// slices shared with a policy.
type MomentumSGD struct {
	params   []float64
	grads    []float64
	momentum []float64
	lr       float64
	beta     float64
}

// NewMomentumSGD creates a momentum optimizer bound to the policy's
// parameter and gradient buffers.
func NewMomentumSGD(policy *LinearPolicy, lr float64) *MomentumSGD {
	return &MomentumSGD{
		params:   policy.Params(),
		grads:    policy.Grads(),
		momentum: make([]float64, len(policy.Params())),
		lr:       lr,
		beta:     0.9,
	}
}

// ZeroGrad clears the gradient buffer.
func (o *MomentumSGD) ZeroGrad() {
	for i := range o.grads {
		o.grads[i] = 0
	}
}

// Step applies the accumulated gradients.
func (o *MomentumSGD) Step() {
	for i := range o.params {
		o.momentum[i] = o.beta*o.momentum[i] + (1-o.beta)*o.grads[i]
		o.params[i] -= o.lr * o.momentum[i]
	}
}

// Adam applies Adam updates with bias correction over flat param/grad
// slices shared with a policy.
type Adam struct {
	params []float64
	grads  []float64
	m      []float64
	v      []float64
	lr     float64
	beta1  float64
	beta2  float64
	eps    float64
	t      int
}

// NewAdam creates an Adam optimizer bound to the policy's parameter and
// gradient buffers.
func NewAdam(policy *LinearPolicy, lr float64) *Adam {
	n := len(policy.Params())
	return &Adam{
		params: policy.Params(),
		grads:  policy.Grads(),
		m:      make([]float64, n),
		v:      make([]float64, n),
		lr:     lr,
		beta1:  0.9,
		beta2:  0.999,
		eps:    1e-8,
	}
}

// ZeroGrad clears the gradient buffer.
func (o *Adam) ZeroGrad() {
	for i := range o.grads {
		o.grads[i] = 0
	}
}

// Step applies the accumulated gradients with bias-corrected moments.
func (o *Adam) Step() {
	o.t++
	bc1 := 1 - math.Pow(o.beta1, float64(o.t))
	bc2 := 1 - math.Pow(o.beta2, float64(o.t))
	for i := range o.params {
		g := o.grads[i]
		if g == 0 {
			continue
		}
		o.m[i] = o.beta1*o.m[i] + (1-o.beta1)*g
		o.v[i] = o.beta2*o.v[i] + (1-o.beta2)*g*g
		mHat := o.m[i] / bc1
		vHat := o.v[i] / bc2
		o.params[i] -= o.lr * mHat / (math.Sqrt(vHat) + o.eps)
	}
}
