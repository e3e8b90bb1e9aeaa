package tensor

import "fmt"

// Zeros creates a zero-filled tensor. It panics on an invalid shape.
func Zeros(shape Shape, device Device) *RawTensor {
	t, err := NewRaw(shape, device)
	if err != nil {
		panic(err)
	}
	return t
}

// Full creates a tensor filled with value.
func Full(shape Shape, value float64, device Device) *RawTensor {
	t := Zeros(shape, device)
	for i := range t.data {
		t.data[i] = value
	}
	return t
}

// Scalar creates a one-element tensor of shape [1].
func Scalar(value float64, device Device) *RawTensor {
	return Full(Shape{1}, value, device)
}

// FromSlice creates a tensor from data. The slice is copied.
func FromSlice(data []float64, shape Shape, device Device) (*RawTensor, error) {
	if shape.NumElements() != len(data) {
		return nil, fmt.Errorf("data length %d does not match shape %v (%d elements)",
			len(data), shape, shape.NumElements())
	}
	t, err := NewRaw(shape, device)
	if err != nil {
		return nil, err
	}
	copy(t.data, data)
	return t, nil
}
