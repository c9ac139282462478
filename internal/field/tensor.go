package field

import "gonum.org/v1/gonum/spatial/r3"

// Tensor is a second-rank 3x3 tensor stored row-major: XX XY XZ YX YY YZ ZX ZY ZZ.
type Tensor [9]float64

func components(v r3.Vec) [3]float64 {
	return [3]float64{v.X, v.Y, v.Z}
}

// Outer returns the outer product a_i b_j
func Outer(a, b r3.Vec) Tensor {
	ac, bc := components(a), components(b)
	var t Tensor
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			t[3*i+j] = ac[i] * bc[j]
		}
	}
	return t
}

// Spherical returns s times the identity tensor
func Spherical(s float64) Tensor {
	return Tensor{s, 0, 0, 0, s, 0, 0, 0, s}
}

// At returns component (i, j)
func (t Tensor) At(i, j int) float64 {
	return t[3*i+j]
}

// Add returns t + o
func (t Tensor) Add(o Tensor) Tensor {
	for i := range t {
		t[i] += o[i]
	}
	return t
}

// Sub returns t - o
func (t Tensor) Sub(o Tensor) Tensor {
	for i := range t {
		t[i] -= o[i]
	}
	return t
}

// Scale returns f*t
func (t Tensor) Scale(f float64) Tensor {
	for i := range t {
		t[i] *= f
	}
	return t
}

// Trace returns t_ii
func (t Tensor) Trace() float64 {
	return t[0] + t[4] + t[8]
}

// Dot returns the vector t_ij v_j
func (t Tensor) Dot(v r3.Vec) r3.Vec {
	return r3.Vec{
		X: t[0]*v.X + t[1]*v.Y + t[2]*v.Z,
		Y: t[3]*v.X + t[4]*v.Y + t[5]*v.Z,
		Z: t[6]*v.X + t[7]*v.Y + t[8]*v.Z,
	}
}

// Contract returns the double contraction a_i t_ij b_j
func (t Tensor) Contract(a, b r3.Vec) float64 {
	return r3.Dot(a, t.Dot(b))
}
