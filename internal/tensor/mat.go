package tensor

import "math/rand"

// Mat represents a dense row-major matrix of float32 values together with
// a gradient buffer of the same shape.
//
// R and C represent the number of rows and columns respectively. Stride is
// the number of elements between the starts of two consecutive rows; it
// equals C for matrices that own their storage and exceeds it for column
// windows into a wider parent. Data holds the flattened values and Grad the
// accumulated gradients.
//
// Mat does not perform any memory safety beyond the checks performed by
// Go's slice types; out-of-range indices will panic.
type Mat struct {
	R, C   int
	Stride int

	Data []float32
	Grad []float32
}

// NewMat allocates a new matrix with the given number of rows and columns.
// Values and gradients are zero initialised and the stride is set to the
// number of columns.
func NewMat(r, c int) *Mat {
	if r < 0 || c < 0 {
		panic("tensor: negative dimension for matrix")
	}
	return &Mat{
		R:      r,
		C:      c,
		Stride: c,
		Data:   make([]float32, r*c),
		Grad:   make([]float32, r*c),
	}
}

// NewMatFromData creates a matrix that adopts data as its backing values.
// It checks that the data length matches r*c.
func NewMatFromData(r, c int, data []float32) *Mat {
	if r*c != len(data) {
		panic("tensor: data length mismatch")
	}
	return &Mat{
		R:      r,
		C:      c,
		Stride: c,
		Data:   data,
		Grad:   make([]float32, r*c),
	}
}

// ColWindow returns a view of columns [from, to) of m. The view shares
// m's Data and Grad, so values written through the view are visible to the
// parent and gradients accumulated through the view land in the parent's
// buffer. Used to address per-head slices of a joint projection without
// copying.
func ColWindow(m *Mat, from, to int) *Mat {
	if from < 0 || to > m.C || from >= to {
		panic("tensor: column window out of range")
	}
	if m.R == 0 {
		return &Mat{R: 0, C: to - from, Stride: m.Stride}
	}
	hi := (m.R-1)*m.Stride + to
	return &Mat{
		R:      m.R,
		C:      to - from,
		Stride: m.Stride,
		Data:   m.Data[from:hi],
		Grad:   m.Grad[from:hi],
	}
}

// Row returns a view of the i-th row of the matrix as a slice. The slice
// has length equal to the number of columns. Modifications to the returned
// slice update the underlying matrix values.
func (m *Mat) Row(i int) []float32 {
	if i < 0 || i >= m.R {
		panic("tensor: row index out of range")
	}
	start := i * m.Stride
	return m.Data[start : start+m.C]
}

// GradRow returns a view of the i-th row of the gradient buffer.
func (m *Mat) GradRow(i int) []float32 {
	if i < 0 || i >= m.R {
		panic("tensor: row index out of range")
	}
	start := i * m.Stride
	return m.Grad[start : start+m.C]
}

// At returns the element at row r, column c.
func (m *Mat) At(r, c int) float32 {
	if r < 0 || r >= m.R || c < 0 || c >= m.C {
		panic("tensor: index out of range")
	}
	return m.Data[r*m.Stride+c]
}

// Set writes the element at row r, column c.
func (m *Mat) Set(r, c int, v float32) {
	if r < 0 || r >= m.R || c < 0 || c >= m.C {
		panic("tensor: index out of range")
	}
	m.Data[r*m.Stride+c] = v
}

// Size returns the number of elements in the matrix.
func (m *Mat) Size() int { return m.R * m.C }

// ZeroGrad clears the gradient buffer.
func (m *Mat) ZeroGrad() {
	for i := 0; i < m.R; i++ {
		row := m.GradRow(i)
		for j := range row {
			row[j] = 0
		}
	}
}

// FillNormal fills the matrix with draws from N(0, std). The generator
// controls the sequence; the same generator state produces identical
// matrices.
func FillNormal(m *Mat, std float64, rng *rand.Rand) {
	for i := 0; i < m.R; i++ {
		row := m.Row(i)
		for j := range row {
			row[j] = float32(rng.NormFloat64() * std)
		}
	}
}

// FillConst sets every element of the matrix to v.
func FillConst(m *Mat, v float32) {
	for i := 0; i < m.R; i++ {
		row := m.Row(i)
		for j := range row {
			row[j] = v
		}
	}
}
