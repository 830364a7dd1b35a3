// Package affine implements the 4x4 homogeneous transforms used in
// medical-image registration, including the conversion between the RAS
// convention used by NiftyReg and the LPS convention used by ITK, and
// readers/writers for the two transform file formats those toolkits exchange.
//
// A Matrix maps homogeneous coordinates from the floating (moving) image to
// the reference (fixed) image. Matrices are plain values: every operation
// returns a new Matrix and never mutates its operands, so composition chains
// can be reasoned about without worrying about aliasing.
package affine

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Matrix is a 4x4 homogeneous affine transform stored in row-major order,
// mapping floating-image coordinates to reference-image coordinates.
//
// For inversion and composition to be meaningful the bottom row must be
// [0 0 0 1]. Constructors do not enforce this, mirroring the permissive
// handling of matrices parsed from files; Inverse reports a
// SingularMatrixError when the matrix cannot be inverted.
type Matrix struct {
	data [16]float64
}

// Identity returns the 4x4 identity transform.
func Identity() Matrix {
	var m Matrix
	m.data[0], m.data[5], m.data[10], m.data[15] = 1, 1, 1, 1
	return m
}

// New builds a Matrix from four rows of four values.
func New(rows [4][4]float64) Matrix {
	var m Matrix
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			m.data[4*i+j] = rows[i][j]
		}
	}
	return m
}

// NewTranslation returns the transform that translates points by (x, y, z).
func NewTranslation(x, y, z float64) Matrix {
	m := Identity()
	m.data[3], m.data[7], m.data[11] = x, y, z
	return m
}

// FromDense converts a gonum matrix into a Matrix. It returns a ShapeError
// if the input is not 4x4.
func FromDense(d mat.Matrix) (Matrix, error) {
	r, c := d.Dims()
	if r != 4 || c != 4 {
		return Matrix{}, &ShapeError{Rows: r, Cols: c}
	}
	var m Matrix
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			m.data[4*i+j] = d.At(i, j)
		}
	}
	return m, nil
}

// At returns the element at row i, column j.
func (a Matrix) At(i, j int) float64 { return a.data[4*i+j] }

// Rows returns the matrix as four rows of four values.
func (a Matrix) Rows() [4][4]float64 {
	var rows [4][4]float64
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			rows[i][j] = a.data[4*i+j]
		}
	}
	return rows
}

// Dense returns a freshly allocated gonum Dense copy of the matrix.
func (a Matrix) Dense() *mat.Dense {
	return mat.NewDense(4, 4, append([]float64(nil), a.data[:]...))
}

// RightMul composes a with b on the right and returns a*b, the transform
// that applies b first and a second.
func (a Matrix) RightMul(b Matrix) Matrix {
	var p mat.Dense
	p.Mul(a.Dense(), b.Dense())
	m, _ := FromDense(&p)
	return m
}

// LeftMul composes a with b on the left and returns b*a, the transform
// that applies a first and b second.
func (a Matrix) LeftMul(b Matrix) Matrix {
	var p mat.Dense
	p.Mul(b.Dense(), a.Dense())
	m, _ := FromDense(&p)
	return m
}

// Inverse returns the inverse transform. It returns a SingularMatrixError
// when the matrix is singular, or so badly conditioned that inversion in
// float64 is meaningless.
func (a Matrix) Inverse() (Matrix, error) {
	var inv mat.Dense
	if err := inv.Inverse(a.Dense()); err != nil {
		return Matrix{}, &SingularMatrixError{err: err}
	}
	m, _ := FromDense(&inv)
	return m, nil
}

// Apply maps the point (x, y, z) through the transform.
func (a Matrix) Apply(x, y, z float64) (float64, float64, float64) {
	px := a.data[0]*x + a.data[1]*y + a.data[2]*z + a.data[3]
	py := a.data[4]*x + a.data[5]*y + a.data[6]*z + a.data[7]
	pz := a.data[8]*x + a.data[9]*y + a.data[10]*z + a.data[11]
	return px, py, pz
}

// ApplyPoints maps every point through the transform and returns the results
// as a new slice.
func (a Matrix) ApplyPoints(points [][3]float64) [][3]float64 {
	out := make([][3]float64, len(points))
	for i, p := range points {
		x, y, z := a.Apply(p[0], p[1], p[2])
		out[i] = [3]float64{x, y, z}
	}
	return out
}

// EqualApprox reports whether a and b agree element-wise within tol.
func (a Matrix) EqualApprox(b Matrix, tol float64) bool {
	return mat.EqualApprox(a.Dense(), b.Dense(), tol)
}

// Norm returns the Frobenius norm of the matrix.
func (a Matrix) Norm() float64 {
	return mat.Norm(a.Dense(), 2)
}

// String formats the matrix with two decimal places per element.
func (a Matrix) String() string {
	return fmt.Sprintf("%.2f", mat.Formatted(a.Dense(), mat.Squeeze()))
}
