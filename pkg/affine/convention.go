package affine

import "fmt"

// Convention identifies the anatomical coordinate convention a transform is
// expressed in. The two conventions differ only in the sign of the first two
// coordinate axes.
type Convention int

const (
	// RAS is right-anterior-superior, the convention used by NiftyReg and
	// by the transforms this package keeps in memory.
	RAS Convention = iota
	// LPS is left-posterior-superior, the convention stored in the ITK
	// transform container.
	LPS
)

func (c Convention) String() string {
	switch c {
	case RAS:
		return "RAS"
	case LPS:
		return "LPS"
	}
	return fmt.Sprintf("Convention(%d)", int(c))
}

// flipXY negates the first two coordinate axes. It maps points between RAS
// and LPS and is its own inverse.
var flipXY = New([4][4]float64{
	{-1, 0, 0, 0},
	{0, -1, 0, 0},
	{0, 0, 1, 0},
	{0, 0, 0, 1},
})

// ToLPS converts a floating-to-reference matrix from the RAS convention to
// the LPS convention consumed by the ITK transform container. With
// F = diag(-1, -1, 1, 1), the result is the inverse of F*m*F.
//
// FromLPS(ToLPS(m)) reproduces m within floating-point tolerance for every
// invertible m.
func ToLPS(m Matrix) (Matrix, error) {
	flipped := flipXY.RightMul(m).RightMul(flipXY)
	return flipped.Inverse()
}

// FromLPS converts an LPS floating-to-reference matrix back to the RAS
// convention: m*F, left-multiplied by F, then inverted. It is the exact
// mathematical inverse of ToLPS.
func FromLPS(m Matrix) (Matrix, error) {
	flipped := m.RightMul(flipXY).LeftMul(flipXY)
	return flipped.Inverse()
}

// Convert maps m from one convention to the other. Converting a matrix to
// its own convention returns it unchanged.
func Convert(m Matrix, from, to Convention) (Matrix, error) {
	if from == to {
		return m, nil
	}
	if from == RAS {
		return ToLPS(m)
	}
	return FromLPS(m)
}
