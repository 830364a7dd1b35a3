package nifti

import (
	"math"

	"imtools/pkg/affine"
)

// Affine returns the voxel-to-world transform of the header. The sform
// rows win when the sform code is set, then the qform, then a plain
// diagonal of the spacings for headers carrying neither.
func (h *Header) Affine() affine.Matrix {
	if h.SFormCode > XFormUnknown {
		return affine.New([4][4]float64{
			{float64(h.SRowX[0]), float64(h.SRowX[1]), float64(h.SRowX[2]), float64(h.SRowX[3])},
			{float64(h.SRowY[0]), float64(h.SRowY[1]), float64(h.SRowY[2]), float64(h.SRowY[3])},
			{float64(h.SRowZ[0]), float64(h.SRowZ[1]), float64(h.SRowZ[2]), float64(h.SRowZ[3])},
			{0, 0, 0, 1},
		})
	}
	if h.QFormCode > XFormUnknown {
		qfac := 1.0
		if h.PixDim[0] < 0 {
			qfac = -1
		}
		return quatern{
			b:    float64(h.QuaternB),
			c:    float64(h.QuaternC),
			d:    float64(h.QuaternD),
			ox:   float64(h.QOffsetX),
			oy:   float64(h.QOffsetY),
			oz:   float64(h.QOffsetZ),
			dx:   float64(h.PixDim[1]),
			dy:   float64(h.PixDim[2]),
			dz:   float64(h.PixDim[3]),
			qfac: qfac,
		}.matrix()
	}
	s := h.Spacing()
	return affine.New([4][4]float64{
		{s[0], 0, 0, 0},
		{0, s[1], 0, 0},
		{0, 0, s[2], 0},
		{0, 0, 0, 1},
	})
}

// quatern holds the qform parameters of a header: the unit quaternion
// (implicit a, explicit b, c, d), the grid offsets, the voxel spacings and
// the handedness factor qfac.
type quatern struct {
	b, c, d    float64
	ox, oy, oz float64
	dx, dy, dz float64
	qfac       float64
}

// matrix reconstructs the voxel-to-world transform from the qform
// parameters, following quatern_to_mat44 in nifti1_io.c.
func (q quatern) matrix() affine.Matrix {
	b, c, d := q.b, q.c, q.d
	a := 1.0 - (b*b + c*c + d*d)
	if a < 1e-7 {
		// Special case: 180 degree rotation, normalize (b, c, d).
		a = 1.0 / math.Sqrt(b*b+c*c+d*d)
		b *= a
		c *= a
		d *= a
		a = 0
	} else {
		a = math.Sqrt(a)
	}

	xd, yd, zd := q.dx, q.dy, q.dz
	if xd <= 0 {
		xd = 1
	}
	if yd <= 0 {
		yd = 1
	}
	if zd <= 0 {
		zd = 1
	}
	if q.qfac < 0 {
		zd = -zd
	}

	return affine.New([4][4]float64{
		{(a*a + b*b - c*c - d*d) * xd, 2 * (b*c - a*d) * yd, 2 * (b*d + a*c) * zd, q.ox},
		{2 * (b*c + a*d) * xd, (a*a + c*c - b*b - d*d) * yd, 2 * (c*d - a*b) * zd, q.oy},
		{2 * (b*d - a*c) * xd, 2 * (c*d + a*b) * yd, (a*a + d*d - c*c - b*b) * zd, q.oz},
		{0, 0, 0, 1},
	})
}

// quaternFromMatrix extracts qform parameters from a voxel-to-world
// transform, following mat44_to_quatern in nifti1_io.c. Any shear left
// after factoring out the spacings is discarded.
func quaternFromMatrix(m affine.Matrix) quatern {
	q := quatern{
		ox: m.At(0, 3),
		oy: m.At(1, 3),
		oz: m.At(2, 3),
	}

	// Spacings are the column norms.
	q.dx = columnNorm(m, 0)
	q.dy = columnNorm(m, 1)
	q.dz = columnNorm(m, 2)
	if q.dx == 0 {
		q.dx = 1
	}
	if q.dy == 0 {
		q.dy = 1
	}
	if q.dz == 0 {
		q.dz = 1
	}

	var r [3][3]float64
	for i := 0; i < 3; i++ {
		r[i][0] = m.At(i, 0) / q.dx
		r[i][1] = m.At(i, 1) / q.dy
		r[i][2] = m.At(i, 2) / q.dz
	}

	// A negative determinant means a left-handed grid; flip the third
	// column and record it in qfac.
	q.qfac = 1
	if det3(r) < 0 {
		q.qfac = -1
		r[0][2] = -r[0][2]
		r[1][2] = -r[1][2]
		r[2][2] = -r[2][2]
	}

	// Shoemake's stable branch selection.
	a2 := r[0][0] + r[1][1] + r[2][2] + 1
	var a, b, c, d float64
	if a2 > 0.5 {
		a = 0.5 * math.Sqrt(a2)
		b = 0.25 * (r[2][1] - r[1][2]) / a
		c = 0.25 * (r[0][2] - r[2][0]) / a
		d = 0.25 * (r[1][0] - r[0][1]) / a
	} else {
		xd := 1 + r[0][0] - r[1][1] - r[2][2]
		yd := 1 + r[1][1] - r[0][0] - r[2][2]
		zd := 1 + r[2][2] - r[0][0] - r[1][1]
		switch {
		case xd > 1:
			b = 0.5 * math.Sqrt(xd)
			c = 0.25 * (r[0][1] + r[1][0]) / b
			d = 0.25 * (r[0][2] + r[2][0]) / b
			a = 0.25 * (r[2][1] - r[1][2]) / b
		case yd > 1:
			c = 0.5 * math.Sqrt(yd)
			b = 0.25 * (r[0][1] + r[1][0]) / c
			d = 0.25 * (r[1][2] + r[2][1]) / c
			a = 0.25 * (r[0][2] - r[2][0]) / c
		default:
			d = 0.5 * math.Sqrt(zd)
			b = 0.25 * (r[0][2] + r[2][0]) / d
			c = 0.25 * (r[1][2] + r[2][1]) / d
			a = 0.25 * (r[1][0] - r[0][1]) / d
		}
		if a < 0 {
			b, c, d = -b, -c, -d
		}
	}

	q.b, q.c, q.d = b, c, d
	return q
}

func columnNorm(m affine.Matrix, j int) float64 {
	return math.Sqrt(m.At(0, j)*m.At(0, j) + m.At(1, j)*m.At(1, j) + m.At(2, j)*m.At(2, j))
}

func det3(r [3][3]float64) float64 {
	return r[0][0]*(r[1][1]*r[2][2]-r[1][2]*r[2][1]) -
		r[0][1]*(r[1][0]*r[2][2]-r[1][2]*r[2][0]) +
		r[0][2]*(r[1][0]*r[2][1]-r[1][1]*r[2][0])
}
