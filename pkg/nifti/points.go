package nifti

import (
	"math"

	"imtools/pkg/affine"
)

// TransformPoints maps a batch of coordinates through a voxel-to-world or
// world-to-voxel transform.
func TransformPoints(m affine.Matrix, points [][3]float64) [][3]float64 {
	return m.ApplyPoints(points)
}

// DiscretizePoints rounds continuous voxel coordinates to grid indices,
// clamping to the uint16 range so out-of-grid points stay addressable.
func DiscretizePoints(points [][3]float64) [][3]uint16 {
	out := make([][3]uint16, len(points))
	for i, p := range points {
		for j := 0; j < 3; j++ {
			v := math.Round(p[j])
			if v < 0 {
				v = 0
			}
			if v > math.MaxUint16 {
				v = math.MaxUint16
			}
			out[i][j] = uint16(v)
		}
	}
	return out
}
