// Package pose provides rigid-body transform primitives for head pose math.
// Poses are 4x4 homogeneous matrices; rotation is built from intrinsic XYZ
// Euler angles to match the robot daemon's head pose convention.
package pose

import "math"

// Matrix is a 4x4 homogeneous rigid-body transform.
type Matrix [4][4]float64

// Identity returns the identity transform.
func Identity() Matrix {
	return Matrix{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0, 0, 1, 0},
		{0, 0, 0, 1},
	}
}

// New builds a transform from intrinsic XYZ Euler angles in degrees and a
// translation in millimeters (converted to meters).
func New(roll, pitch, yaw, x, y, z float64) Matrix {
	return FromRadians(
		roll*math.Pi/180,
		pitch*math.Pi/180,
		yaw*math.Pi/180,
		x/1000, y/1000, z/1000,
	)
}

// FromRadians builds a transform from intrinsic XYZ Euler angles in radians
// and a translation in meters. Used by the speech-offset layer, which works
// in radians/meters throughout.
func FromRadians(roll, pitch, yaw, x, y, z float64) Matrix {
	sr, cr := math.Sincos(roll)
	sp, cp := math.Sincos(pitch)
	sy, cy := math.Sincos(yaw)

	// R = Rx(roll) * Ry(pitch) * Rz(yaw)
	m := Identity()
	m[0][0] = cp * cy
	m[0][1] = -cp * sy
	m[0][2] = sp
	m[1][0] = cr*sy + sr*sp*cy
	m[1][1] = cr*cy - sr*sp*sy
	m[1][2] = -sr * cp
	m[2][0] = sr*sy - cr*sp*cy
	m[2][1] = sr*cy + cr*sp*sy
	m[2][2] = cr * cp

	m[0][3] = x
	m[1][3] = y
	m[2][3] = z
	return m
}

// Compose returns a·b: apply b in a's local frame.
func Compose(a, b Matrix) Matrix {
	var out Matrix
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			var sum float64
			for k := 0; k < 4; k++ {
				sum += a[i][k] * b[k][j]
			}
			out[i][j] = sum
		}
	}
	return out
}

// Translation returns the translation component in meters.
func (m Matrix) Translation() (x, y, z float64) {
	return m[0][3], m[1][3], m[2][3]
}
