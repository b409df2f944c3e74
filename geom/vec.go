package geom

import "math"

// ZeroTolerance is the machine epsilon for float64.
const ZeroTolerance = 0x1p-52

// Vec3 is a point or direction in 3D space.
type Vec3 [3]float64

// Add returns v + o.
func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{v[0] + o[0], v[1] + o[1], v[2] + o[2]}
}

// Sub returns v - o.
func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{v[0] - o[0], v[1] - o[1], v[2] - o[2]}
}

// Dot returns the dot product of v and o.
func (v Vec3) Dot(o Vec3) float64 {
	return v[0]*o[0] + v[1]*o[1] + v[2]*o[2]
}

// Norm returns the Euclidean length of v.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.Dot(v))
}

// SquaredDistance calculates the squared Euclidean distance between a and b.
func SquaredDistance(a, b Vec3) float64 {
	dx, dy, dz := a[0]-b[0], a[1]-b[1], a[2]-b[2]
	return dx*dx + dy*dy + dz*dz
}

// Distance calculates the Euclidean distance between a and b.
func Distance(a, b Vec3) float64 {
	return math.Sqrt(SquaredDistance(a, b))
}

// FromSlice reads the i-th point of a flattened xyz coordinate slice.
// Assumes len(coords) >= 3*(i+1) (caller's responsibility).
func FromSlice(coords []float64, i int) Vec3 {
	return Vec3{coords[3*i], coords[3*i+1], coords[3*i+2]}
}

// AppendTo appends the coordinates of v to dst.
func (v Vec3) AppendTo(dst []float64) []float64 {
	return append(dst, v[0], v[1], v[2])
}
