package geom

import "math"

// Region is anything that can answer a tolerance-aware membership test.
// Both BoundingBox and FlatBox implement it.
type Region interface {
	ContainsTol(p Vec3, tol float64) bool
}

// BoundingBox is an axis-aligned box given by its min and max corners.
// The zero value is an uninitialized box.
type BoundingBox struct {
	Min Vec3
	Max Vec3
}

// NewBoundingBox creates a box from its corners.
func NewBoundingBox(min, max Vec3) BoundingBox {
	return BoundingBox{Min: min, Max: max}
}

// BoundingBoxOf returns the tightest box around points.
// An empty input yields the zero (uninitialized) box.
func BoundingBoxOf(points []Vec3) BoundingBox {
	if len(points) == 0 {
		return BoundingBox{}
	}
	b := BoundingBox{Min: points[0], Max: points[0]}
	for _, p := range points[1:] {
		for i := 0; i < 3; i++ {
			b.Min[i] = math.Min(b.Min[i], p[i])
			b.Max[i] = math.Max(b.Max[i], p[i])
		}
	}
	return b
}

// IsInitialized reports whether both corners have a norm above ZeroTolerance.
// Tolerance expansion only applies to initialized boxes.
func (b BoundingBox) IsInitialized() bool {
	return b.Max.Norm() > ZeroTolerance && b.Min.Norm() > ZeroTolerance
}

// Expand returns the box grown by tol on every face.
// Uninitialized boxes are returned unchanged.
func (b BoundingBox) Expand(tol float64) BoundingBox {
	if !b.IsInitialized() {
		return b
	}
	for i := 0; i < 3; i++ {
		b.Max[i] += tol
		b.Min[i] -= tol
	}
	return b
}

// Contains reports whether p lies strictly inside b.
func (b BoundingBox) Contains(p Vec3) bool {
	return p[0] < b.Max[0] && p[0] > b.Min[0] &&
		p[1] < b.Max[1] && p[1] > b.Min[1] &&
		p[2] < b.Max[2] && p[2] > b.Min[2]
}

// ContainsTol reports whether p lies strictly inside b expanded by tol.
func (b BoundingBox) ContainsTol(p Vec3, tol float64) bool {
	return b.Expand(tol).Contains(p)
}

// Flat converts b to the packed six-scalar representation.
func (b BoundingBox) Flat() FlatBox {
	return FlatBox{b.Max[0], b.Min[0], b.Max[1], b.Min[1], b.Max[2], b.Min[2]}
}

// IsInside reports whether p lies strictly inside box.
func IsInside(box BoundingBox, p Vec3) bool {
	return box.Contains(p)
}

// IsInsideTol reports whether p lies strictly inside box expanded by tol.
// Expansion is skipped for uninitialized boxes.
func IsInsideTol(box BoundingBox, p Vec3, tol float64) bool {
	return box.ContainsTol(p, tol)
}
