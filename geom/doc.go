// Package geom provides the 3D primitives used by the search layer.
//
// # Points
//
// Vec3 is a plain coordinate triple. Distance helpers follow the same shape as
// vector distance kernels:
//
//	d2 := geom.SquaredDistance(a, b)
//	d := geom.Distance(a, b)
//
// # Bounding Boxes
//
// Two representations are supported with identical membership semantics:
//
//   - BoundingBox: typed min/max corners, with a tolerance-aware test
//   - FlatBox: six packed scalars [xmax, xmin, ymax, ymin, zmax, zmin]
//
// Membership is strict on every axis: a point lying exactly on a face is
// outside. Tolerance expansion is skipped for uninitialized boxes (either
// corner has a norm at or below ZeroTolerance).
package geom
