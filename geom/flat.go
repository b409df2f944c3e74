package geom

// FlatBox packs a box as [xmax, xmin, ymax, ymin, zmax, zmin].
// Flat boxes carry no tolerance handling: bounds are expected to be
// expanded already (see ExpandFlatBoxes).
type FlatBox [6]float64

// FlatBoxAt reads the i-th box of a packed slice of boxes.
func FlatBoxAt(boxes []float64, i int) FlatBox {
	var f FlatBox
	copy(f[:], boxes[6*i:6*i+6])
	return f
}

// Contains reports whether p lies strictly inside f.
func (f FlatBox) Contains(p Vec3) bool {
	return p[0] < f[0] && p[0] > f[1] &&
		p[1] < f[2] && p[1] > f[3] &&
		p[2] < f[4] && p[2] > f[5]
}

// ContainsTol ignores tol and tests the stored bounds.
func (f FlatBox) ContainsTol(p Vec3, _ float64) bool {
	return f.Contains(p)
}

// Box converts f to the typed representation.
func (f FlatBox) Box() BoundingBox {
	return BoundingBox{
		Min: Vec3{f[1], f[3], f[5]},
		Max: Vec3{f[0], f[2], f[4]},
	}
}

// IsInsideFlat reports whether p lies strictly inside the packed box.
func IsInsideFlat(box FlatBox, p Vec3) bool {
	return box.Contains(p)
}

// ExpandFlatBoxes grows every packed box in boxes by tol and writes the
// result into dst, which is resized to len(boxes). Returns dst.
func ExpandFlatBoxes(boxes []float64, tol float64, dst []float64) []float64 {
	dst = resize(dst, len(boxes))
	for i := 0; i+6 <= len(boxes); i += 6 {
		expandInto(boxes[i:i+6], tol, dst[i:i+6])
	}
	return dst
}

// ExpandFlatBoxesCheckingNull behaves like ExpandFlatBoxes but copies boxes
// whose six values are all within ZeroTolerance of zero unchanged. Ranks
// without local geometry report such null boxes.
func ExpandFlatBoxesCheckingNull(boxes []float64, tol float64, dst []float64) []float64 {
	dst = resize(dst, len(boxes))
	for i := 0; i+6 <= len(boxes); i += 6 {
		if isNullBox(boxes[i : i+6]) {
			copy(dst[i:i+6], boxes[i:i+6])
			continue
		}
		expandInto(boxes[i:i+6], tol, dst[i:i+6])
	}
	return dst
}

func expandInto(src []float64, tol float64, dst []float64) {
	for j := 0; j < 3; j++ {
		dst[2*j] = src[2*j] + tol
		dst[2*j+1] = src[2*j+1] - tol
	}
}

func isNullBox(b []float64) bool {
	var sum float64
	for _, v := range b {
		sum += v * v
	}
	return sum <= ZeroTolerance*ZeroTolerance
}

func resize(s []float64, n int) []float64 {
	if cap(s) < n {
		return make([]float64, n)
	}
	return s[:n]
}
