package geom

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistance(t *testing.T) {
	tests := []struct {
		name     string
		a, b     Vec3
		expected float64
	}{
		{"Zero", Vec3{}, Vec3{}, 0},
		{"AxisX", Vec3{0, 0, 0}, Vec3{3, 0, 0}, 3},
		{"Pythagorean", Vec3{1, 1, 1}, Vec3{4, 5, 1}, 5},
		{"Negative", Vec3{-1, -2, -2}, Vec3{0, 0, 0}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, Distance(tt.a, tt.b), 1e-12)
			assert.InDelta(t, tt.expected*tt.expected, SquaredDistance(tt.a, tt.b), 1e-12)
		})
	}
}

func TestFromSlice(t *testing.T) {
	coords := []float64{1, 2, 3, 4, 5, 6}
	assert.Equal(t, Vec3{4, 5, 6}, FromSlice(coords, 1))
	assert.Equal(t, coords, Vec3{4, 5, 6}.AppendTo(Vec3{1, 2, 3}.AppendTo(nil)))
}
