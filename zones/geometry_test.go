package zones

import (
	"testing"

	"github.com/golang/geo/r2"
	"github.com/stretchr/testify/assert"
)

func TestAreaIgnoresWinding(t *testing.T) {
	cw := []r2.Point{{X: 0, Y: 0}, {X: 0, Y: 2}, {X: 3, Y: 2}, {X: 3, Y: 0}}
	ccw := []r2.Point{{X: 0, Y: 0}, {X: 3, Y: 0}, {X: 3, Y: 2}, {X: 0, Y: 2}}
	assert.InDelta(t, 6.0, Area(cw), 1e-9)
	assert.InDelta(t, 6.0, Area(ccw), 1e-9)
	assert.Zero(t, Area(cw[:2]))
}

func TestIntersectionArea(t *testing.T) {
	a := square(0, 0, 2, 2)

	assert.InDelta(t, 1.0, IntersectionArea(a, square(1, 1, 3, 3)), 1e-9)
	assert.InDelta(t, 0.0, IntersectionArea(a, square(5, 5, 6, 6)), 1e-9)
	assert.InDelta(t, 0.25, IntersectionArea(a, square(0.5, 0.5, 1, 1)), 1e-9)

	triangle := []r2.Point{{X: 0, Y: 0}, {X: 2, Y: 0}, {X: 0, Y: 2}}
	assert.InDelta(t, 2.0, IntersectionArea(a, triangle), 1e-9)
	assert.InDelta(t, 2.0, IntersectionArea(triangle, a), 1e-9)

	// Opposite windings give the same answer.
	reversed := []r2.Point{a[3], a[2], a[1], a[0]}
	assert.InDelta(t, 1.0, IntersectionArea(reversed, square(1, 1, 3, 3)), 1e-9)
}

func TestOverlapRatio(t *testing.T) {
	zone := square(0, 0, 10, 10)
	assert.InDelta(t, 1.0, OverlapRatio(box(2, 2, 4, 4), zone), 1e-9)
	assert.InDelta(t, 0.5, OverlapRatio(box(5, 0, 15, 10), zone), 1e-9)
	assert.Zero(t, OverlapRatio(box(3, 3, 3, 8), zone))
}

func TestIsConvex(t *testing.T) {
	assert.True(t, IsConvex(square(0, 0, 1, 1)))
	assert.True(t, IsConvex(DefaultSet()[Trapezoid].Points))
	assert.False(t, IsConvex([]r2.Point{{X: 0, Y: 0}, {X: 4, Y: 0}, {X: 2, Y: 1}, {X: 4, Y: 4}, {X: 0, Y: 4}}))
}
