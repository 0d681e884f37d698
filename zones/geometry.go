package zones

import (
	"math"

	"github.com/golang/geo/r2"
)

// signedArea is the shoelace sum. Positive for counter-clockwise winding in a
// y-up frame, which is clockwise on screen.
func signedArea(pts []r2.Point) float64 {
	if len(pts) < 3 {
		return 0
	}
	sum := 0.0
	for i := range pts {
		sum += pts[i].Cross(pts[(i+1)%len(pts)])
	}
	return sum / 2
}

// Area returns the absolute polygon area
func Area(pts []r2.Point) float64 {
	return math.Abs(signedArea(pts))
}

// IsConvex reports whether the polygon turns the same way at every vertex.
// Collinear vertices are tolerated.
func IsConvex(pts []r2.Point) bool {
	n := len(pts)
	if n < 3 {
		return false
	}
	sign := 0.0
	for i := 0; i < n; i++ {
		a, b, c := pts[i], pts[(i+1)%n], pts[(i+2)%n]
		cross := b.Sub(a).Cross(c.Sub(b))
		if cross == 0 {
			continue
		}
		if sign == 0 {
			sign = cross
			continue
		}
		if (cross > 0) != (sign > 0) {
			return false
		}
	}
	return true
}

// positive returns the polygon with positive signed area
func positive(pts []r2.Point) []r2.Point {
	out := append([]r2.Point(nil), pts...)
	if signedArea(out) < 0 {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out
}

// Clip returns the part of subject inside the convex clip polygon
// (Sutherland-Hodgman). Both polygons may use either winding.
func Clip(subject, clip []r2.Point) []r2.Point {
	if len(subject) < 3 || len(clip) < 3 {
		return nil
	}
	output := positive(subject)
	edges := positive(clip)

	for i := range edges {
		if len(output) == 0 {
			break
		}
		a, b := edges[i], edges[(i+1)%len(edges)]
		edge := b.Sub(a)
		side := func(p r2.Point) float64 { return edge.Cross(p.Sub(a)) }

		input := output
		output = make([]r2.Point, 0, len(input)+1)
		prev := input[len(input)-1]
		prevSide := side(prev)
		for _, cur := range input {
			curSide := side(cur)
			switch {
			case curSide >= 0 && prevSide >= 0:
				output = append(output, cur)
			case curSide >= 0:
				output = append(output, crossing(prev, cur, prevSide, curSide), cur)
			case prevSide >= 0:
				output = append(output, crossing(prev, cur, prevSide, curSide))
			}
			prev, prevSide = cur, curSide
		}
	}
	return output
}

// crossing is the point where segment p->q crosses the clip edge, given the
// signed distances of both ends.
func crossing(p, q r2.Point, ps, qs float64) r2.Point {
	t := ps / (ps - qs)
	return p.Add(q.Sub(p).Mul(t))
}

// IntersectionArea returns the area shared by two convex polygons
func IntersectionArea(a, b []r2.Point) float64 {
	return Area(Clip(a, b))
}

// BoxPolygon returns the four corners of an axis-aligned box
func BoxPolygon(box r2.Rect) []r2.Point {
	v := box.Vertices()
	return v[:]
}

// BoxArea returns the box area, zero for empty or degenerate boxes
func BoxArea(box r2.Rect) float64 {
	if box.IsEmpty() {
		return 0
	}
	return box.X.Length() * box.Y.Length()
}

// OverlapRatio is the fraction of the box covered by the polygon. Zero-area
// boxes have ratio 0.
func OverlapRatio(box r2.Rect, polygon []r2.Point) float64 {
	area := BoxArea(box)
	if area <= 0 {
		return 0
	}
	return IntersectionArea(BoxPolygon(box), polygon) / area
}
