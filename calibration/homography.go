// Package calibration maps ground-plane pixels of the fixed lane camera to
// real-world meters.
package calibration

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// ErrDegenerate is returned when the calibration points cannot define a
// perspective transform (repeated or collinear points).
var ErrDegenerate = errors.New("degenerate calibration points")

// DefaultPixelPoints are the lane corners measured on the canonical 760x480 frame
var DefaultPixelPoints = [4]r2.Point{
	{X: 228, Y: 302}, // top-left
	{X: 532, Y: 302}, // top-right
	{X: 532, Y: 479}, // bottom-right
	{X: 228, Y: 479}, // bottom-left
}

// DefaultMeterPoints are the ground positions of DefaultPixelPoints. The lane
// section is 1.77m wide and 0.825m deep.
var DefaultMeterPoints = [4]r2.Point{
	{X: 0, Y: 0},
	{X: 1.77, Y: 0},
	{X: 1.77, Y: 0.825},
	{X: 0, Y: 0.825},
}

// collinearTolerance is relative to the squared extent of the point set
const collinearTolerance = 1e-9

// Homography is an immutable 3x3 planar projective transform, row-major with h[8] == 1
type Homography struct {
	h [9]float64
}

// NewHomography solves the perspective transform taking each src point to the
// dst point with the same index.
func NewHomography(src, dst [4]r2.Point) (*Homography, error) {
	if err := checkPoints(src); err != nil {
		return nil, errors.Wrap(err, "pixel points")
	}
	if err := checkPoints(dst); err != nil {
		return nil, errors.Wrap(err, "metric points")
	}

	// Two rows per correspondence:
	// u = (h0 x + h1 y + h2) / (h6 x + h7 y + 1)
	// v = (h3 x + h4 y + h5) / (h6 x + h7 y + 1)
	a := mat.NewDense(8, 8, nil)
	b := mat.NewVecDense(8, nil)
	for i := 0; i < 4; i++ {
		x, y := src[i].X, src[i].Y
		u, v := dst[i].X, dst[i].Y
		a.SetRow(2*i, []float64{x, y, 1, 0, 0, 0, -u * x, -u * y})
		a.SetRow(2*i+1, []float64{0, 0, 0, x, y, 1, -v * x, -v * y})
		b.SetVec(2*i, u)
		b.SetVec(2*i+1, v)
	}

	var lu mat.LU
	lu.Factorize(a)
	var solution mat.VecDense
	if err := lu.SolveVecTo(&solution, false, b); err != nil {
		return nil, errors.Wrapf(ErrDegenerate, "solving homography: %v", err)
	}

	hom := &Homography{}
	for i := 0; i < 8; i++ {
		hom.h[i] = solution.AtVec(i)
	}
	hom.h[8] = 1
	for _, v := range hom.h {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, errors.Wrap(ErrDegenerate, "non-finite homography")
		}
	}
	return hom, nil
}

// Default returns the homography for the stock lane calibration
func Default() (*Homography, error) {
	return NewHomography(DefaultPixelPoints, DefaultMeterPoints)
}

// Project maps a pixel to meters. ok is false for points on the vanishing
// line, which have no finite ground position.
func (h *Homography) Project(p r2.Point) (r2.Point, bool) {
	w := h.h[6]*p.X + h.h[7]*p.Y + h.h[8]
	if math.Abs(w) < 1e-12 {
		return r2.Point{}, false
	}
	return r2.Point{
		X: (h.h[0]*p.X + h.h[1]*p.Y + h.h[2]) / w,
		Y: (h.h[3]*p.X + h.h[4]*p.Y + h.h[5]) / w,
	}, true
}

// Matrix returns a copy of the coefficients, row-major
func (h *Homography) Matrix() [9]float64 {
	return h.h
}

// checkPoints rejects point sets where any three points are collinear
func checkPoints(pts [4]r2.Point) error {
	for _, p := range pts {
		if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) {
			return errors.Wrap(ErrDegenerate, "non-finite point")
		}
	}

	bounds := r2.RectFromPoints(pts[:]...)
	extent := math.Max(bounds.X.Length(), bounds.Y.Length())
	if extent == 0 {
		return errors.Wrap(ErrDegenerate, "all points coincide")
	}
	tolerance := collinearTolerance * extent * extent

	for i := 0; i < 4; i++ {
		for j := i + 1; j < 4; j++ {
			for k := j + 1; k < 4; k++ {
				twiceArea := pts[j].Sub(pts[i]).Cross(pts[k].Sub(pts[i]))
				if math.Abs(twiceArea) <= tolerance {
					return errors.Wrapf(ErrDegenerate, "points %d, %d and %d are collinear", i, j, k)
				}
			}
		}
	}
	return nil
}
