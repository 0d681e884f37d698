// Package zones assigns detected vehicle boxes to the hazard zones of the
// monitored lane.
package zones

import (
	"fmt"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
)

// Name identifies a lane zone polygon
type Name string

const (
	Red       Name = "red_zone"
	Yellow    Name = "yellow_zone"
	Green     Name = "green_zone"
	Trapezoid Name = "full_trapezoid"
)

// DefaultMinOverlap is the minimum box/zone overlap ratio for a box to count as inside a zone
const DefaultMinOverlap = 0.05

// Priority is the fixed order zones are tested in. The first qualifying zone wins.
var Priority = []Name{Red, Yellow, Green}

// Polygon is a named convex polygon in pixel coordinates
type Polygon struct {
	Name   Name
	Points []r2.Point
}

// Area returns the polygon area in square pixels
func (p Polygon) Area() float64 {
	return Area(p.Points)
}

// Set holds the zone polygons for one frame. It is fixed for a session.
type Set map[Name]Polygon

// NewSet builds a Set from polygons, keyed by their names
func NewSet(polygons ...Polygon) Set {
	set := make(Set, len(polygons))
	for _, p := range polygons {
		set[p.Name] = p
	}
	return set
}

// Get returns the polygon registered under name
func (s Set) Get(name Name) (Polygon, bool) {
	p, ok := s[name]
	return p, ok
}

// Validate checks that every polygon is convex with at least three vertices
// and that at least one hazard zone is present.
func (s Set) Validate() error {
	hazard := 0
	for name, p := range s {
		if len(p.Points) < 3 {
			return errors.Errorf("zone %s has %d points, need at least 3", name, len(p.Points))
		}
		if !IsConvex(p.Points) {
			return errors.Errorf("zone %s is not convex", name)
		}
		if p.Area() == 0 {
			return errors.Errorf("zone %s has zero area", name)
		}
		if name != Trapezoid {
			hazard++
		}
	}
	if hazard == 0 {
		return errors.New("no hazard zones defined")
	}
	return nil
}

// String lists the zones in priority order with their vertex counts and
// areas, for logs.
func (s Set) String() string {
	out := ""
	for _, name := range append(append([]Name{}, Priority...), Trapezoid) {
		p, ok := s.Get(name)
		if !ok {
			continue
		}
		if out != "" {
			out += " "
		}
		out += fmt.Sprintf("%s(%d pts, %.0f px2)", name, len(p.Points), p.Area())
	}
	return out
}

// DefaultSet returns the lane layout for the canonical 760x480 frame. The
// trapezoid narrows towards the horizon and is cut into three bands, red
// nearest to the camera.
func DefaultSet() Set {
	return NewSet(
		Polygon{Name: Trapezoid, Points: []r2.Point{{X: 300, Y: 200}, {X: 460, Y: 200}, {X: 610, Y: 479}, {X: 150, Y: 479}}},
		Polygon{Name: Green, Points: []r2.Point{{X: 300, Y: 200}, {X: 460, Y: 200}, {X: 514, Y: 300}, {X: 246, Y: 300}}},
		Polygon{Name: Yellow, Points: []r2.Point{{X: 246, Y: 300}, {X: 514, Y: 300}, {X: 562, Y: 390}, {X: 198, Y: 390}}},
		Polygon{Name: Red, Points: []r2.Point{{X: 198, Y: 390}, {X: 562, Y: 390}, {X: 610, Y: 479}, {X: 150, Y: 479}}},
	)
}
