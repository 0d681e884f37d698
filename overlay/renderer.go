// Package overlay draws the hazard readings onto the canonical lane frame:
// zone outlines, per-vehicle boxes with class and speed labels, and a
// three-lamp traffic light for the frame status.
package overlay

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"lanecam/alert"
	"lanecam/units"
	"lanecam/vehicle"
	"lanecam/zones"

	"github.com/golang/geo/r2"
	"gocv.io/x/gocv"
)

// debugMsgFunc is a function that will be set by main package to use unified logging
var debugMsgFunc func(component, message string, trackID ...string)

// SetDebugFunction allows main package to provide the debug logger
func SetDebugFunction(fn func(component, message string, trackID ...string)) {
	debugMsgFunc = fn
}

func debugMsg(component, message string, trackID ...string) {
	if debugMsgFunc != nil {
		debugMsgFunc(component, message, trackID...)
	}
}

// Renderer holds the drawing style. Annotate only reads the computed
// readings; it never changes a zone, speed or severity.
type Renderer struct {
	speedUnit string
	showZones bool

	greenColor     color.RGBA
	yellowColor    color.RGBA
	redColor       color.RGBA
	lampOffColor   color.RGBA
	housingColor   color.RGBA
	trapezoidColor color.RGBA
	textColor      color.RGBA

	lampRadius int
	lampMargin int

	lastStatus alert.Severity
}

// NewRenderer creates a renderer that prints speeds in speedUnit
func NewRenderer(speedUnit string) *Renderer {
	if !units.IsValid(speedUnit) {
		speedUnit = units.KMPH
	}
	return &Renderer{
		speedUnit:      speedUnit,
		showZones:      true,
		greenColor:     color.RGBA{0, 200, 0, 255},
		yellowColor:    color.RGBA{255, 200, 0, 255},
		redColor:       color.RGBA{255, 0, 0, 255},
		lampOffColor:   color.RGBA{60, 60, 60, 255},
		housingColor:   color.RGBA{20, 20, 20, 255},
		trapezoidColor: color.RGBA{200, 200, 200, 255},
		textColor:      color.RGBA{255, 255, 255, 255},
		lampRadius:     14,
		lampMargin:     10,
	}
}

// SetShowZones toggles the zone outlines
func (r *Renderer) SetShowZones(show bool) {
	r.showZones = show
}

// Annotate draws onto frame in place and returns it
func (r *Renderer) Annotate(frame gocv.Mat, set zones.Set, vs []alert.Vehicle, status alert.Severity) gocv.Mat {
	if frame.Empty() {
		return frame
	}
	if r.showZones {
		r.drawZones(&frame, set)
	}
	for _, v := range vs {
		r.drawVehicle(&frame, v)
	}
	r.drawTrafficLight(&frame, status)

	if status != r.lastStatus {
		debugMsg("OVERLAY", fmt.Sprintf("traffic light %s -> %s", r.lastStatus, status))
		r.lastStatus = status
	}
	return frame
}

// DrawPaused writes a PAUSED banner across the top of img
func (r *Renderer) DrawPaused(img *gocv.Mat) {
	gocv.Rectangle(img, image.Rect(0, 0, img.Cols(), 32), r.housingColor, -1)
	gocv.PutText(img, "PAUSED", image.Pt(10, 23), gocv.FontHersheySimplex, 0.7, r.yellowColor, 2)
}

func (r *Renderer) severityColor(s alert.Severity) color.RGBA {
	switch s {
	case alert.Red:
		return r.redColor
	case alert.Yellow:
		return r.yellowColor
	default:
		return r.greenColor
	}
}

func (r *Renderer) zoneColor(name zones.Name) color.RGBA {
	switch name {
	case zones.Red:
		return r.redColor
	case zones.Yellow:
		return r.yellowColor
	case zones.Green:
		return r.greenColor
	default:
		return r.trapezoidColor
	}
}

func (r *Renderer) drawZones(img *gocv.Mat, set zones.Set) {
	if trapezoid, ok := set.Get(zones.Trapezoid); ok {
		pts := toPixels(trapezoid.Points)
		for i := range pts {
			r.drawDashedLine(img, pts[i], pts[(i+1)%len(pts)], r.trapezoidColor, 1)
		}
	}
	for _, name := range zones.Priority {
		zone, ok := set.Get(name)
		if !ok {
			continue
		}
		pts := toPixels(zone.Points)
		for i := range pts {
			gocv.Line(img, pts[i], pts[(i+1)%len(pts)], r.zoneColor(name), 1)
		}
	}
}

func (r *Renderer) drawVehicle(img *gocv.Mat, v alert.Vehicle) {
	c := r.severityColor(v.Severity)
	rect := toRect(v.Track.Box)
	gocv.Rectangle(img, rect, c, 2)

	// Class name above the box, speed below it, both kept inside the frame.
	name := vehicle.ClassName(v.Track.ClassID)
	namePos := image.Pt(rect.Min.X, rect.Min.Y-8)
	if namePos.Y < 15 {
		namePos.Y = rect.Min.Y + 18
	}
	gocv.PutText(img, name, namePos, gocv.FontHersheySimplex, 0.5, c, 2)

	speedPos := image.Pt(rect.Min.X, rect.Max.Y+20)
	if speedPos.Y > img.Rows()-5 {
		speedPos.Y = rect.Max.Y - 8
	}
	gocv.PutText(img, v.SpeedLabel(r.speedUnit), speedPos, gocv.FontHersheySimplex, 0.5, c, 2)
}

// drawTrafficLight draws three stacked lamps in the top-right corner with the
// lamp for status lit.
func (r *Renderer) drawTrafficLight(img *gocv.Mat, status alert.Severity) {
	d := 2 * r.lampRadius
	x := img.Cols() - r.lampMargin - d - 6
	y := r.lampMargin
	housing := image.Rect(x, y, x+d+12, y+3*d+24)
	gocv.Rectangle(img, housing, r.housingColor, -1)

	lamps := []alert.Severity{alert.Red, alert.Yellow, alert.Green}
	for i, lamp := range lamps {
		center := image.Pt(x+6+r.lampRadius, y+6+r.lampRadius+i*(d+6))
		c := r.lampOffColor
		if lamp == status {
			c = r.severityColor(lamp)
		}
		gocv.Circle(img, center, r.lampRadius, c, -1)
	}

	label := fmt.Sprintf("STATUS: %s", status)
	gocv.PutText(img, label, image.Pt(housing.Min.X-150, y+20), gocv.FontHersheySimplex, 0.55, r.severityColor(status), 2)
}

func (r *Renderer) drawDashedLine(img *gocv.Mat, start, end image.Point, c color.RGBA, thickness int) {
	dx := float64(end.X - start.X)
	dy := float64(end.Y - start.Y)
	length := math.Sqrt(dx*dx + dy*dy)
	angle := math.Atan2(dy, dx)

	dashLength := 10.0
	gapLength := 5.0
	for cur := 0.0; cur < length; cur += dashLength + gapLength {
		stop := math.Min(cur+dashLength, length)
		a := image.Pt(start.X+int(cur*math.Cos(angle)), start.Y+int(cur*math.Sin(angle)))
		b := image.Pt(start.X+int(stop*math.Cos(angle)), start.Y+int(stop*math.Sin(angle)))
		gocv.Line(img, a, b, c, thickness)
	}
}

func toRect(box r2.Rect) image.Rectangle {
	return image.Rect(
		int(math.Round(box.Lo().X)), int(math.Round(box.Lo().Y)),
		int(math.Round(box.Hi().X)), int(math.Round(box.Hi().Y)),
	)
}

func toPixels(pts []r2.Point) []image.Point {
	out := make([]image.Point, len(pts))
	for i, p := range pts {
		out[i] = image.Pt(int(math.Round(p.X)), int(math.Round(p.Y)))
	}
	return out
}
