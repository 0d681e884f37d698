package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"lanecam/calibration"
	"lanecam/config"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
)

var cornerNames = [4]string{"top-left", "top-right", "bottom-right", "bottom-left"}

// HandCalibrator walks the user through measuring the four lane corners and
// writes the result as the calibration section of a scene file.
type HandCalibrator struct {
	frameWidth  int
	frameHeight int

	scanner *bufio.Scanner
	out     io.Writer

	pixels [4]r2.Point
	meters [4]r2.Point
}

// NewHandCalibrator reads answers from in and prompts on out
func NewHandCalibrator(frameWidth, frameHeight int, in io.Reader, out io.Writer) *HandCalibrator {
	return &HandCalibrator{
		frameWidth:  frameWidth,
		frameHeight: frameHeight,
		scanner:     bufio.NewScanner(in),
		out:         out,
	}
}

// Run collects the points, checks them and returns the scene fragment
func (hc *HandCalibrator) Run() (*config.SceneConfig, error) {
	fmt.Fprintf(hc.out, "LANE CALIBRATION\n")
	fmt.Fprintf(hc.out, "================\n\n")
	fmt.Fprintf(hc.out, "Frame: %d x %d pixels (points must be measured on the resized frame)\n", hc.frameWidth, hc.frameHeight)
	fmt.Fprintf(hc.out, "Pick four ground points that outline a measured stretch of lane.\n")
	fmt.Fprintf(hc.out, "Enter each point as \"x, y\".\n\n")

	for i, name := range cornerNames {
		p, err := hc.askPoint(fmt.Sprintf("[%d/4] %s pixel", i+1, name), true)
		if err != nil {
			return nil, err
		}
		hc.pixels[i] = p
		m, err := hc.askPoint(fmt.Sprintf("[%d/4] %s ground position in meters", i+1, name), false)
		if err != nil {
			return nil, err
		}
		hc.meters[i] = m
	}

	h, err := calibration.NewHomography(hc.pixels, hc.meters)
	if err != nil {
		return nil, err
	}
	hc.displayResults(h)

	scene := &config.SceneConfig{
		FrameWidth:  &hc.frameWidth,
		FrameHeight: &hc.frameHeight,
		Calibration: &config.CalibrationConfig{},
	}
	for i := range hc.pixels {
		scene.Calibration.PixelPoints = append(scene.Calibration.PixelPoints, config.Point{hc.pixels[i].X, hc.pixels[i].Y})
		scene.Calibration.MeterPoints = append(scene.Calibration.MeterPoints, config.Point{hc.meters[i].X, hc.meters[i].Y})
	}
	if err := scene.Validate(); err != nil {
		return nil, err
	}
	return scene, nil
}

// askPoint repeats the prompt until it gets a valid point
func (hc *HandCalibrator) askPoint(prompt string, inFrame bool) (r2.Point, error) {
	for {
		fmt.Fprintf(hc.out, "%s: ", prompt)
		if !hc.scanner.Scan() {
			if err := hc.scanner.Err(); err != nil {
				return r2.Point{}, errors.Wrap(err, "reading input")
			}
			return r2.Point{}, io.ErrUnexpectedEOF
		}
		p, err := parsePoint(hc.scanner.Text())
		if err == nil && inFrame && (p.X < 0 || p.Y < 0 || p.X >= float64(hc.frameWidth) || p.Y >= float64(hc.frameHeight)) {
			err = errors.Errorf("point (%g, %g) is outside the frame", p.X, p.Y)
		}
		if err != nil {
			fmt.Fprintf(hc.out, "  %v, try again\n", err)
			continue
		}
		return p, nil
	}
}

// parsePoint accepts "x, y", "x y" or "[x, y]"
func parsePoint(s string) (r2.Point, error) {
	s = strings.Trim(strings.TrimSpace(s), "[]()")
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' })
	if len(fields) != 2 {
		return r2.Point{}, errors.Errorf("expected two numbers, got %q", s)
	}
	x, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return r2.Point{}, errors.Wrapf(err, "x %q", fields[0])
	}
	y, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return r2.Point{}, errors.Wrapf(err, "y %q", fields[1])
	}
	return r2.Point{X: x, Y: y}, nil
}

// displayResults shows how far one pixel reaches on the ground near each corner
func (hc *HandCalibrator) displayResults(h *calibration.Homography) {
	fmt.Fprintf(hc.out, "\nCALIBRATION TABLE\n")
	fmt.Fprintf(hc.out, "%-13s %-18s %-18s %s\n", "corner", "pixel", "meters", "cm per pixel (x, y)")
	for i, name := range cornerNames {
		p := hc.pixels[i]
		m, _ := h.Project(p)
		dx, _ := h.Project(r2.Point{X: p.X + 1, Y: p.Y})
		dy, _ := h.Project(r2.Point{X: p.X, Y: p.Y + 1})
		fmt.Fprintf(hc.out, "%-13s (%6.1f, %6.1f)   (%6.3f, %6.3f)   %.2f, %.2f\n",
			name, p.X, p.Y, m.X, m.Y, dx.Sub(m).Norm()*100, dy.Sub(m).Norm()*100)
	}
	fmt.Fprintln(hc.out)
}

func main() {
	width := flag.Int("width", 760, "Width of the frames the points are measured on")
	height := flag.Int("height", 480, "Height of the frames the points are measured on")
	outPath := flag.String("out", "scene.json", "Scene file to write (.json)")
	flag.Parse()

	calibrator := NewHandCalibrator(*width, *height, os.Stdin, os.Stdout)
	scene, err := calibrator.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Calibration failed: %v\n", err)
		os.Exit(1)
	}

	data, err := json.MarshalIndent(scene, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Encoding scene: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*outPath, append(data, '\n'), 0644); err != nil {
		fmt.Fprintf(os.Stderr, "Saving scene: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Calibration saved to %s (use with -config %s)\n", *outPath, *outPath)
}
