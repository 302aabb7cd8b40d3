package detection

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/ironsheep/billet-counter/internal/imaging"
)

// ErrDetectorUnavailable is returned when the binary was built without
// OpenCV support.
var ErrDetectorUnavailable = errors.New("circle detector unavailable: build with -tags gocv")

// RawCircle is a detection as the transform reports it, in sub-pixels.
type RawCircle struct {
	X float64
	Y float64
	R float64
}

// Detector finds circles in an image.
type Detector interface {
	DetectCircles(ctx context.Context, img image.Image, p Params) ([]RawCircle, error)
}

// Circle is a counted billet in ROI pixel coordinates.
type Circle struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Radius int `json:"radius"`
}

// Result is the outcome of one count.
type Result struct {
	Count         int      `json:"count"`
	Circles       []Circle `json:"circles"`
	AverageRadius int      `json:"average_radius"`
	Params        Params   `json:"params"`

	// Overlay is the ROI with every detection drawn on it.
	Overlay *image.RGBA `json:"-"`
}

// Options controls a count.
type Options struct {
	Tuning Tuning
	Style  imaging.Style

	// LabelCount prints "Count: N" on the overlay.
	LabelCount bool
}

// DefaultOptions returns DefaultTuning and imaging.DefaultStyle.
func DefaultOptions() Options {
	return Options{
		Tuning: DefaultTuning(),
		Style:  imaging.DefaultStyle(),
	}
}

// Count detects billets in roi around avgRadius and draws them.
//
// Finding nothing is not an error: the result has a zero count and an
// overlay identical to roi.
func Count(ctx context.Context, d Detector, roi image.Image, avgRadius int, opts Options) (*Result, error) {
	params, err := opts.Tuning.ParamsFor(avgRadius)
	if err != nil {
		return nil, err
	}

	raw, err := d.DetectCircles(ctx, roi, params)
	if err != nil {
		return nil, fmt.Errorf("circle detection failed: %w", err)
	}

	circles := RoundCircles(raw)

	style := opts.Style
	if opts.LabelCount {
		style.Label = fmt.Sprintf("Count: %d", len(circles))
	}

	marks := make([]imaging.Mark, len(circles))
	for i, c := range circles {
		marks[i] = imaging.Mark{X: c.X, Y: c.Y, R: c.Radius}
	}

	return &Result{
		Count:         len(circles),
		Circles:       circles,
		AverageRadius: avgRadius,
		Params:        params,
		Overlay:       imaging.DrawDetections(roi, marks, style),
	}, nil
}

// RoundCircles rounds centres and radii half-to-even.
func RoundCircles(raw []RawCircle) []Circle {
	circles := make([]Circle, len(raw))
	for i, c := range raw {
		circles[i] = Circle{
			X:      int(math.RoundToEven(c.X)),
			Y:      int(math.RoundToEven(c.Y)),
			Radius: int(math.RoundToEven(c.R)),
		}
	}
	return circles
}
