// Package reference turns reference circles picked by the user into the
// average billet radius the detector searches around.
package reference

import (
	"errors"
	"fmt"
	"image"
	"math"
)

// DefaultSize is the initial width and height of a reference circle, and
// DefaultLimit the largest value the size sliders allow.
const (
	DefaultSize  = 50
	DefaultLimit = 100
)

var (
	// ErrNoReference is returned when no reference circles were given.
	ErrNoReference = errors.New("no reference circles selected")

	// ErrRadiusTooSmall is returned when the average radius rounds to zero.
	ErrRadiusTooSmall = errors.New("average radius must be at least 1 pixel")

	// ErrInvalidSize is returned for a reference outside the slider range.
	ErrInvalidSize = errors.New("reference size out of range")
)

// Circle is one reference billet, described by the width and height of
// the box it fits in.
type Circle struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Radius is the mean of the two half-extents, (w + h) / 4, rounded down.
func (c Circle) Radius() int {
	return (c.Width + c.Height) / 4
}

// Validate checks both extents lie in 1..limit.
func (c Circle) Validate(limit int) error {
	if c.Width < 1 || c.Width > limit || c.Height < 1 || c.Height > limit {
		return fmt.Errorf("%w: %dx%d not within 1..%d", ErrInvalidSize, c.Width, c.Height, limit)
	}
	return nil
}

// DefaultCircles returns n circles at the slider default size.
func DefaultCircles(n int) []Circle {
	circles := make([]Circle, n)
	for i := range circles {
		circles[i] = Circle{Width: DefaultSize, Height: DefaultSize}
	}
	return circles
}

// FromBox uses a box drawn around one billet as a reference.
func FromBox(r image.Rectangle) Circle {
	return Circle{Width: r.Dx(), Height: r.Dy()}
}

// FromDiameter uses a measured diameter as a reference. Both extents are
// the diameter rounded down, so Radius is half of it.
func FromDiameter(p1, p2 image.Point) Circle {
	d := int(math.Hypot(float64(p2.X-p1.X), float64(p2.Y-p1.Y)))
	return Circle{Width: d, Height: d}
}

// AverageRadius is the integer mean of the circles' radii. Every circle must
// pass Validate(limit).
func AverageRadius(circles []Circle, limit int) (int, error) {
	if len(circles) == 0 {
		return 0, ErrNoReference
	}

	sum := 0
	for i, c := range circles {
		if err := c.Validate(limit); err != nil {
			return 0, fmt.Errorf("reference circle %d: %w", i+1, err)
		}
		sum += c.Radius()
	}

	avg := sum / len(circles)
	if avg < 1 {
		return 0, ErrRadiusTooSmall
	}
	return avg, nil
}
