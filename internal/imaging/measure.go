package imaging

import (
	"fmt"
	"image"
	"math"
)

// Point represents a 2D point
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// DistanceResult contains measurement information
type DistanceResult struct {
	DistancePixels float64 `json:"distance_pixels"`
	DeltaX         int     `json:"delta_x"`
	DeltaY         int     `json:"delta_y"`
	AngleDegrees   float64 `json:"angle_degrees"`
}

// MeasureDistance calculates the distance between two points inside bounds.
// Used to measure a billet diameter across its face.
func MeasureDistance(bounds image.Rectangle, p1, p2 Point) (*DistanceResult, error) {
	for _, p := range []Point{p1, p2} {
		if !image.Pt(p.X, p.Y).In(bounds) {
			return nil, fmt.Errorf("point (%d,%d) outside image bounds (%d,%d)-(%d,%d)",
				p.X, p.Y, bounds.Min.X, bounds.Min.Y, bounds.Max.X, bounds.Max.Y)
		}
	}

	deltaX := p2.X - p1.X
	deltaY := p2.Y - p1.Y
	distance := math.Sqrt(float64(deltaX*deltaX + deltaY*deltaY))

	// 0 = horizontal right, 90 = down
	angle := math.Atan2(float64(deltaY), float64(deltaX)) * 180 / math.Pi

	return &DistanceResult{
		DistancePixels: math.Round(distance*100) / 100,
		DeltaX:         deltaX,
		DeltaY:         deltaY,
		AngleDegrees:   math.Round(angle*10) / 10,
	}, nil
}
