//go:build !gocv

package detection

import (
	"context"
	"image"
)

// HoughDetector stands in for the OpenCV detector in builds without the
// gocv tag.
type HoughDetector struct{}

// NewHoughDetector returns a detector that always fails.
func NewHoughDetector() *HoughDetector {
	return &HoughDetector{}
}

// Available reports whether OpenCV support was compiled in.
func (h *HoughDetector) Available() bool { return false }

// DetectCircles returns ErrDetectorUnavailable.
func (h *HoughDetector) DetectCircles(ctx context.Context, img image.Image, p Params) ([]RawCircle, error) {
	return nil, ErrDetectorUnavailable
}
