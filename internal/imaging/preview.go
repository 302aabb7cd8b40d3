package imaging

import (
	"errors"
	"fmt"
	"image"
	"image/draw"

	"github.com/anthonynsimon/bild/blur"
	"github.com/anthonynsimon/bild/effect"
	"github.com/anthonynsimon/bild/segment"
)

// ErrInvalidKernel is returned for blur kernels that are not positive and odd.
var ErrInvalidKernel = errors.New("blur kernel must be a positive odd number")

// SigmaForKernel returns the Gaussian sigma OpenCV derives when a kernel size
// is given with sigma 0.
func SigmaForKernel(kernel int) float64 {
	return 0.3*((float64(kernel)-1)*0.5-1) + 0.8
}

// Preview renders the grayscale, blurred image the circle detector receives.
//
// It is an approximation of the detector's own preprocessing, intended for a
// user deciding whether the ROI is sharp enough; the detector never consumes it.
func Preview(img image.Image, kernel int) (*image.Gray, error) {
	if kernel < 1 || kernel%2 == 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidKernel, kernel)
	}
	blurred := blur.Gaussian(effect.Grayscale(img), SigmaForKernel(kernel))
	return toGray(blurred), nil
}

// toGray copies a single-channel RGBA image into an *image.Gray.
func toGray(img image.Image) *image.Gray {
	b := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(gray, gray.Bounds(), img, b.Min, draw.Src)
	return gray
}

// EdgePreview renders Sobel edge strength of the blurred image, keeping only
// pixels at or above threshold (0-255).
//
// The Hough gradient detector runs Canny with threshold as its upper bound,
// so this shows roughly which billet rims can vote.
func EdgePreview(img image.Image, kernel int, threshold float64) (*image.Gray, error) {
	if kernel < 1 || kernel%2 == 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidKernel, kernel)
	}
	if threshold < 0 || threshold > 255 {
		return nil, fmt.Errorf("edge threshold %.1f outside 0-255", threshold)
	}
	blurred := blur.Gaussian(effect.Grayscale(img), SigmaForKernel(kernel))
	edges := effect.Sobel(blurred)
	return segment.Threshold(edges, uint8(threshold)), nil
}
