package imaging

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"

	"github.com/disintegration/imaging"
)

// ErrEmptyROI is returned when a region of interest has no area left after
// clipping to the image.
var ErrEmptyROI = errors.New("region of interest is empty")

// ROIMode names the input style a region of interest came from.
type ROIMode string

const (
	ROIModePercent ROIMode = "percent"
	ROIModeCorners ROIMode = "corners"
	ROIModeCanvas  ROIMode = "canvas"
)

// ROI is a clipped, non-empty region of interest in image coordinates.
type ROI struct {
	Mode ROIMode `json:"mode"`
	X1   int     `json:"x1"`
	Y1   int     `json:"y1"`
	X2   int     `json:"x2"`
	Y2   int     `json:"y2"`
}

// Rect returns the region as an image.Rectangle. Corners keep their order,
// so a reversed region stays empty instead of being swapped.
func (r ROI) Rect() image.Rectangle {
	return image.Rectangle{Min: image.Pt(r.X1, r.Y1), Max: image.Pt(r.X2, r.Y2)}
}

// Width returns the region width in pixels.
func (r ROI) Width() int { return r.X2 - r.X1 }

// Height returns the region height in pixels.
func (r ROI) Height() int { return r.Y2 - r.Y1 }

// PercentROI builds a region from slider percentages. Left and right are
// percentages of the width, top and bottom of the height, each 0-100.
func PercentROI(bounds image.Rectangle, left, right, top, bottom float64) (ROI, error) {
	for _, p := range []struct {
		name  string
		value float64
	}{{"left", left}, {"right", right}, {"top", top}, {"bottom", bottom}} {
		if p.value < 0 || p.value > 100 {
			return ROI{}, fmt.Errorf("%s percentage %.1f outside 0-100", p.name, p.value)
		}
	}

	w := float64(bounds.Dx())
	h := float64(bounds.Dy())
	x1 := bounds.Min.X + int(w*left/100)
	x2 := bounds.Min.X + int(w*right/100)
	y1 := bounds.Min.Y + int(h*top/100)
	y2 := bounds.Min.Y + int(h*bottom/100)

	return clipROI(bounds, ROIModePercent, x1, y1, x2, y2)
}

// CornerROI builds a region from numeric corner coordinates.
func CornerROI(bounds image.Rectangle, x1, y1, x2, y2 int) (ROI, error) {
	return clipROI(bounds, ROIModeCorners, x1, y1, x2, y2)
}

// RectROI builds a region from a drawn rectangle's origin and size.
func RectROI(bounds image.Rectangle, left, top, width, height int) (ROI, error) {
	return clipROI(bounds, ROIModeCanvas, left, top, left+width, top+height)
}

// clipROI intersects the requested corners with the image. Corners are not
// reordered: x2 <= x1 yields an empty region, as a reversed slice would.
func clipROI(bounds image.Rectangle, mode ROIMode, x1, y1, x2, y2 int) (ROI, error) {
	r := image.Rectangle{Min: image.Pt(x1, y1), Max: image.Pt(x2, y2)}.Intersect(bounds)
	if r.Empty() {
		return ROI{}, fmt.Errorf("%w: (%d,%d)-(%d,%d) within (%d,%d)-(%d,%d)", ErrEmptyROI,
			x1, y1, x2, y2, bounds.Min.X, bounds.Min.Y, bounds.Max.X, bounds.Max.Y)
	}
	return ROI{Mode: mode, X1: r.Min.X, Y1: r.Min.Y, X2: r.Max.X, Y2: r.Max.Y}, nil
}

// Crop copies the region out of img. The result has its origin at (0,0).
func Crop(img image.Image, roi ROI) (*image.NRGBA, error) {
	rect := roi.Rect().Intersect(img.Bounds())
	if rect.Empty() {
		return nil, ErrEmptyROI
	}
	return imaging.Crop(img, rect), nil
}

// EncodedImage is an image encoded as base64 PNG for JSON transports.
type EncodedImage struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// Encode renders img as base64 PNG, optionally scaled.
//
// A scale of 0 or 1 keeps the original size. Any other positive value resizes
// with Lanczos resampling, e.g. 0.5 for a half-size preview.
func Encode(img image.Image, scale float64) (*EncodedImage, error) {
	img = Scale(img, scale)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	return &EncodedImage{
		Width:       img.Bounds().Dx(),
		Height:      img.Bounds().Dy(),
		ImageBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		MimeType:    "image/png",
	}, nil
}

// WritePNG writes img to w as PNG, optionally scaled like Encode.
func WritePNG(w io.Writer, img image.Image, scale float64) error {
	if err := png.Encode(w, Scale(img, scale)); err != nil {
		return fmt.Errorf("failed to encode image: %w", err)
	}
	return nil
}

// Scale resizes img by factor. Non-positive factors and 1 return img as is.
func Scale(img image.Image, factor float64) image.Image {
	if factor <= 0 || factor == 1.0 {
		return img
	}
	newWidth := int(float64(img.Bounds().Dx()) * factor)
	newHeight := int(float64(img.Bounds().Dy()) * factor)
	if newWidth < 1 {
		newWidth = 1
	}
	if newHeight < 1 {
		newHeight = 1
	}
	return imaging.Resize(img, newWidth, newHeight, imaging.Lanczos)
}
