//go:build gocv

package detection

import (
	"context"
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// HoughDetector runs OpenCV's Hough gradient circle transform.
type HoughDetector struct{}

// NewHoughDetector returns the OpenCV-backed detector.
func NewHoughDetector() *HoughDetector {
	return &HoughDetector{}
}

// Available reports whether OpenCV support was compiled in.
func (h *HoughDetector) Available() bool { return true }

// DetectCircles blurs a grayscale copy of img and searches it for circles.
func (h *HoughDetector) DetectCircles(ctx context.Context, img image.Image, p Params) ([]RawCircle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	gray, err := grayInput(img)
	if err != nil {
		return nil, err
	}
	defer gray.Close()

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Pt(p.BlurKernel, p.BlurKernel), 0, 0, gocv.BorderDefault)

	circles := gocv.NewMat()
	defer circles.Close()
	gocv.HoughCirclesWithParams(blurred, &circles, gocv.HoughGradient,
		p.DP, p.MinDist,
		p.Param1, p.Param2,
		p.MinRadius, p.MaxRadius)

	if circles.Empty() || circles.Cols() == 0 {
		return nil, nil
	}

	out := make([]RawCircle, circles.Cols())
	for i := 0; i < circles.Cols(); i++ {
		v := circles.GetVecfAt(0, i)
		out[i] = RawCircle{X: float64(v[0]), Y: float64(v[1]), R: float64(v[2])}
	}
	return out, nil
}

// grayInput converts img to the grayscale Mat the transform searches.
//
// Billet photos were tuned with RGB pixels fed through a BGR-to-gray
// conversion, which weights red 0.114 and blue 0.299. ImageToMatRGB yields
// a true BGR Mat, so converting it as RGB reproduces those grey levels.
func grayInput(img image.Image) (gocv.Mat, error) {
	src, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("failed to convert image: %w", err)
	}
	defer src.Close()

	gray := gocv.NewMat()
	gocv.CvtColor(src, &gray, gocv.ColorRGBToGray)
	return gray, nil
}
