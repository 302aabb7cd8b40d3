// Package detection counts billets in a region of interest.
//
// The circle search itself is OpenCV's Hough gradient transform, reached
// through gocv. This package only decides what to ask it for and what to do
// with the answer:
//
//  1. Parameters: the search window is derived from the average reference
//     radius r. Radii between int(0.8r) and int(1.2r) are accepted and two
//     centres must be at least 1.5r apart, so touching billets are still
//     counted separately.
//  2. Preprocessing: grayscale conversion and an 11×11 Gaussian blur (sigma
//     derived from the kernel) suppress saw marks on the billet faces.
//  3. Detection: HoughCirclesWithParams with dp=1.2, param1=50 (Canny upper
//     threshold) and param2=30 (accumulator threshold).
//  4. Result: centres and radii are rounded half-to-even, counted and drawn
//     onto a copy of the region: a circle and its bounding square for each.
//
// # Build Tags
//
// The OpenCV-backed detector is compiled only with the "gocv" build tag:
//
//	go build -tags gocv ./...
//
// Without it HoughDetector reports ErrDetectorUnavailable, which lets the rest
// of the service (cropping, previews, reference sizing) run on machines
// without OpenCV installed.
package detection
