// Package imaging provides the image side of billet counting: decoding
// uploads, cutting the region of interest, drawing detection overlays and
// rendering the grayscale previews the detector works on.
//
// # Coordinate System
//
// All pixel coordinates in this package are 0-based:
//   - X: horizontal position (0 = leftmost pixel)
//   - Y: vertical position (0 = topmost pixel)
//   - For regions, (x1,y1) is inclusive (top-left), (x2,y2) is exclusive (bottom-right)
//
// # Regions of Interest
//
// A ROI can be described three ways, matching the three input styles of the
// counting workflow:
//   - percent: slider percentages of width and height (0-100)
//   - corners: numeric corner coordinates
//   - canvas: a rectangle drawn on the browser canvas (left, top, width, height)
//
// Every constructor clips the region to the image the way array slicing
// does, so a rectangle that runs past the right edge simply stops there.
// Regions with no remaining area are rejected with ErrEmptyROI.
//
// # Thread Safety
//
// ImageCache is safe for concurrent use. Crop and the overlay functions never
// modify their input; they always return a fresh image.
//
// # Supported Formats
//
// Only JPEG and PNG are accepted, the same filter the upload form applies.
// JPEG orientation tags are honoured on decode.
package imaging
