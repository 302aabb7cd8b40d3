package counter

import (
	"encoding/json"
	"fmt"
	"image"

	"github.com/ironsheep/billet-counter/internal/canvas"
	"github.com/ironsheep/billet-counter/internal/imaging"
	"github.com/ironsheep/billet-counter/internal/reference"
)

// CropRequest selects a region of interest in one of three input styles.
//
// Percent mode reads Left, Right, Top and Bottom (0-100; unset values
// select the whole image). Corners mode reads X1, Y1, X2 and Y2. Canvas
// mode reads the drawable canvas JSON in Canvas, scaled from a
// CanvasWidth×CanvasHeight display when those are set.
type CropRequest struct {
	Mode imaging.ROIMode `json:"mode" form:"mode"`

	Left   *float64 `json:"left,omitempty" form:"left"`
	Right  *float64 `json:"right,omitempty" form:"right"`
	Top    *float64 `json:"top,omitempty" form:"top"`
	Bottom *float64 `json:"bottom,omitempty" form:"bottom"`

	X1 int `json:"x1" form:"x1"`
	Y1 int `json:"y1" form:"y1"`
	X2 int `json:"x2" form:"x2"`
	Y2 int `json:"y2" form:"y2"`

	Canvas       json.RawMessage `json:"canvas,omitempty" form:"-"`
	CanvasWidth  int             `json:"canvas_width,omitempty" form:"canvas_width"`
	CanvasHeight int             `json:"canvas_height,omitempty" form:"canvas_height"`
}

// ROI resolves the request against an image's bounds.
func (r CropRequest) ROI(bounds image.Rectangle) (imaging.ROI, error) {
	switch r.Mode {
	case imaging.ROIModePercent:
		return imaging.PercentROI(bounds,
			orDefault(r.Left, 0), orDefault(r.Right, 100),
			orDefault(r.Top, 0), orDefault(r.Bottom, 100))

	case imaging.ROIModeCorners, "":
		return imaging.CornerROI(bounds, r.X1, r.Y1, r.X2, r.Y2)

	case imaging.ROIModeCanvas:
		if len(r.Canvas) == 0 {
			return imaging.ROI{}, fmt.Errorf("%w: canvas mode needs the canvas JSON", ErrInvalidRequest)
		}
		rect, err := canvas.ParseRect(r.Canvas, r.CanvasWidth, r.CanvasHeight, bounds.Dx(), bounds.Dy())
		if err != nil {
			return imaging.ROI{}, err
		}
		return imaging.RectROI(bounds, bounds.Min.X+rect.Left, bounds.Min.Y+rect.Top, rect.Width, rect.Height)

	default:
		return imaging.ROI{}, fmt.Errorf("%w: crop mode %q", ErrUnknownMode, r.Mode)
	}
}

// ReferenceMode names how reference circles are supplied.
type ReferenceMode string

const (
	// ReferenceCircles takes width and height pairs from the size sliders.
	ReferenceCircles ReferenceMode = "circles"

	// ReferenceBox takes a box drawn around one billet inside the region.
	ReferenceBox ReferenceMode = "box"

	// ReferenceDiameter takes two points across one billet's face.
	ReferenceDiameter ReferenceMode = "diameter"
)

// ReferenceRequest supplies the reference circles the radius is averaged
// from. Box and diameter coordinates are relative to the cropped region.
type ReferenceRequest struct {
	Mode ReferenceMode `json:"mode"`

	// Circles defaults to the configured number of 50×50 circles.
	Circles []reference.Circle `json:"circles,omitempty"`

	Box *imaging.ROI `json:"box,omitempty"`

	P1 *imaging.Point `json:"p1,omitempty"`
	P2 *imaging.Point `json:"p2,omitempty"`
}

// ReferenceResult is the radius a reference request produced.
type ReferenceResult struct {
	Mode          ReferenceMode           `json:"mode"`
	Circles       []reference.Circle      `json:"circles"`
	AverageRadius int                     `json:"average_radius"`
	Distance      *imaging.DistanceResult `json:"distance,omitempty"`
}

// CountRequest is a whole workflow in one call.
type CountRequest struct {
	Crop      CropRequest      `json:"crop"`
	Reference ReferenceRequest `json:"reference"`

	// Radius, when positive, is used directly and Reference is ignored.
	Radius int `json:"radius,omitempty"`
}

func orDefault(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}
